// Package textpattern finds sensitive information in extracted digital
// text. It backs the PDF analyzer for pages that carry a text layer;
// raster content goes through model inference instead.
package textpattern

import (
	"regexp"
	"strings"

	"github.com/protectedvision/backend/internal/core/domain"
)

// Match aggregates all hits of one category in a text unit.
type Match struct {
	Category   domain.Category
	Confidence float64
	Count      int
}

type pattern struct {
	category   domain.Category
	confidence float64
	re         *regexp.Regexp
	validate   func(string) bool
}

var patterns = []pattern{
	{
		category:   domain.CategoryCreditCard,
		confidence: 0.97,
		re:         regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`),
		validate:   luhnValid,
	},
	{
		category:   domain.CategorySocialSecurity,
		confidence: 0.96,
		re:         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		category:   domain.CategoryBankAccount,
		confidence: 0.92,
		re:         regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`),
	},
	{
		category:   domain.CategoryPassport,
		confidence: 0.88,
		re:         regexp.MustCompile(`(?i)passport\s*(?:no\.?|number|#)?\s*[:#]?\s*[A-Z0-9]{6,9}\b`),
	},
	{
		category:   domain.CategoryEmail,
		confidence: 0.99,
		re:         regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	},
	{
		category:   domain.CategoryPhoneNumber,
		confidence: 0.85,
		re:         regexp.MustCompile(`(?:\+|\b)\d{1,3}[ .-]?\(?\d{2,4}\)?[ .-]?\d{3}[ .-]?\d{2,4}\b`),
		validate:   plausiblePhone,
	},
	{
		category:   domain.CategoryAddress,
		confidence: 0.80,
		re:         regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z0-9.' -]{3,40}\s(?:street|st\.?|avenue|ave\.?|road|rd\.?|boulevard|blvd\.?|lane|ln\.?|drive|dr\.?)\b`),
	},
}

// Scan returns the categories present in the text with per-category
// instance counts. Deterministic: the same text always yields the same
// matches.
func Scan(text string) []Match {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var matches []Match
	for _, p := range patterns {
		hits := p.re.FindAllString(text, -1)
		count := 0
		for _, hit := range hits {
			if p.validate != nil && !p.validate(hit) {
				continue
			}
			count++
		}
		if count > 0 {
			matches = append(matches, Match{
				Category:   p.category,
				Confidence: p.confidence,
				Count:      count,
			})
		}
	}
	return matches
}

// luhnValid checks the card-number checksum so random digit runs do not
// count as credit cards.
func luhnValid(raw string) bool {
	var digits []int
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// plausiblePhone rejects digit runs that are too short or long once
// separators are stripped, and anything that already passed as a card.
func plausiblePhone(raw string) bool {
	digits := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 7 || digits > 15 {
		return false
	}
	return !luhnValid(raw) || digits < 13
}
