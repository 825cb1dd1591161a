package textpattern

import (
	"testing"

	"github.com/protectedvision/backend/internal/core/domain"
)

func findMatch(matches []Match, category domain.Category) (Match, bool) {
	for _, m := range matches {
		if m.Category == category {
			return m, true
		}
	}
	return Match{}, false
}

func TestScanFindsLuhnValidCreditCard(t *testing.T) {
	matches := Scan("please charge 4111 1111 1111 1111 for the order")
	m, ok := findMatch(matches, domain.CategoryCreditCard)
	if !ok {
		t.Fatalf("expected a credit card match, got %+v", matches)
	}
	if m.Count != 1 {
		t.Fatalf("count = %d, want 1", m.Count)
	}
}

func TestScanRejectsLuhnInvalidDigitRun(t *testing.T) {
	matches := Scan("reference number 4111 1111 1111 1112")
	if _, ok := findMatch(matches, domain.CategoryCreditCard); ok {
		t.Fatalf("luhn-invalid run must not match as a credit card")
	}
}

func TestScanFindsSSN(t *testing.T) {
	matches := Scan("ssn on file: 078-05-1120")
	if _, ok := findMatch(matches, domain.CategorySocialSecurity); !ok {
		t.Fatalf("expected a social security match, got %+v", matches)
	}
}

func TestScanFindsIBAN(t *testing.T) {
	matches := Scan("wire to DE89370400440532013000 by friday")
	if _, ok := findMatch(matches, domain.CategoryBankAccount); !ok {
		t.Fatalf("expected a bank account match, got %+v", matches)
	}
}

func TestScanFindsPassportWithContext(t *testing.T) {
	matches := Scan("Passport No: C01X0006H issued 2019")
	if _, ok := findMatch(matches, domain.CategoryPassport); !ok {
		t.Fatalf("expected a passport match, got %+v", matches)
	}
}

func TestScanCountsRepeatedEmails(t *testing.T) {
	matches := Scan("contact a@example.com or b@example.org")
	m, ok := findMatch(matches, domain.CategoryEmail)
	if !ok {
		t.Fatalf("expected an email match, got %+v", matches)
	}
	if m.Count != 2 {
		t.Fatalf("email count = %d, want 2", m.Count)
	}
}

func TestScanFindsPhone(t *testing.T) {
	matches := Scan("call +1 555 123 4567 after lunch")
	if _, ok := findMatch(matches, domain.CategoryPhoneNumber); !ok {
		t.Fatalf("expected a phone match, got %+v", matches)
	}
}

func TestScanFindsAddress(t *testing.T) {
	matches := Scan("deliver to 221 Baker Street before noon")
	if _, ok := findMatch(matches, domain.CategoryAddress); !ok {
		t.Fatalf("expected an address match, got %+v", matches)
	}
}

func TestScanEmptyText(t *testing.T) {
	if matches := Scan("   \n\t "); matches != nil {
		t.Fatalf("expected no matches for blank text, got %+v", matches)
	}
}

func TestScanIsDeterministic(t *testing.T) {
	text := "mail a@example.com, ssn 078-05-1120, card 4111 1111 1111 1111"
	first := Scan(text)
	for i := 0; i < 3; i++ {
		again := Scan(text)
		if len(again) != len(first) {
			t.Fatalf("match count changed between runs: %d then %d", len(first), len(again))
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("match %d changed between runs: %+v then %+v", j, first[j], again[j])
			}
		}
	}
}

func TestLuhnValid(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"4111111111111111", true},
		{"4111 1111 1111 1111", true},
		{"4111111111111112", false},
		{"1234", false},
	}
	for _, tc := range cases {
		if got := luhnValid(tc.raw); got != tc.want {
			t.Fatalf("luhnValid(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
