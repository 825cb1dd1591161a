package domain

// Risk tiers by category. The high set is checked before the medium set:
// a document carrying both tiers is always high.
var (
	highRiskCategories = map[Category]struct{}{
		CategoryCreditCard:     {},
		CategoryPassport:       {},
		CategoryDriverLicense:  {},
		CategorySocialSecurity: {},
		CategoryBankAccount:    {},
	}
	mediumRiskCategories = map[Category]struct{}{
		CategoryPhoneNumber: {},
		CategoryEmail:       {},
		CategoryAddress:     {},
	}
)

// ScoreRisk maps a finding set to a severity tier. Pure: the stored
// risk level of a scan must be recomputable from its findings.
func ScoreRisk(findings []Finding) RiskLevel {
	for _, f := range findings {
		if _, ok := highRiskCategories[f.Category]; ok {
			return RiskHigh
		}
	}
	for _, f := range findings {
		if _, ok := mediumRiskCategories[f.Category]; ok {
			return RiskMedium
		}
	}
	return RiskLow
}
