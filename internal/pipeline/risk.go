package pipeline

import (
	"sort"

	"github.com/procurahq/docintel/internal/model"
)

// ScoreRisk computes the composite risk score, severity rank times
// probability rank, in the range 1..16.
func ScoreRisk(r model.Risk) int {
	return model.SeverityRank(r.Severity) * model.ProbabilityRank(r.Probability)
}

// NeedsMitigation reports whether the risk is serious enough that the
// proposal team should plan a response before bidding. A documented
// mitigation clears the flag regardless of severity.
func NeedsMitigation(r model.Risk) bool {
	if r.Mitigation != "" {
		return false
	}
	return r.Severity == model.SeverityCritical ||
		r.Severity == model.SeverityHigh ||
		r.Probability == model.ProbabilityCertain
}

// IsCritical flags risks that should surface at the top of any summary.
func IsCritical(r model.Risk) bool {
	if r.Severity == model.SeverityCritical {
		return true
	}
	return r.Severity == model.SeverityHigh &&
		(r.Probability == model.ProbabilityCertain || r.Probability == model.ProbabilityLikely)
}

// RankRisks orders risks by descending score. Equal scores keep their
// original relative order.
func RankRisks(risks []model.Risk) []model.Risk {
	ranked := make([]model.Risk, len(risks))
	copy(ranked, risks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ScoreRisk(ranked[i]) > ScoreRisk(ranked[j])
	})
	return ranked
}
