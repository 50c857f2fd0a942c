package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/procurahq/docintel/internal/model"
)

func risk(sev model.Severity, prob model.Probability) model.Risk {
	return model.Risk{Severity: sev, Probability: prob}
}

func TestScoreRisk_Bounds(t *testing.T) {
	assert.Equal(t, 16, ScoreRisk(risk(model.SeverityCritical, model.ProbabilityCertain)))
	assert.Equal(t, 1, ScoreRisk(risk(model.SeverityLow, model.ProbabilityUnlikely)))
}

func TestScoreRisk_Composite(t *testing.T) {
	assert.Equal(t, 9, ScoreRisk(risk(model.SeverityHigh, model.ProbabilityLikely)))
	assert.Equal(t, 6, ScoreRisk(risk(model.SeverityMedium, model.ProbabilityLikely)))
	assert.Equal(t, 4, ScoreRisk(risk(model.SeverityCritical, model.ProbabilityUnlikely)))
}

func TestNeedsMitigation(t *testing.T) {
	assert.True(t, NeedsMitigation(risk(model.SeverityHigh, model.ProbabilityPossible)))
	assert.True(t, NeedsMitigation(risk(model.SeverityLow, model.ProbabilityCertain)), "certain probability flags even at low severity")
	assert.False(t, NeedsMitigation(risk(model.SeverityMedium, model.ProbabilityLikely)))

	mitigated := risk(model.SeverityCritical, model.ProbabilityCertain)
	mitigated.Mitigation = "garantia contratual prevista na clausula 8.2"
	assert.False(t, NeedsMitigation(mitigated), "documented mitigation clears the flag")
}

func TestIsCritical(t *testing.T) {
	assert.True(t, IsCritical(risk(model.SeverityCritical, model.ProbabilityUnlikely)), "critical severity always flags")
	assert.True(t, IsCritical(risk(model.SeverityHigh, model.ProbabilityCertain)))
	assert.True(t, IsCritical(risk(model.SeverityHigh, model.ProbabilityLikely)))
	assert.False(t, IsCritical(risk(model.SeverityHigh, model.ProbabilityPossible)))
	assert.False(t, IsCritical(risk(model.SeverityMedium, model.ProbabilityCertain)))
}

func TestRankRisks_DescendingStable(t *testing.T) {
	risks := []model.Risk{
		{ID: "low", Severity: model.SeverityLow, Probability: model.ProbabilityUnlikely},
		{ID: "high-a", Severity: model.SeverityHigh, Probability: model.ProbabilityLikely},
		{ID: "high-b", Severity: model.SeverityHigh, Probability: model.ProbabilityLikely},
		{ID: "top", Severity: model.SeverityCritical, Probability: model.ProbabilityCertain},
	}

	ranked := RankRisks(risks)
	assert.Equal(t, "top", ranked[0].ID)
	assert.Equal(t, "high-a", ranked[1].ID, "ties keep original order")
	assert.Equal(t, "high-b", ranked[2].ID)
	assert.Equal(t, "low", ranked[3].ID)

	// Input slice untouched.
	assert.Equal(t, "low", risks[0].ID)
}
