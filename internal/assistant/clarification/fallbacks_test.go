package clarification

import (
	"testing"
	"time"

	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFallbacks(t *testing.T) {
	c := NewCoordinator(newMemoryUpdater(), logger.NewNoOpLogger(), WithFallbacks(models.DomainCurrentAccounts, "main"))
	now := time.Date(2025, 12, 13, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		res       *models.IntentResolution
		grounding *models.ClarificationGrounding
		check     func(t *testing.T, out *models.IntentResolution)
	}{
		{
			name: "time range falls back to month to date",
			res: &models.IntentResolution{
				Intents:             []models.Intent{{Domain: models.DomainCreditCards, Metric: models.MetricSum, TimeRangeHint: "around xmas-ish"}},
				NeedsClarification:  true,
				ClarificationNeeded: "time_range",
			},
			check: func(t *testing.T, out *models.IntentResolution) {
				assert.Equal(t, "2025-12-01 to 2025-12-13", out.Intents[0].TimeRangeHint)
				assert.Equal(t, models.MetricSum, out.Intents[0].Metric)
			},
		},
		{
			name: "account selection uses main alias",
			res: &models.IntentResolution{
				Intents:             []models.Intent{{Domain: models.DomainCurrentAccounts, Metric: models.MetricBalance}},
				NeedsClarification:  true,
				ClarificationNeeded: "account_selection",
			},
			check: func(t *testing.T, out *models.IntentResolution) {
				assert.Equal(t, "main", out.Intents[0].Parameters[ParamAccountAlias])
				assert.Nil(t, out.Intents[0].EntityHints)
			},
		},
		{
			name: "metric falls back to domain default",
			res: &models.IntentResolution{
				Intents: []models.Intent{
					{Domain: models.DomainCreditCards, Metric: "whatever"},
					{Domain: models.DomainLoans, Metric: models.MetricList},
				},
				NeedsClarification: true,
			},
			grounding: &models.ClarificationGrounding{ExpectedAnswerType: AnswerMetric},
			check: func(t *testing.T, out *models.IntentResolution) {
				assert.Equal(t, models.MetricList, out.Intents[0].Metric)
				assert.Equal(t, models.MetricBalance, out.Intents[1].Metric)
			},
		},
		{
			name: "domain falls back to fixed domain",
			res: &models.IntentResolution{
				Intents:             []models.Intent{{Domain: models.DomainUnknown}},
				NeedsClarification:  true,
				ClarificationNeeded: "domain",
			},
			check: func(t *testing.T, out *models.IntentResolution) {
				require.Len(t, out.Intents, 1)
				assert.Equal(t, models.DomainCurrentAccounts, out.Intents[0].Domain)
				assert.Equal(t, models.MetricBalance, out.Intents[0].Metric)
			},
		},
		{
			name: "failed extraction with no intents",
			res:  &models.IntentResolution{NeedsClarification: true, ClarificationNeeded: "intent_extraction_failed"},
			check: func(t *testing.T, out *models.IntentResolution) {
				require.Len(t, out.Intents, 1)
				assert.Equal(t, models.DomainCurrentAccounts, out.Intents[0].Domain)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.ApplyFallbacks(tt.res, tt.grounding, now, time.UTC)
			assert.False(t, out.NeedsClarification)
			assert.Empty(t, out.ClarificationNeeded)
			assert.True(t, tt.res.NeedsClarification, "input must not be modified")
			tt.check(t, out)
		})
	}
}

func TestApplyFallbacks_UsesTimezoneForToday(t *testing.T) {
	c := NewCoordinator(newMemoryUpdater(), logger.NewNoOpLogger())
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2025-12-31 20:00 UTC is already 2026-01-01 in Tokyo.
	now := time.Date(2025, 12, 31, 20, 0, 0, 0, time.UTC)
	res := &models.IntentResolution{
		Intents:             []models.Intent{{Domain: models.DomainDeposits, Metric: models.MetricList}},
		ClarificationNeeded: "time_range",
	}

	out := c.ApplyFallbacks(res, nil, now, tokyo)
	assert.Equal(t, "2026-01-01 to 2026-01-01", out.Intents[0].TimeRangeHint)
}
