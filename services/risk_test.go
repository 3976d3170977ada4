package services

import (
	"testing"

	"github.com/Mariosat15/Chatvot-sub008/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRiskLimits(t *testing.T) {
	assert.NoError(t, ValidateRiskLimits(DefaultRiskLimits()))

	// inverted ordering
	err := ValidateRiskLimits(models.RiskLimits{WarningPct: 20, MarginCallPct: 50, LiquidationPct: 100})
	assert.ErrorIs(t, err, ErrMisconfiguredThresholds)

	// equal thresholds
	err = ValidateRiskLimits(models.RiskLimits{WarningPct: 50, MarginCallPct: 50, LiquidationPct: 20})
	assert.ErrorIs(t, err, ErrMisconfiguredThresholds)

	// non-positive
	err = ValidateRiskLimits(models.RiskLimits{WarningPct: 100, MarginCallPct: 50, LiquidationPct: 0})
	assert.ErrorIs(t, err, ErrMisconfiguredThresholds)
}

func TestEvaluateMarginStatusNoExposure(t *testing.T) {
	state, err := EvaluateMarginStatus(10000, -500, 0, DefaultRiskLimits())
	require.NoError(t, err)
	assert.Equal(t, MarginHealthy, state)
}

func TestEvaluateMarginStatusNegativeEquity(t *testing.T) {
	state, err := EvaluateMarginStatus(1000, -1500, 200, DefaultRiskLimits())
	require.NoError(t, err)
	assert.Equal(t, MarginLiquidation, state)
}

func TestEvaluateMarginStatusBands(t *testing.T) {
	limits := DefaultRiskLimits() // warning 100, margin_call 50, liquidation 20

	cases := []struct {
		name       string
		capital    float64
		upnl       float64
		usedMargin float64
		want       MarginState
	}{
		{"well above warning", 2000, 0, 1000, MarginHealthy},
		{"exactly at warning", 1000, 0, 1000, MarginWarning},
		{"between warning and call", 800, 0, 1000, MarginWarning},
		{"exactly at margin call", 500, 0, 1000, MarginCall},
		{"between call and liquidation", 300, 0, 1000, MarginCall},
		{"exactly at liquidation", 200, 0, 1000, MarginLiquidation},
		{"below liquidation", 100, 0, 1000, MarginLiquidation},
		{"losses pull equity down", 1500, -1300, 1000, MarginLiquidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state, err := EvaluateMarginStatus(tc.capital, tc.upnl, tc.usedMargin, limits)
			require.NoError(t, err)
			assert.Equal(t, tc.want, state)
		})
	}
}

func TestEvaluateMarginStatusRejectsBadLimits(t *testing.T) {
	_, err := EvaluateMarginStatus(1000, 0, 500,
		models.RiskLimits{WarningPct: 10, MarginCallPct: 50, LiquidationPct: 90})
	assert.ErrorIs(t, err, ErrMisconfiguredThresholds)
}
