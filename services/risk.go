package services

import (
	"errors"
	"fmt"

	"github.com/Mariosat15/Chatvot-sub008/models"
)

// MarginState classifies a participant's margin health.
type MarginState string

const (
	MarginHealthy     MarginState = "healthy"
	MarginWarning     MarginState = "warning"
	MarginCall        MarginState = "margin_call"
	MarginLiquidation MarginState = "liquidation"
)

var ErrMisconfiguredThresholds = errors.New("risk thresholds must satisfy liquidation < margin_call < warning")

// DefaultRiskLimits apply when a competition carries no explicit limits.
func DefaultRiskLimits() models.RiskLimits {
	return models.RiskLimits{
		WarningPct:     100,
		MarginCallPct:  50,
		LiquidationPct: 20,
	}
}

// ValidateRiskLimits rejects misconfigured thresholds before any status is
// computed. Silently misclassifying a liquidation is worse than failing.
func ValidateRiskLimits(limits models.RiskLimits) error {
	if limits.LiquidationPct <= 0 || limits.MarginCallPct <= 0 || limits.WarningPct <= 0 {
		return fmt.Errorf("%w: got warning=%.2f margin_call=%.2f liquidation=%.2f",
			ErrMisconfiguredThresholds, limits.WarningPct, limits.MarginCallPct, limits.LiquidationPct)
	}
	if !(limits.LiquidationPct < limits.MarginCallPct && limits.MarginCallPct < limits.WarningPct) {
		return fmt.Errorf("%w: got warning=%.2f margin_call=%.2f liquidation=%.2f",
			ErrMisconfiguredThresholds, limits.WarningPct, limits.MarginCallPct, limits.LiquidationPct)
	}
	return nil
}

// EvaluateMarginStatus computes the margin state from effective equity
// (capital + unrealized PnL) as a percent of used margin. Lower ratio means
// more danger. Pure function, no I/O.
func EvaluateMarginStatus(currentCapital, unrealizedPnL, usedMargin float64, limits models.RiskLimits) (MarginState, error) {
	if err := ValidateRiskLimits(limits); err != nil {
		return "", err
	}
	if usedMargin <= 0 {
		return MarginHealthy, nil
	}

	equity := currentCapital + unrealizedPnL
	if equity <= 0 {
		return MarginLiquidation, nil
	}

	ratio := equity / usedMargin * 100
	switch {
	case ratio <= limits.LiquidationPct:
		return MarginLiquidation, nil
	case ratio <= limits.MarginCallPct:
		return MarginCall, nil
	case ratio <= limits.WarningPct:
		return MarginWarning, nil
	default:
		return MarginHealthy, nil
	}
}
