package workers

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/Mariosat15/Chatvot-sub008/models"
	"github.com/Mariosat15/Chatvot-sub008/services"

	"gorm.io/gorm"
)

// MarginWorker periodically sweeps every open position in every active
// competition, marks it to market and force-closes accounts that breach the
// liquidation threshold.
type MarginWorker struct {
	DB       *gorm.DB
	Prices   *PriceClient
	Notifier *services.NotifierClient
}

func NewMarginWorker(db *gorm.DB, prices *PriceClient, notifier *services.NotifierClient) *MarginWorker {
	return &MarginWorker{DB: db, Prices: prices, Notifier: notifier}
}

// SweepSummary reports one sweep pass.
type SweepSummary struct {
	Checked     int
	Warned      int
	MarginCalls int
	Liquidated  int
	Failed      []services.BatchError
}

// MarkPrice is the side-aware exit price: a long closes by selling at the bid,
// a short closes by buying back at the ask.
func MarkPrice(side models.PositionSide, q Quote) float64 {
	if side == models.SideShort {
		return q.Ask
	}
	return q.Bid
}

// UnrealizedPnl of one open position against its mark price.
func UnrealizedPnl(side models.PositionSide, entryPrice, quantity, mark float64) float64 {
	if side == models.SideShort {
		return (entryPrice - mark) * quantity
	}
	return (mark - entryPrice) * quantity
}

// SymbolUnion collects the distinct symbols of a position set, sorted so the
// resulting price request is deterministic.
func SymbolUnion(positions []models.TradingPosition) []string {
	seen := make(map[string]struct{})
	for _, p := range positions {
		seen[p.Symbol] = struct{}{}
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// PositionClose is one forced close a liquidation pass decided on.
type PositionClose struct {
	PositionID string
	Symbol     string
	Mark       float64
	Pnl        float64
	Margin     float64
}

// LiquidationOutcome is the pure result of liquidating one participant: which
// positions close at which marks, and the aggregate deltas to realize. No I/O
// happens while building it.
type LiquidationOutcome struct {
	Closes      []PositionClose
	Realized    float64
	FreedMargin float64
	Wins        int
	GrossProfit float64
	GrossLoss   float64
	Disqualify  bool
}

// BuildLiquidation decides the forced closes for one participant from a
// position snapshot and the sweep's quotes. Every priced open position is
// closed; unpriced ones are left for the next sweep. A participant whose
// symbols are all unpriced produces an empty outcome — nothing closed, no
// disqualification.
func BuildLiquidation(positions []models.TradingPosition, quotes map[string]Quote, disqualifyOnLiquidation bool) LiquidationOutcome {
	var out LiquidationOutcome
	for _, p := range positions {
		if p.Status != models.PositionOpen {
			continue
		}
		q, priced := quotes[p.Symbol]
		if !priced {
			continue
		}
		mark := MarkPrice(p.Side, q)
		pnl := UnrealizedPnl(p.Side, p.EntryPrice, p.Quantity, mark)

		out.Closes = append(out.Closes, PositionClose{
			PositionID: p.ID,
			Symbol:     p.Symbol,
			Mark:       mark,
			Pnl:        pnl,
			Margin:     p.Margin,
		})
		out.Realized += pnl
		out.FreedMargin += p.Margin
		if pnl > 0 {
			out.GrossProfit += pnl
			out.Wins++
		} else {
			out.GrossLoss += -pnl
		}
	}
	out.Disqualify = disqualifyOnLiquidation && len(out.Closes) > 0
	return out
}

// PollMargins runs the sweep on a fixed interval until the context ends.
func PollMargins(ctx context.Context, w *MarginWorker, interval time.Duration) {
	log.Println("Starting margin sweep loop...")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Margin sweep loop stopped.")
			return
		case <-ticker.C:
			sum := w.SweepOnce(ctx)
			if sum.Checked > 0 {
				log.Printf("[Margin] sweep: checked=%d warned=%d margin_calls=%d liquidated=%d failed=%d",
					sum.Checked, sum.Warned, sum.MarginCalls, sum.Liquidated, len(sum.Failed))
			}
		}
	}
}

// SweepOnce evaluates every exposed participant of every active competition.
// One batched price fetch per sweep; a symbol the price service cannot quote
// leaves its positions unmarked until the next pass.
func (w *MarginWorker) SweepOnce(ctx context.Context) SweepSummary {
	var summary SweepSummary

	var comps []models.Competition
	if err := w.DB.Where("status = ?", models.CompetitionActive).Find(&comps).Error; err != nil {
		log.Printf("❌ [Margin] DB error listing active competitions: %v", err)
		return summary
	}
	if len(comps) == 0 {
		return summary
	}

	compByID := make(map[string]models.Competition, len(comps))
	compIDs := make([]string, 0, len(comps))
	for _, c := range comps {
		compByID[c.ID] = c
		compIDs = append(compIDs, c.ID)
	}

	var positions []models.TradingPosition
	if err := w.DB.Where("competition_id IN ? AND status = ?", compIDs, models.PositionOpen).
		Find(&positions).Error; err != nil {
		log.Printf("❌ [Margin] DB error listing open positions: %v", err)
		return summary
	}
	if len(positions) == 0 {
		return summary
	}

	quotes, err := w.Prices.GetQuotes(ctx, SymbolUnion(positions))
	if err != nil {
		log.Printf("❌ [Margin] price fetch failed, skipping sweep: %v", err)
		return summary
	}

	// Group open positions per (competition, user)
	type exposureKey struct{ compID, userID string }
	byParticipant := make(map[exposureKey][]models.TradingPosition)
	for _, p := range positions {
		k := exposureKey{p.CompetitionID, p.UserID}
		byParticipant[k] = append(byParticipant[k], p)
	}

	for key, userPositions := range byParticipant {
		summary.Checked++

		var participant models.CompetitionParticipant
		if err := w.DB.Where("competition_id = ? AND user_id = ? AND status = ?",
			key.compID, key.userID, models.ParticipantActive).
			First(&participant).Error; err != nil {
			// withdrawn or disqualified mid-sweep; their positions are closed
			// elsewhere
			continue
		}

		comp := compByID[key.compID]
		limits := services.DefaultRiskLimits()
		if comp.RiskLimits != nil {
			limits = *comp.RiskLimits
		}

		var unrealized float64
		for _, p := range userPositions {
			q, priced := quotes[p.Symbol]
			if !priced {
				continue
			}
			unrealized += UnrealizedPnl(p.Side, p.EntryPrice, p.Quantity, MarkPrice(p.Side, q))
		}

		state, err := services.EvaluateMarginStatus(participant.CurrentCapital, unrealized, participant.UsedMargin, limits)
		if err != nil {
			log.Printf("❌ [Margin] competition %s has bad risk limits: %v", comp.ID, err)
			summary.Failed = append(summary.Failed, services.BatchError{ID: comp.ID, Error: err.Error()})
			continue
		}

		switch state {
		case services.MarginWarning:
			summary.Warned++
		case services.MarginCall:
			summary.MarginCalls++
			w.Notifier.Notify(participant.UserID, "margin_call_warning", map[string]string{
				"competition_id": comp.ID,
				"used_margin":    fmt.Sprintf("%.2f", participant.UsedMargin),
			})
		case services.MarginLiquidation:
			closed, err := w.liquidate(comp, participant, userPositions, quotes)
			if err != nil {
				log.Printf("❌ [Margin] liquidation of %s in %s failed: %v", participant.UserID, comp.ID, err)
				summary.Failed = append(summary.Failed, services.BatchError{ID: participant.ID, Error: err.Error()})
				continue
			}
			if closed > 0 {
				summary.Liquidated++
			}
		}
	}
	return summary
}

// liquidate force-closes every priced open position at its mark and realizes
// the losses onto the participant. Unpriced positions stay open and the next
// sweep finishes the job — partial liquidation is acceptable, silent losses
// are not.
func (w *MarginWorker) liquidate(comp models.Competition, participant models.CompetitionParticipant, positions []models.TradingPosition, quotes map[string]Quote) (int, error) {
	outcome := BuildLiquidation(positions, quotes, comp.DisqualifyOnLiquidation)
	if len(outcome.Closes) == 0 {
		return 0, nil
	}

	now := time.Now()
	var totalClosed int
	var totalRealized float64

	err := w.DB.Transaction(func(tx *gorm.DB) error {
		// The outcome was built from a snapshot; re-check each close against the
		// live row and only realize the deltas of closes that actually applied.
		var realized, freedMargin float64
		var closed, wins int
		var grossProfit, grossLoss float64

		for _, pc := range outcome.Closes {
			res := tx.Model(&models.TradingPosition{}).
				Where("id = ? AND status = ?", pc.PositionID, models.PositionOpen).
				Updates(map[string]interface{}{
					"status":       models.PositionClosed,
					"close_price":  pc.Mark,
					"close_reason": models.CloseReasonMarginCall,
					"pnl":          pc.Pnl,
					"closed_at":    &now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// closed by the user a moment ago; skip
				continue
			}

			realized += pc.Pnl
			freedMargin += pc.Margin
			closed++
			if pc.Pnl > 0 {
				grossProfit += pc.Pnl
				wins++
			} else {
				grossLoss += -pc.Pnl
			}
		}
		if closed == 0 {
			return nil
		}

		updates := map[string]interface{}{
			"current_capital":        gorm.Expr("current_capital + ?", realized),
			"pnl":                    gorm.Expr("pnl + ?", realized),
			"used_margin":            gorm.Expr("GREATEST(used_margin - ?, 0)", freedMargin),
			"current_open_positions": gorm.Expr("GREATEST(current_open_positions - ?, 0)", closed),
			"total_trades":           gorm.Expr("total_trades + ?", closed),
			"winning_trades":         gorm.Expr("winning_trades + ?", wins),
			"gross_profit":           gorm.Expr("gross_profit + ?", grossProfit),
			"gross_loss":             gorm.Expr("gross_loss + ?", grossLoss),
			"liquidated_at":          &now,
		}
		if outcome.Disqualify {
			updates["status"] = models.ParticipantDisqualified
			updates["disqualify_reason"] = services.DQReasonLiquidated
		}
		if err := tx.Model(&models.CompetitionParticipant{}).
			Where("id = ?", participant.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		totalClosed = closed
		totalRealized = realized
		return nil
	})
	if err != nil {
		return 0, err
	}
	if totalClosed == 0 {
		return 0, nil
	}

	log.Printf("⚠️  Liquidated %s in competition %s: closed=%d realized=%.2f dq=%v",
		participant.UserID, comp.ID, totalClosed, totalRealized, outcome.Disqualify)

	w.Notifier.Notify(participant.UserID, "liquidated", map[string]string{
		"competition_id":   comp.ID,
		"positions_closed": fmt.Sprintf("%d", totalClosed),
		"realized_pnl":     fmt.Sprintf("%.2f", totalRealized),
	})
	return totalClosed, nil
}
