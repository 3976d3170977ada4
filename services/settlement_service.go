package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Mariosat15/Chatvot-sub008/models"
	"github.com/Mariosat15/Chatvot-sub008/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BatchError is one failed item of a polling batch.
type BatchError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchSummary is what each scheduler tick reports.
type BatchSummary struct {
	Checked   int          `json:"checked"`
	Succeeded int          `json:"succeeded"`
	Failed    []BatchError `json:"failed,omitempty"`
}

// SettlementService drives expired competitions through the settlement core
// and applies the resulting mutations atomically.
type SettlementService struct {
	DB          *gorm.DB
	Wallets     *WalletService
	Notifier    *NotifierClient
	Progression *ProgressionService
}

func NewSettlementService(db *gorm.DB, wallets *WalletService, notifier *NotifierClient, progression *ProgressionService) *SettlementService {
	return &SettlementService{DB: db, Wallets: wallets, Notifier: notifier, Progression: progression}
}

// ActivateDueCompetitions flips upcoming competitions whose start time has
// passed to active.
func (s *SettlementService) ActivateDueCompetitions() BatchSummary {
	var summary BatchSummary
	now := time.Now()

	var comps []models.Competition
	if err := s.DB.Where("status = ? AND start_time <= ?", models.CompetitionUpcoming, now).
		Find(&comps).Error; err != nil {
		log.Printf("❌ [ACTIVATE] DB error: %v", err)
		return summary
	}

	for _, comp := range comps {
		summary.Checked++
		res := s.DB.Model(&models.Competition{}).
			Where("id = ? AND status = ?", comp.ID, models.CompetitionUpcoming).
			Update("status", models.CompetitionActive)
		if res.Error != nil {
			summary.Failed = append(summary.Failed, BatchError{ID: comp.ID, Error: res.Error.Error()})
			continue
		}
		summary.Succeeded++
		log.Printf("✅ Competition activated: %s (%s)", comp.Name, comp.ID)
	}
	return summary
}

// SettleDueCompetitions settles every active competition past its end time.
// One competition failing is logged and retried next tick; the batch goes on.
func (s *SettlementService) SettleDueCompetitions() BatchSummary {
	var summary BatchSummary
	now := time.Now()

	var comps []models.Competition
	if err := s.DB.Where("status = ? AND end_time <= ?", models.CompetitionActive, now).
		Find(&comps).Error; err != nil {
		log.Printf("❌ [SETTLE] DB error listing due competitions: %v", err)
		return summary
	}

	for _, comp := range comps {
		summary.Checked++
		if err := s.SettleCompetition(comp.ID); err != nil {
			log.Printf("❌ [SETTLE] competition %s: %v", comp.ID, err)
			summary.Failed = append(summary.Failed, BatchError{ID: comp.ID, Error: err.Error()})
			continue
		}
		summary.Succeeded++
	}
	return summary
}

// SettleCompetition finalizes one competition. Idempotent: the status flip
// active→completed is a compare-and-set inside the money transaction, so a
// re-entrant tick (or a concurrent instance) credits nobody twice.
func (s *SettlementService) SettleCompetition(competitionID string) error {
	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", competitionID).Error; err != nil {
		return fmt.Errorf("failed to load competition: %w", err)
	}
	if comp.Status == models.CompetitionCompleted || comp.Status == models.CompetitionCancelled {
		// already terminal — nothing to do
		return nil
	}

	// Single consistent snapshot: all participants are read once, before any
	// ranking math.
	var participants []models.CompetitionParticipant
	if err := s.DB.Where("competition_id = ?", competitionID).Find(&participants).Error; err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}

	outcome, err := BuildCompetitionSettlement(comp, participants)
	if err != nil {
		return err
	}

	claimed := false
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Competition{}).
			Where("id = ? AND status = ?", competitionID, models.CompetitionActive).
			Updates(map[string]interface{}{
				"status":              models.CompetitionCompleted,
				"total_collected":     outcome.TotalCollected,
				"platform_fee_earned": outcome.PlatformFee,
				"unclaimed_pool":      outcome.UnclaimedPool,
				"settled_at":          &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lost the claim to a concurrent run — leave everything untouched
			return nil
		}
		claimed = true

		for _, credit := range outcome.Credits {
			if err := s.Wallets.ApplyCredit(tx, credit, models.RefCompetition, competitionID); err != nil {
				return err
			}
		}

		for _, w := range outcome.Winners {
			winner := models.CompetitionWinner{
				ID:            uuid.NewString(),
				CompetitionID: competitionID,
				UserID:        w.UserID,
				Rank:          w.Rank,
				Percentage:    w.Percentage,
				Amount:        w.Amount,
				FinalPnl:      w.FinalPnl,
			}
			if err := tx.Create(&winner).Error; err != nil {
				return err
			}
		}

		for _, st := range outcome.Standings {
			updates := map[string]interface{}{"final_rank": st.CurrentRank}
			for _, w := range outcome.Winners {
				if w.UserID == st.UserID {
					updates["prize_won"] = w.Amount
				}
			}
			if err := tx.Model(&models.CompetitionParticipant{}).
				Where("competition_id = ? AND user_id = ?", competitionID, st.UserID).
				Updates(updates).Error; err != nil {
				return err
			}
		}

		for _, d := range outcome.Disqualified {
			if err := tx.Model(&models.CompetitionParticipant{}).
				Where("competition_id = ? AND user_id = ? AND status = ?",
					competitionID, d.UserID, models.ParticipantActive).
				Updates(map[string]interface{}{
					"status":            models.ParticipantDisqualified,
					"disqualify_reason": d.Reason,
				}).Error; err != nil {
				return err
			}
		}

		// Simulated positions still open at the bell are closed as part of the
		// run's wind-down.
		if err := tx.Model(&models.TradingPosition{}).
			Where("competition_id = ? AND status = ?", competitionID, models.PositionOpen).
			Updates(map[string]interface{}{
				"status":       models.PositionClosed,
				"close_reason": models.CloseReasonCompetitionEnd,
				"closed_at":    &now,
			}).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("settlement transaction failed: %w", err)
	}
	if !claimed {
		return nil
	}

	log.Printf("✅ Competition settled: %s — collected=%.2f paid=%.2f fee=%.2f unclaimed=%.2f winners=%d dq=%d",
		comp.Name, outcome.TotalCollected, outcome.PaidOut, outcome.PlatformFee,
		outcome.UnclaimedPool, len(outcome.Winners), len(outcome.Disqualified))

	s.runCompetitionEffects(comp, outcome)
	return nil
}

// CancelCompetition refunds every entered participant in full and marks the
// competition cancelled. Admin entry point, never reached by the timer.
func (s *SettlementService) CancelCompetition(competitionID, reason string) error {
	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", competitionID).Error; err != nil {
		return fmt.Errorf("failed to load competition: %w", err)
	}

	var participants []models.CompetitionParticipant
	if err := s.DB.Where("competition_id = ?", competitionID).Find(&participants).Error; err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}

	outcome, err := BuildCompetitionCancellation(comp, participants)
	if err != nil {
		return err
	}

	claimed := false
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Competition{}).
			Where("id = ? AND status IN ?", competitionID,
				[]models.CompetitionStatus{models.CompetitionUpcoming, models.CompetitionActive}).
			Updates(map[string]interface{}{
				"status":          models.CompetitionCancelled,
				"total_collected": outcome.TotalCollected,
				"total_refunds":   outcome.TotalRefunds,
				"cancel_reason":   reason,
				"settled_at":      &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true

		for _, credit := range outcome.Credits {
			if err := s.Wallets.ApplyCredit(tx, credit, models.RefCompetition, competitionID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cancellation transaction failed: %w", err)
	}
	if !claimed {
		return nil
	}

	log.Printf("✅ Competition cancelled: %s — refunded=%.2f to %d participant(s)",
		comp.Name, outcome.TotalRefunds, len(outcome.Credits))

	s.runCompetitionEffects(comp, outcome)
	return nil
}

// runCompetitionEffects applies the best-effort side channel: notifications,
// XP/badges and the audit archive. Failures here never roll settlement back.
func (s *SettlementService) runCompetitionEffects(comp models.Competition, outcome *CompetitionOutcome) {
	for _, n := range outcome.Notifications {
		s.Notifier.Notify(n.UserID, n.Event, n.Vars)
	}
	for _, award := range outcome.XPAwards {
		if err := s.Progression.RecordCompetitionResult(award.UserID, comp.ID, award.FinalRank, award.Won); err != nil {
			log.Printf("⚠️  [XP] failed to record competition result for %s: %v", award.UserID, err)
		}
	}
	archiveSettlementReport(models.RefCompetition, comp.ID, outcome)
}

// archiveSettlementReport uploads a JSON settlement report to R2 for auditing.
// Best-effort: the ledger is the source of truth, the archive is a copy.
func archiveSettlementReport(kind, id string, report interface{}) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("⚠️  [AUDIT] failed to marshal %s report for %s: %v", kind, id, err)
		return
	}
	key := fmt.Sprintf("settlements/%s/%s.json", kind, id)
	if err := utils.UploadSettlementReport(key, data); err != nil {
		log.Printf("⚠️  [AUDIT] failed to archive %s report for %s: %v", kind, id, err)
		return
	}
	log.Printf("📦 Settlement report archived: %s", key)
}
