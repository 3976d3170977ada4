package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Mariosat15/Chatvot-sub008/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChallengeService owns the 1v1 lifecycle: invite, accept/decline, expiry of
// stale invites and settlement of finished duels.
type ChallengeService struct {
	DB          *gorm.DB
	Wallets     *WalletService
	Notifier    *NotifierClient
	Progression *ProgressionService
}

func NewChallengeService(db *gorm.DB, wallets *WalletService, notifier *NotifierClient, progression *ProgressionService) *ChallengeService {
	return &ChallengeService{DB: db, Wallets: wallets, Notifier: notifier, Progression: progression}
}

// SettleDueChallenges settles every active challenge past its end time.
func (s *ChallengeService) SettleDueChallenges() BatchSummary {
	var summary BatchSummary
	now := time.Now()

	var challenges []models.Challenge
	if err := s.DB.Where("status = ? AND end_time IS NOT NULL AND end_time <= ?", models.ChallengeActive, now).
		Find(&challenges).Error; err != nil {
		log.Printf("❌ [SETTLE] DB error listing due challenges: %v", err)
		return summary
	}

	for _, ch := range challenges {
		summary.Checked++
		if err := s.SettleChallenge(ch.ID); err != nil {
			log.Printf("❌ [SETTLE] challenge %s: %v", ch.ID, err)
			summary.Failed = append(summary.Failed, BatchError{ID: ch.ID, Error: err.Error()})
			continue
		}
		summary.Succeeded++
	}
	return summary
}

// SettleChallenge finalizes one challenge. Same idempotency scheme as
// competitions: the active→completed flip is conditional and carries the money.
func (s *ChallengeService) SettleChallenge(challengeID string) error {
	var ch models.Challenge
	if err := s.DB.First(&ch, "id = ?", challengeID).Error; err != nil {
		return fmt.Errorf("failed to load challenge: %w", err)
	}
	if ch.Status != models.ChallengeActive {
		// pending/declined/expired challenges are not settleable; completed ones
		// already were
		return nil
	}

	var participants []models.ChallengeParticipant
	if err := s.DB.Where("challenge_id = ?", challengeID).Find(&participants).Error; err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}

	outcome, err := BuildChallengeSettlement(ch, participants)
	if err != nil {
		return err
	}

	claimed := false
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", challengeID, models.ChallengeActive).
			Updates(map[string]interface{}{
				"status":              models.ChallengeCompleted,
				"winner_id":           outcome.WinnerID,
				"winner_prize":        outcome.WinnerPrize,
				"is_tie":              outcome.IsTie,
				"both_disqualified":   outcome.BothDisqualified,
				"platform_fee_earned": outcome.PlatformFee,
				"unclaimed_pool":      outcome.UnclaimedPool,
				"settled_at":          &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true

		for _, credit := range outcome.Credits {
			if err := s.Wallets.ApplyCredit(tx, credit, models.RefChallenge, challengeID); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.TradingPosition{}).
			Where("challenge_id = ? AND status = ?", challengeID, models.PositionOpen).
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
		return fmt.Errorf("challenge settlement transaction failed: %w", err)
	}
	if !claimed {
		return nil
	}

	log.Printf("✅ Challenge settled: %s — winner=%q tie=%v bothDQ=%v prize=%.2f fee=%.2f",
		ch.ID, outcome.WinnerID, outcome.IsTie, outcome.BothDisqualified,
		outcome.WinnerPrize, outcome.PlatformFee)

	for _, n := range outcome.Notifications {
		s.Notifier.Notify(n.UserID, n.Event, n.Vars)
	}
	for _, award := range outcome.XPAwards {
		if err := s.Progression.RecordChallengeResult(award.UserID, ch.ID, award.Won); err != nil {
			log.Printf("⚠️  [XP] failed to record challenge result for %s: %v", award.UserID, err)
		}
	}
	archiveSettlementReport(models.RefChallenge, ch.ID, outcome)
	return nil
}

// ExpirePendingChallenges flips invites past their accept deadline to expired
// and refunds the challenger's stake.
func (s *ChallengeService) ExpirePendingChallenges() BatchSummary {
	var summary BatchSummary
	now := time.Now()

	var challenges []models.Challenge
	if err := s.DB.Where("status = ? AND accept_deadline <= ?", models.ChallengePending, now).
		Find(&challenges).Error; err != nil {
		log.Printf("❌ [EXPIRE] DB error listing pending challenges: %v", err)
		return summary
	}

	for _, ch := range challenges {
		summary.Checked++
		if err := s.expireChallenge(ch); err != nil {
			log.Printf("❌ [EXPIRE] challenge %s: %v", ch.ID, err)
			summary.Failed = append(summary.Failed, BatchError{ID: ch.ID, Error: err.Error()})
			continue
		}
		summary.Succeeded++
	}
	return summary
}

func (s *ChallengeService) expireChallenge(ch models.Challenge) error {
	claimed := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", ch.ID, models.ChallengePending).
			Update("status", models.ChallengeExpired)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true

		if ch.EntryFee > 0 {
			refund := Credit{
				UserID:      ch.ChallengerID,
				Type:        models.TxEntryRefund,
				Amount:      ch.EntryFee,
				Description: fmt.Sprintf("entry fee refund for expired challenge %s", ch.ID),
			}
			return s.Wallets.ApplyCredit(tx, refund, models.RefChallenge, ch.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if claimed {
		log.Printf("⏰ Challenge expired unanswered: %s (challenger %s refunded %.2f)",
			ch.ID, ch.ChallengerID, ch.EntryFee)
		s.Notifier.Notify(ch.ChallengerID, "challenge_expired",
			map[string]string{"challenge_id": ch.ID, "refund": fmt.Sprintf("%.2f", ch.EntryFee)})
	}
	return nil
}

// --- HTTP handlers ---

type createChallengeRequest struct {
	ChallengerID          string               `json:"challenger_id"`
	ChallengedID          string               `json:"challenged_id"`
	EntryFee              float64              `json:"entry_fee"`
	RankingMethod         models.RankingMethod `json:"ranking_method"`
	MinimumTrades         int                  `json:"minimum_trades"`
	PlatformFeePercentage float64              `json:"platform_fee_percentage"`
	StartingCapital       float64              `json:"starting_capital"`
	DurationSeconds       int64                `json:"duration_seconds"`
	AcceptWindowSeconds   int64                `json:"accept_window_seconds"`
}

// CreateChallenge issues an invite. The challenger's stake is escrowed
// immediately; the challenged side pays on accept.
func (s *ChallengeService) CreateChallenge(c *fiber.Ctx) error {
	var req createChallengeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.ChallengerID == "" || req.ChallengedID == "" || req.ChallengerID == req.ChallengedID {
		return c.Status(400).JSON(fiber.Map{"error": "challenger and challenged must be two different users"})
	}
	if req.EntryFee < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "entry fee cannot be negative"})
	}
	if req.RankingMethod == "" {
		req.RankingMethod = models.RankByPnl
	}
	if req.DurationSeconds <= 0 {
		req.DurationSeconds = 86400
	}
	if req.AcceptWindowSeconds <= 0 {
		req.AcceptWindowSeconds = 86400
	}
	if req.StartingCapital <= 0 {
		req.StartingCapital = 10000
	}

	ch := models.Challenge{
		ID:                    uuid.NewString(),
		ChallengerID:          req.ChallengerID,
		ChallengedID:          req.ChallengedID,
		Status:                models.ChallengePending,
		RankingMethod:         req.RankingMethod,
		MinimumTrades:         req.MinimumTrades,
		EntryFee:              req.EntryFee,
		StartingCapital:       req.StartingCapital,
		PlatformFeePercentage: req.PlatformFeePercentage,
		AcceptDeadline:        time.Now().Add(time.Duration(req.AcceptWindowSeconds) * time.Second),
		Duration:              req.DurationSeconds,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if ch.EntryFee > 0 {
			if err := s.Wallets.ApplyDebit(tx, ch.ChallengerID, ch.EntryFee, models.TxEntryFee,
				models.RefChallenge, ch.ID, fmt.Sprintf("entry fee for challenge %s", ch.ID)); err != nil {
				return err
			}
		}
		if err := tx.Create(&ch).Error; err != nil {
			return err
		}
		participant := models.ChallengeParticipant{
			ID:              uuid.NewString(),
			ChallengeID:     ch.ID,
			UserID:          ch.ChallengerID,
			Status:          models.ParticipantActive,
			JoinedAt:        time.Now(),
			StartingCapital: ch.StartingCapital,
			CurrentCapital:  ch.StartingCapital,
		}
		return tx.Create(&participant).Error
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return c.Status(402).JSON(fiber.Map{"error": "insufficient balance for entry fee"})
		}
		log.Printf("❌ [CHALLENGE] create failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create challenge"})
	}

	s.Notifier.Notify(ch.ChallengedID, "challenge_received", map[string]string{
		"challenge_id": ch.ID,
		"challenger":   ch.ChallengerID,
		"entry_fee":    fmt.Sprintf("%.2f", ch.EntryFee),
	})
	return c.Status(201).JSON(ch)
}

// AcceptChallenge: the invited user stakes their fee and the duel clock starts.
func (s *ChallengeService) AcceptChallenge(c *fiber.Ctx) error {
	challengeID := c.Params("id")
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}

	var ch models.Challenge
	if err := s.DB.First(&ch, "id = ?", challengeID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
	}
	if ch.ChallengedID != body.UserID {
		return c.Status(403).JSON(fiber.Map{"error": "only the challenged user can accept"})
	}

	now := time.Now()
	endTime := now.Add(time.Duration(ch.Duration) * time.Second)

	claimed := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Challenge{}).
			Where("id = ? AND status = ? AND accept_deadline > ?", challengeID, models.ChallengePending, now).
			Updates(map[string]interface{}{
				"status":     models.ChallengeActive,
				"start_time": &now,
				"end_time":   &endTime,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true

		if ch.EntryFee > 0 {
			if err := s.Wallets.ApplyDebit(tx, body.UserID, ch.EntryFee, models.TxEntryFee,
				models.RefChallenge, ch.ID, fmt.Sprintf("entry fee for challenge %s", ch.ID)); err != nil {
				return err
			}
		}
		participant := models.ChallengeParticipant{
			ID:              uuid.NewString(),
			ChallengeID:     ch.ID,
			UserID:          body.UserID,
			Status:          models.ParticipantActive,
			JoinedAt:        now,
			StartingCapital: ch.StartingCapital,
			CurrentCapital:  ch.StartingCapital,
		}
		return tx.Create(&participant).Error
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return c.Status(402).JSON(fiber.Map{"error": "insufficient balance for entry fee"})
		}
		log.Printf("❌ [CHALLENGE] accept failed for %s: %v", challengeID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to accept challenge"})
	}
	if !claimed {
		return c.Status(409).JSON(fiber.Map{"error": "challenge is no longer pending"})
	}

	log.Printf("⚔️  Challenge accepted: %s (%s vs %s, ends %s)",
		ch.ID, ch.ChallengerID, ch.ChallengedID, endTime.Format(time.RFC3339))
	s.Notifier.Notify(ch.ChallengerID, "challenge_accepted", map[string]string{"challenge_id": ch.ID})
	return c.JSON(fiber.Map{"status": models.ChallengeActive, "end_time": endTime})
}

// DeclineChallenge refunds the challenger and closes the invite.
func (s *ChallengeService) DeclineChallenge(c *fiber.Ctx) error {
	challengeID := c.Params("id")
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}

	var ch models.Challenge
	if err := s.DB.First(&ch, "id = ?", challengeID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
	}
	if ch.ChallengedID != body.UserID {
		return c.Status(403).JSON(fiber.Map{"error": "only the challenged user can decline"})
	}

	claimed := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", challengeID, models.ChallengePending).
			Update("status", models.ChallengeDeclined)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true

		if ch.EntryFee > 0 {
			refund := Credit{
				UserID:      ch.ChallengerID,
				Type:        models.TxEntryRefund,
				Amount:      ch.EntryFee,
				Description: fmt.Sprintf("entry fee refund for declined challenge %s", ch.ID),
			}
			return s.Wallets.ApplyCredit(tx, refund, models.RefChallenge, ch.ID)
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ [CHALLENGE] decline failed for %s: %v", challengeID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to decline challenge"})
	}
	if !claimed {
		return c.Status(409).JSON(fiber.Map{"error": "challenge is no longer pending"})
	}

	s.Notifier.Notify(ch.ChallengerID, "challenge_declined", map[string]string{"challenge_id": ch.ID})
	return c.JSON(fiber.Map{"status": models.ChallengeDeclined})
}

// GetChallenge returns one challenge with its participants.
func (s *ChallengeService) GetChallenge(c *fiber.Ctx) error {
	challengeID := c.Params("id")

	var ch models.Challenge
	if err := s.DB.First(&ch, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error fetching challenge"})
	}

	var participants []models.ChallengeParticipant
	if err := s.DB.Where("challenge_id = ?", challengeID).Find(&participants).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error fetching participants"})
	}
	return c.JSON(fiber.Map{"challenge": ch, "participants": participants})
}
