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

// CompetitionService serves the competition HTTP surface: creation, joining,
// the live leaderboard and settled results. Settlement itself belongs to the
// SettlementService; the cancel endpoint just delegates.
type CompetitionService struct {
	DB          *gorm.DB
	Wallets     *WalletService
	Settlements *SettlementService
}

func NewCompetitionService(db *gorm.DB, wallets *WalletService, settlements *SettlementService) *CompetitionService {
	return &CompetitionService{DB: db, Wallets: wallets, Settlements: settlements}
}

type createCompetitionRequest struct {
	Name                    string               `json:"name"`
	Description             string               `json:"description"`
	RankingMethod           models.RankingMethod `json:"ranking_method"`
	MinimumTrades           int                  `json:"minimum_trades"`
	EntryFee                float64              `json:"entry_fee"`
	StartingCapital         float64              `json:"starting_capital"`
	PrizePool               float64              `json:"prize_pool"`
	PrizeDistribution       []models.PrizeSlot   `json:"prize_distribution"`
	PlatformFeePercentage   float64              `json:"platform_fee_percentage"`
	RiskLimits              *models.RiskLimits   `json:"risk_limits"`
	DisqualifyOnLiquidation bool                 `json:"disqualify_on_liquidation"`
	MaxParticipants         int                  `json:"max_participants"`
	StartTime               time.Time            `json:"start_time"`
	EndTime                 time.Time            `json:"end_time"`
}

// CreateCompetition registers a new tournament in upcoming state.
func (s *CompetitionService) CreateCompetition(c *fiber.Ctx) error {
	var req createCompetitionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}
	if !req.EndTime.After(req.StartTime) {
		return c.Status(400).JSON(fiber.Map{"error": "end_time must be after start_time"})
	}
	if req.RankingMethod == "" {
		req.RankingMethod = models.RankByPnl
	}
	if req.StartingCapital <= 0 {
		req.StartingCapital = 10000
	}
	if err := validatePrizeDistribution(req.PrizeDistribution); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	if req.RiskLimits != nil {
		if err := ValidateRiskLimits(*req.RiskLimits); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
	}

	comp := models.Competition{
		ID:                      uuid.NewString(),
		Name:                    req.Name,
		Description:             req.Description,
		Status:                  models.CompetitionUpcoming,
		RankingMethod:           req.RankingMethod,
		MinimumTrades:           req.MinimumTrades,
		EntryFee:                req.EntryFee,
		StartingCapital:         req.StartingCapital,
		PrizePool:               req.PrizePool,
		PrizeDistribution:       req.PrizeDistribution,
		PlatformFeePercentage:   req.PlatformFeePercentage,
		RiskLimits:              req.RiskLimits,
		DisqualifyOnLiquidation: req.DisqualifyOnLiquidation,
		MaxParticipants:         req.MaxParticipants,
		StartTime:               req.StartTime,
		EndTime:                 req.EndTime,
	}
	if err := s.DB.Create(&comp).Error; err != nil {
		log.Printf("❌ [COMP] create failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create competition"})
	}

	log.Printf("✅ Competition created: %s (%s)", comp.Name, comp.ID)
	return c.Status(201).JSON(comp)
}

// JoinCompetition escrows the entry fee and seeds the simulated account.
// Joining is open while the competition is upcoming or active.
func (s *CompetitionService) JoinCompetition(c *fiber.Ctx) error {
	competitionID := c.Params("id")
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}

	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", competitionID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "competition not found"})
	}
	if comp.Status != models.CompetitionUpcoming && comp.Status != models.CompetitionActive {
		return c.Status(409).JSON(fiber.Map{"error": "competition is not open for entry"})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if comp.MaxParticipants > 0 {
			var count int64
			if err := tx.Model(&models.CompetitionParticipant{}).
				Where("competition_id = ? AND status != ?", comp.ID, models.ParticipantWithdrawn).
				Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(comp.MaxParticipants) {
				return fmt.Errorf("competition %s is full", comp.ID)
			}
		}

		if comp.EntryFee > 0 {
			if err := s.Wallets.ApplyDebit(tx, body.UserID, comp.EntryFee, models.TxEntryFee,
				models.RefCompetition, comp.ID, fmt.Sprintf("entry fee for competition %s", comp.Name)); err != nil {
				return err
			}
		}

		participant := models.CompetitionParticipant{
			ID:              uuid.NewString(),
			CompetitionID:   comp.ID,
			UserID:          body.UserID,
			Status:          models.ParticipantActive,
			JoinedAt:        time.Now(),
			StartingCapital: comp.StartingCapital,
			CurrentCapital:  comp.StartingCapital,
		}
		return tx.Create(&participant).Error
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return c.Status(402).JSON(fiber.Map{"error": "insufficient balance for entry fee"})
		}
		log.Printf("❌ [COMP] join failed for %s: %v", competitionID, err)
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("📥 User %s joined competition %s", body.UserID, comp.Name)
	return c.Status(201).JSON(fiber.Map{"competition_id": comp.ID, "user_id": body.UserID})
}

// ListCompetitions returns competitions, optionally filtered by status.
func (s *CompetitionService) ListCompetitions(c *fiber.Ctx) error {
	q := s.DB.Order("start_time DESC").Limit(100)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var comps []models.Competition
	if err := q.Find(&comps).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error listing competitions"})
	}
	return c.JSON(comps)
}

// GetCompetition returns one competition.
func (s *CompetitionService) GetCompetition(c *fiber.Ctx) error {
	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "competition not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error fetching competition"})
	}
	return c.JSON(comp)
}

// GetLeaderboard computes the live standings from the current participant
// snapshot. Same ranking math the settlement will use at the end.
func (s *CompetitionService) GetLeaderboard(c *fiber.Ctx) error {
	competitionID := c.Params("id")

	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", competitionID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "competition not found"})
	}

	var participants []models.CompetitionParticipant
	if err := s.DB.Where("competition_id = ? AND status != ?", competitionID, models.ParticipantWithdrawn).
		Find(&participants).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error fetching participants"})
	}

	metrics := make([]ParticipantMetrics, 0, len(participants))
	for _, p := range participants {
		metrics = append(metrics, competitionMetrics(p))
	}
	standings, err := RankParticipants(comp.RankingMethod, metrics, comp.MinimumTrades)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"competition_id": comp.ID,
		"ranking_method": comp.RankingMethod,
		"standings":      standings,
	})
}

// GetResults returns the settled winners. 409 while still running.
func (s *CompetitionService) GetResults(c *fiber.Ctx) error {
	competitionID := c.Params("id")

	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", competitionID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "competition not found"})
	}
	if comp.Status != models.CompetitionCompleted && comp.Status != models.CompetitionCancelled {
		return c.Status(409).JSON(fiber.Map{"error": "competition is not settled yet"})
	}

	var winners []models.CompetitionWinner
	if err := s.DB.Where("competition_id = ?", competitionID).
		Order("rank ASC").
		Find(&winners).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error fetching winners"})
	}

	return c.JSON(fiber.Map{
		"competition":         comp,
		"winners":             winners,
		"total_collected":     comp.TotalCollected,
		"platform_fee_earned": comp.PlatformFeeEarned,
		"unclaimed_pool":      comp.UnclaimedPool,
		"total_refunds":       comp.TotalRefunds,
	})
}

// CancelCompetition is the admin cancel endpoint.
func (s *CompetitionService) CancelCompetition(c *fiber.Ctx) error {
	competitionID := c.Params("id")
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&body)
	if body.Reason == "" {
		body.Reason = "cancelled by admin"
	}

	if err := s.Settlements.CancelCompetition(competitionID, body.Reason); err != nil {
		var integrity *IntegrityError
		if errors.As(err, &integrity) {
			return c.Status(409).JSON(fiber.Map{"error": integrity.Reason})
		}
		log.Printf("❌ [COMP] cancel failed for %s: %v", competitionID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to cancel competition"})
	}
	return c.JSON(fiber.Map{"status": models.CompetitionCancelled})
}
