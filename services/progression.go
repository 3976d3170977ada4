package services

import (
	"fmt"
	"math"
	"time"

	"github.com/Mariosat15/Chatvot-sub008/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// XPWeights define relative values (tunable via config/env later)
type XPWeights struct {
	TradeXP       int64 `default:"10"`
	CompetitionXP int64 `default:"100"` // 10× trade
	ChallengeXP   int64 `default:"50"`  // 5× trade
}

var DefaultXPWeights = XPWeights{
	TradeXP:       10,
	CompetitionXP: 100,
	ChallengeXP:   50,
}

// LevelConfig: XP needed for *next* level (e.g., level 1 → 2 needs BaseXPPerLevel * 1^1.2)
const BaseXPPerLevel = 100

// xpForNextLevel returns XP required to reach level+1 from current level
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	// L_n = floor(BaseXPPerLevel * n^1.2)
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// RankThresholds: levels required before rank-up
// e.g., Bronze→Silver at level 10, Silver→Gold at level 25, etc.
var RankThresholds = map[int]int{ // rank → min level
	1: 1,   // Bronze (start)
	2: 10,  // Silver
	3: 25,  // Gold
	4: 50,  // Platinum
	5: 100, // Diamond
}

func determineRank(level int) int {
	for rank := 5; rank >= 1; rank-- {
		if level >= RankThresholds[rank] {
			return rank
		}
	}
	return 1
}

type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent)
func (s *ProgressionService) EnsureProgressRecord(userID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := s.DB.Where("user_id = ?", userID).First(&prog).Error
	if err == gorm.ErrRecordNotFound {
		prog = models.UserProgress{
			ID:      uuid.NewString(),
			UserID:  userID,
			TotalXP: 0,
			Level:   1,
			Rank:    1,
		}
		if err := s.DB.Create(&prog).Error; err != nil {
			return nil, err
		}
		return &prog, nil
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

// AwardXP atomically updates XP, level, rank — returns updated progress
func (s *ProgressionService) AwardXP(userID string, xp int64, reason string) (*models.UserProgress, error) {
	var updatedProg *models.UserProgress
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var prog models.UserProgress
		if err := tx.Where("user_id = ?", userID).First(&prog).Error; err != nil {
			return fmt.Errorf("progress record not found for %s", userID)
		}

		oldRank := prog.Rank

		prog.TotalXP += xp

		// Level-up logic: accumulate until enough for next level
		for prog.TotalXP >= int64(BaseXPPerLevel)*int64(prog.Level)+xpForNextLevel(prog.Level) {
			prog.Level++
			now := time.Now()
			prog.LastLevelUpAt = &now
		}

		// Rank-up logic
		newRank := determineRank(prog.Level)
		if newRank > oldRank {
			now := time.Now()
			prog.Rank = newRank
			prog.LastRankUpAt = &now
		}

		if err := tx.Save(&prog).Error; err != nil {
			return err
		}

		// Auto-award badges
		badgeSvc := NewBadgeService(s.DB)
		_ = badgeSvc.AutoAwardBadges(userID) // fire-and-forget

		updatedProg = &models.UserProgress{}
		*updatedProg = prog

		fmt.Printf("🎮 XP Awarded: %s → XP=%d, Lvl=%d, Rank=%d (reason: %s)\n",
			userID, prog.TotalXP, prog.Level, prog.Rank, reason)

		return nil
	})
	if err != nil {
		return nil, err
	}
	return updatedProg, nil
}

// RecordCompetitionResult bumps the competition counters and awards ranked XP.
// Winner gets triple, podium double.
func (s *ProgressionService) RecordCompetitionResult(userID, competitionID string, finalRank int, won bool) error {
	if _, err := s.EnsureProgressRecord(userID); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"total_competitions": gorm.Expr("total_competitions + 1"),
	}
	if won {
		updates["competitions_won"] = gorm.Expr("competitions_won + 1")
	}
	if err := s.DB.Model(&models.UserProgress{}).
		Where("user_id = ?", userID).
		Updates(updates).Error; err != nil {
		return err
	}

	baseXP := DefaultXPWeights.CompetitionXP
	if finalRank == 1 {
		baseXP *= 3 // triple for winner
	} else if finalRank <= 3 && finalRank > 0 {
		baseXP *= 2 // double for podium
	}
	_, err := s.AwardXP(userID, baseXP, fmt.Sprintf("competition_%s_rank_%d", competitionID, finalRank))
	return err
}

// RecordChallengeResult bumps the challenge counters and awards XP.
func (s *ProgressionService) RecordChallengeResult(userID, challengeID string, won bool) error {
	if _, err := s.EnsureProgressRecord(userID); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"total_challenges": gorm.Expr("total_challenges + 1"),
	}
	if won {
		updates["challenges_won"] = gorm.Expr("challenges_won + 1")
	}
	if err := s.DB.Model(&models.UserProgress{}).
		Where("user_id = ?", userID).
		Updates(updates).Error; err != nil {
		return err
	}

	xp := DefaultXPWeights.ChallengeXP
	if won {
		xp *= 2
	}
	_, err := s.AwardXP(userID, xp, fmt.Sprintf("challenge_%s", challengeID))
	return err
}

// RecordTrade bumps the lifetime trade counter and awards trade XP.
func (s *ProgressionService) RecordTrade(userID string) error {
	if _, err := s.EnsureProgressRecord(userID); err != nil {
		return err
	}
	if err := s.DB.Model(&models.UserProgress{}).
		Where("user_id = ?", userID).
		Update("total_trades", gorm.Expr("total_trades + 1")).Error; err != nil {
		return err
	}
	_, err := s.AwardXP(userID, DefaultXPWeights.TradeXP, "trade_closed")
	return err
}
