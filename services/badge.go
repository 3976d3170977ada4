package services

import (
	"fmt"

	"github.com/Mariosat15/Chatvot-sub008/models"

	"gorm.io/gorm"
)

type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// AutoAwardBadges checks all badge triggers for a user after a progress update
func (s *BadgeService) AutoAwardBadges(userID string) error {
	var prog models.UserProgress
	if err := s.DB.Where("user_id = ?", userID).First(&prog).Error; err != nil {
		return err
	}

	var awarded []string
	for _, trigger := range models.BadgeTriggers {
		if !s.meetsThreshold(&prog, trigger.Threshold) {
			continue
		}
		var badgeType models.BadgeType
		if err := s.DB.Where("code = ?", trigger.Code).First(&badgeType).Error; err != nil {
			continue // not seeded yet
		}

		var count int64
		s.DB.Model(&models.UserBadge{}).
			Where("user_id = ? AND badge_type_id = ?", userID, badgeType.ID).
			Count(&count)
		if count == 0 {
			userBadge := models.UserBadge{
				UserID:      userID,
				BadgeTypeID: badgeType.ID,
			}
			if err := s.DB.Create(&userBadge).Error; err != nil {
				return err
			}
			awarded = append(awarded, trigger.Name)
			fmt.Printf("🎖️ Badge awarded: %s → %s\n", trigger.Name, userID)
		}
	}

	_ = awarded
	return nil
}

// SeedBadgeTypes inserts the predefined badge catalog (idempotent by code).
func (s *BadgeService) SeedBadgeTypes() error {
	for _, trigger := range models.BadgeTriggers {
		var count int64
		s.DB.Model(&models.BadgeType{}).Where("code = ?", trigger.Code).Count(&count)
		if count == 0 {
			if err := s.DB.Create(&trigger).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *BadgeService) meetsThreshold(prog *models.UserProgress, req map[string]int64) bool {
	for key, required := range req {
		switch key {
		case "total_trades":
			if prog.TotalTrades < required {
				return false
			}
		case "total_competitions":
			if prog.TotalCompetitions < required {
				return false
			}
		case "total_challenges":
			if prog.TotalChallenges < required {
				return false
			}
		case "competitions_won":
			if prog.CompetitionsWon < required {
				return false
			}
		case "challenges_won":
			if prog.ChallengesWon < required {
				return false
			}
		case "level":
			if int64(prog.Level) < required {
				return false
			}
		case "rank":
			if int64(prog.Rank) < required {
				return false
			}
		}
	}
	return true
}
