package models

import (
	"time"
)

// BadgeType: static config (loaded from DB or seeded from BadgeTriggers)
type BadgeType struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code        string `gorm:"uniqueIndex;not null"` // e.g., "FIRST_COMP", "ARENA_CHAMP"
	Name        string `gorm:"not null"`
	Description string
	IconURL     string           `gorm:"type:text"`
	Rarity      string           `gorm:"type:varchar(16);default:'common'"` // common, rare, epic, legendary
	Threshold   map[string]int64 `gorm:"type:jsonb;serializer:json"`        // e.g., {"total_competitions": 10}
	CreatedAt   time.Time        `gorm:"autoCreateTime"`
}

// UserBadge: awarded instance (many-to-many)
type UserBadge struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID      string    `gorm:"index;not null"`
	BadgeTypeID string    `gorm:"index;not null"`
	AwardedAt   time.Time `gorm:"autoCreateTime"`
	Metadata    string    `gorm:"type:jsonb"` // e.g., {"competition_id": "...", "final_rank": 1}
}

// Predefined badge triggers
var BadgeTriggers = []BadgeType{
	{
		Code:        "FIRST_COMP",
		Name:        "Into the Arena",
		Description: "Finished your first competition",
		Rarity:      "common",
		Threshold:   map[string]int64{"total_competitions": 1},
	},
	{
		Code:        "ARENA_CHAMP",
		Name:        "Arena Champion",
		Description: "Won a trading competition",
		Rarity:      "epic",
		Threshold:   map[string]int64{"competitions_won": 1},
	},
	{
		Code:        "DUELIST",
		Name:        "Duelist",
		Description: "Won 5 head-to-head challenges",
		Rarity:      "rare",
		Threshold:   map[string]int64{"challenges_won": 5},
	},
	{
		Code:        "VETERAN",
		Name:        "Arena Veteran",
		Description: "Entered 10 competitions",
		Rarity:      "rare",
		Threshold:   map[string]int64{"total_competitions": 10},
	},
	{
		Code:        "LEVEL_50",
		Name:        "Halfway There",
		Description: "Reached Level 50 (Platinum!)",
		Rarity:      "epic",
		Threshold:   map[string]int64{"level": 50},
	},
}
