package models

import (
	"time"
)

// ChallengeStatus covers the 1v1 lifecycle: a pending invite either gets
// accepted (→ active) or dies (declined / expired); active challenges settle
// to completed.
type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeDeclined  ChallengeStatus = "declined"
	ChallengeExpired   ChallengeStatus = "expired"
	ChallengeCancelled ChallengeStatus = "cancelled"
)

// Challenge is a head-to-head trading duel. Both sides pay the same entry fee;
// winner takes the pool minus the platform cut.
type Challenge struct {
	ID           string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ChallengerID string          `gorm:"index;not null" json:"challenger_id"`
	ChallengedID string          `gorm:"index;not null" json:"challenged_id"`
	Status       ChallengeStatus `gorm:"type:varchar(16);default:'pending';index" json:"status"`

	RankingMethod RankingMethod `gorm:"type:varchar(20);default:'pnl'" json:"ranking_method"`
	MinimumTrades int           `gorm:"default:0" json:"minimum_trades"`

	EntryFee              float64 `gorm:"default:0" json:"entry_fee"`
	StartingCapital       float64 `gorm:"default:10000" json:"starting_capital"`
	PlatformFeePercentage float64 `gorm:"default:0" json:"platform_fee_percentage"`

	AcceptDeadline time.Time  `gorm:"index" json:"accept_deadline"`
	Duration       int64      `gorm:"default:86400" json:"duration_seconds"` // clock starts on accept
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `gorm:"index" json:"end_time,omitempty"`

	// Settlement results
	WinnerID          string     `json:"winner_id,omitempty"`
	WinnerPrize       float64    `gorm:"default:0" json:"winner_prize"`
	IsTie             bool       `gorm:"default:false" json:"is_tie"`
	BothDisqualified  bool       `gorm:"default:false" json:"both_disqualified"`
	PlatformFeeEarned float64    `gorm:"default:0" json:"platform_fee_earned"`
	UnclaimedPool     float64    `gorm:"default:0" json:"unclaimed_pool"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`

	Timestamps
}

// ChallengeParticipant mirrors CompetitionParticipant for the 1v1 case, so
// both feed the same ranking metrics.
type ChallengeParticipant struct {
	ID          string            `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ChallengeID string            `gorm:"index:idx_chal_user,unique;not null" json:"challenge_id"`
	UserID      string            `gorm:"index:idx_chal_user,unique;not null" json:"user_id"`
	Status      ParticipantStatus `gorm:"type:varchar(16);default:'active'" json:"status"`
	JoinedAt    time.Time         `gorm:"not null" json:"joined_at"`

	StartingCapital      float64 `gorm:"default:0" json:"starting_capital"`
	CurrentCapital       float64 `gorm:"default:0" json:"current_capital"`
	UsedMargin           float64 `gorm:"default:0" json:"used_margin"`
	CurrentOpenPositions int     `gorm:"default:0" json:"current_open_positions"`

	Pnl           float64 `gorm:"default:0" json:"pnl"`
	TotalTrades   int     `gorm:"default:0" json:"total_trades"`
	WinningTrades int     `gorm:"default:0" json:"winning_trades"`
	GrossProfit   float64 `gorm:"default:0" json:"gross_profit"`
	GrossLoss     float64 `gorm:"default:0" json:"gross_loss"`

	DisqualifyReason string     `json:"disqualify_reason,omitempty"`
	LiquidatedAt     *time.Time `json:"liquidated_at,omitempty"`

	Timestamps
}
