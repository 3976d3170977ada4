package models

import (
	"time"
)

// ParticipantStatus within one competition or challenge.
type ParticipantStatus string

const (
	ParticipantActive       ParticipantStatus = "active"
	ParticipantDisqualified ParticipantStatus = "disqualified"
	ParticipantWithdrawn    ParticipantStatus = "withdrawn"
)

// CompetitionParticipant holds a user's simulated account inside one
// competition. Trade counters and gross profit/loss are denormalized here so
// ranking never has to aggregate position rows.
type CompetitionParticipant struct {
	ID            string            `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CompetitionID string            `gorm:"index:idx_comp_user,unique;not null" json:"competition_id"`
	UserID        string            `gorm:"index:idx_comp_user,unique;not null" json:"user_id"`
	Status        ParticipantStatus `gorm:"type:varchar(16);default:'active';index" json:"status"`
	JoinedAt      time.Time         `gorm:"not null" json:"joined_at"`

	StartingCapital      float64 `gorm:"default:0" json:"starting_capital"`
	CurrentCapital       float64 `gorm:"default:0" json:"current_capital"`
	UsedMargin           float64 `gorm:"default:0" json:"used_margin"`
	CurrentOpenPositions int     `gorm:"default:0" json:"current_open_positions"`

	Pnl           float64 `gorm:"default:0" json:"pnl"`
	TotalTrades   int     `gorm:"default:0" json:"total_trades"`
	WinningTrades int     `gorm:"default:0" json:"winning_trades"`
	GrossProfit   float64 `gorm:"default:0" json:"gross_profit"`
	GrossLoss     float64 `gorm:"default:0" json:"gross_loss"` // positive magnitude

	FinalRank        int        `gorm:"default:0" json:"final_rank"`
	PrizeWon         float64    `gorm:"default:0" json:"prize_won"`
	DisqualifyReason string     `json:"disqualify_reason,omitempty"`
	LiquidatedAt     *time.Time `json:"liquidated_at,omitempty"`

	Timestamps
}

// PositionSide of a simulated trade.
type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// PositionStatus of a simulated trade.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Close reasons recorded on forced and voluntary exits.
const (
	CloseReasonUser           = "user"
	CloseReasonMarginCall     = "margin_call"
	CloseReasonCompetitionEnd = "competition_end"
)

// TradingPosition is one simulated position. Exactly one of CompetitionID /
// ChallengeID is set.
type TradingPosition struct {
	ID            string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID        string `gorm:"index;not null" json:"user_id"`
	CompetitionID string `gorm:"index" json:"competition_id,omitempty"`
	ChallengeID   string `gorm:"index" json:"challenge_id,omitempty"`

	Symbol     string         `gorm:"not null" json:"symbol"`
	Side       PositionSide   `gorm:"type:varchar(8);not null" json:"side"`
	Quantity   float64        `gorm:"not null" json:"quantity"`
	EntryPrice float64        `gorm:"not null" json:"entry_price"`
	Leverage   float64        `gorm:"default:1" json:"leverage"`
	Margin     float64        `gorm:"default:0" json:"margin"`
	Status     PositionStatus `gorm:"type:varchar(8);default:'open';index" json:"status"`

	ClosePrice  float64    `json:"close_price,omitempty"`
	CloseReason string     `gorm:"type:varchar(20)" json:"close_reason,omitempty"`
	Pnl         float64    `json:"pnl"`
	OpenedAt    time.Time  `gorm:"not null" json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`

	Timestamps
}
