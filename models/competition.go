package models

import (
	"time"
)

// CompetitionStatus is the settlement state machine. The two terminal states
// (completed, cancelled) double as the idempotency guard: settlement only
// proceeds from active, via a conditional update.
type CompetitionStatus string

const (
	CompetitionUpcoming  CompetitionStatus = "upcoming"
	CompetitionActive    CompetitionStatus = "active"
	CompetitionCompleted CompetitionStatus = "completed"
	CompetitionCancelled CompetitionStatus = "cancelled"
)

// RankingMethod selects which metric the leaderboard orders by.
type RankingMethod string

const (
	RankByPnl          RankingMethod = "pnl"
	RankByROI          RankingMethod = "roi"
	RankByTotalCapital RankingMethod = "total_capital"
	RankByWinRate      RankingMethod = "win_rate"
	RankByTotalWins    RankingMethod = "total_wins"
	RankByProfitFactor RankingMethod = "profit_factor"
)

// PrizeSlot allocates a percentage of the distributable pool to one rank.
type PrizeSlot struct {
	Rank       int     `json:"rank"`
	Percentage float64 `json:"percentage"`
}

// RiskLimits are margin-ratio thresholds in percent. Must satisfy
// liquidation < margin_call < warning.
type RiskLimits struct {
	WarningPct     float64 `json:"warning_pct"`
	MarginCallPct  float64 `json:"margin_call_pct"`
	LiquidationPct float64 `json:"liquidation_pct"`
}

// Competition is a multi-user trading tournament with an entry fee and a
// rank-based prize distribution.
type Competition struct {
	ID          string            `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name        string            `gorm:"not null" json:"name"`
	Description string            `json:"description"`
	Status      CompetitionStatus `gorm:"type:varchar(16);default:'upcoming';index" json:"status"`

	RankingMethod RankingMethod `gorm:"type:varchar(20);default:'pnl'" json:"ranking_method"`
	MinimumTrades int           `gorm:"default:0" json:"minimum_trades"`

	EntryFee        float64 `gorm:"default:0" json:"entry_fee"`
	StartingCapital float64 `gorm:"default:10000" json:"starting_capital"`

	// PrizePool is the advertised headline number shown in listings. The
	// settled payouts are computed from TotalCollected, never from this.
	PrizePool             float64     `gorm:"default:0" json:"prize_pool"`
	PrizeDistribution     []PrizeSlot `gorm:"type:jsonb;serializer:json" json:"prize_distribution"`
	PlatformFeePercentage float64     `gorm:"default:0" json:"platform_fee_percentage"`

	RiskLimits              *RiskLimits `gorm:"type:jsonb;serializer:json" json:"risk_limits,omitempty"`
	DisqualifyOnLiquidation bool        `gorm:"default:false" json:"disqualify_on_liquidation"`

	MaxParticipants int       `gorm:"default:0" json:"max_participants"` // 0 = unlimited
	StartTime       time.Time `gorm:"index" json:"start_time"`
	EndTime         time.Time `gorm:"index" json:"end_time"`

	// Settlement totals, written once when the status flips to terminal
	TotalCollected    float64    `gorm:"default:0" json:"total_collected"`
	PlatformFeeEarned float64    `gorm:"default:0" json:"platform_fee_earned"`
	UnclaimedPool     float64    `gorm:"default:0" json:"unclaimed_pool"`
	TotalRefunds      float64    `gorm:"default:0" json:"total_refunds"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`

	Timestamps
}

// CompetitionWinner is one prize allocation row, written at settlement.
type CompetitionWinner struct {
	ID            string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CompetitionID string    `gorm:"index;not null" json:"competition_id"`
	UserID        string    `gorm:"index;not null" json:"user_id"`
	Rank          int       `gorm:"not null" json:"rank"`
	Percentage    float64   `json:"percentage"`
	Amount        float64   `json:"amount"`
	FinalPnl      float64   `json:"final_pnl"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
