package models

import (
	"time"
)

// PlatformAccountID is the wallet that collects fees and unclaimed pools.
const PlatformAccountID = "platform"

// Wallet holds a user's real (non-simulated) balance.
type Wallet struct {
	ID      string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID  string  `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance float64 `gorm:"default:0" json:"balance"`

	Timestamps
}

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxEntryFee       TransactionType = "entry_fee"
	TxPrizePayout    TransactionType = "prize_payout"
	TxEntryRefund    TransactionType = "entry_refund"
	TxChallengePrize TransactionType = "challenge_prize"
	TxPlatformFee    TransactionType = "platform_fee"
	TxUnclaimedPool  TransactionType = "unclaimed_pool"
)

// Reference types linking a transaction back to its source entity.
const (
	RefCompetition = "competition"
	RefChallenge   = "challenge"
)

// WalletTransaction is one immutable ledger entry, always written in the same
// DB transaction as the balance change it records.
type WalletTransaction struct {
	ID            string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID        string          `gorm:"index;not null" json:"user_id"`
	Type          TransactionType `gorm:"type:varchar(24);not null" json:"type"`
	Amount        float64         `gorm:"not null" json:"amount"`
	ReferenceType string          `gorm:"type:varchar(16);index:idx_tx_ref" json:"reference_type"`
	ReferenceID   string          `gorm:"index:idx_tx_ref" json:"reference_id"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
