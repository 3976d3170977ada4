package services

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Mariosat15/Chatvot-sub008/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WalletService moves real money. Every balance change is paired with a
// WalletTransaction row in the same database transaction.
type WalletService struct {
	DB *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db}
}

// ApplyCredit credits a user's wallet and writes the paired ledger record.
// Must be called inside the settlement's transaction (tx), so the credit and
// the entity's status flip commit or roll back together.
func (s *WalletService) ApplyCredit(tx *gorm.DB, c Credit, referenceType, referenceID string) error {
	if c.Amount < 0 {
		return fmt.Errorf("credit for %s has negative amount %.2f", c.UserID, c.Amount)
	}

	res := tx.Model(&models.Wallet{}).
		Where("user_id = ?", c.UserID).
		UpdateColumn("balance", gorm.Expr("balance + ?", c.Amount))
	if res.Error != nil {
		return fmt.Errorf("failed to credit wallet of %s: %w", c.UserID, res.Error)
	}
	if res.RowsAffected == 0 {
		wallet := models.Wallet{
			ID:      uuid.NewString(),
			UserID:  c.UserID,
			Balance: c.Amount,
		}
		if err := tx.Create(&wallet).Error; err != nil {
			return fmt.Errorf("failed to create wallet for %s: %w", c.UserID, err)
		}
	}

	record := models.WalletTransaction{
		ID:            uuid.NewString(),
		UserID:        c.UserID,
		Type:          c.Type,
		Amount:        c.Amount,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Description:   c.Description,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record transaction for %s: %w", c.UserID, err)
	}
	return nil
}

// ErrInsufficientBalance is returned when a debit would take a wallet negative.
var ErrInsufficientBalance = errors.New("insufficient wallet balance")

// ApplyDebit charges a user's wallet, guarded so the balance never goes
// negative, and writes the ledger record with a negative amount.
func (s *WalletService) ApplyDebit(tx *gorm.DB, userID string, amount float64, txType models.TransactionType, referenceType, referenceID, description string) error {
	if amount < 0 {
		return fmt.Errorf("debit for %s has negative amount %.2f", userID, amount)
	}

	res := tx.Model(&models.Wallet{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to debit wallet of %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s needs %.2f", ErrInsufficientBalance, userID, amount)
	}

	record := models.WalletTransaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          txType,
		Amount:        -amount,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Description:   description,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record transaction for %s: %w", userID, err)
	}
	return nil
}

// --- Read endpoints (consumed by the dashboard collaborator) ---

// GetWallet returns the wallet for a user, creating nothing.
func (s *WalletService) GetWallet(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	var wallet models.Wallet
	if err := s.DB.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"user_id": userID, "balance": 0.0})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error fetching wallet"})
	}
	return c.JSON(wallet)
}

// GetWalletTransactions lists a user's ledger entries, newest first.
func (s *WalletService) GetWalletTransactions(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	var txs []models.WalletTransaction
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error fetching transactions"})
	}
	return c.JSON(txs)
}
