// Package bookkeeper owns per-user, per-asset balances. Every mutating
// operation runs in a single database transaction and pairs the balance
// update with exactly one ledger entry per account it touches.
package bookkeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradewell/exchange-core/internal/database"
	"github.com/tradewell/exchange-core/pkg/models"
)

// Transfer names one leg of a two-asset operation.
type Transfer struct {
	Asset  string
	Amount decimal.Decimal
}

// Service implements the wallet ledger on a transactional store.
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewService creates a wallet ledger service.
func NewService(logger *zap.Logger, db *gorm.DB) *Service {
	return &Service{logger: logger, db: db}
}

// CreateAccount creates a zero balance row for a user/asset pair.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, asset string) (*models.Account, error) {
	account := &models.Account{
		ID:        uuid.New(),
		UserID:    userID,
		Asset:     asset,
		Available: decimal.Zero,
		Locked:    decimal.Zero,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// GetAccount returns the balance row for a user/asset pair.
func (s *Service) GetAccount(ctx context.Context, userID uuid.UUID, asset string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("user_id = ? AND asset = ?", userID, asset).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnsupportedAsset
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

// Entries lists ledger entries for a user/asset pair, newest first.
func (s *Service) Entries(ctx context.Context, userID uuid.UUID, asset string, limit, offset int) ([]*models.LedgerEntry, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("user_id = ? AND asset = ?", userID, asset)

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	var entries []*models.LedgerEntry
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	return entries, count, nil
}

// Lock moves amount from available to locked.
func (s *Service) Lock(ctx context.Context, userID uuid.UUID, asset string, amount decimal.Decimal, ref *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.LockTx(tx, userID, asset, amount, ref)
	})
}

// Unlock moves amount from locked back to available.
func (s *Service) Unlock(ctx context.Context, userID uuid.UUID, asset string, amount decimal.Decimal, ref *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.UnlockTx(tx, userID, asset, amount, ref)
	})
}

// AddBalance increments available.
func (s *Service) AddBalance(ctx context.Context, userID uuid.UUID, asset string, amount decimal.Decimal, ref *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.AddBalanceTx(tx, userID, asset, amount, ref)
	})
}

// SubtractBalance decrements available.
func (s *Service) SubtractBalance(ctx context.Context, userID uuid.UUID, asset string, amount decimal.Decimal, ref *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.SubtractBalanceTx(tx, userID, asset, amount, ref)
	})
}

// SwapBalances atomically debits one asset's available and credits
// another's for the same user. Used by the immediate market-order path.
func (s *Service) SwapBalances(ctx context.Context, userID uuid.UUID, debit, credit Transfer, ref *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.SwapBalancesTx(tx, userID, debit, credit, ref)
	})
}

// FillLimitOrder releases funds reserved by a resting order into the
// counter asset: locked is decremented on the debit asset and available
// is credited on the credit asset.
func (s *Service) FillLimitOrder(ctx context.Context, userID uuid.UUID, debit, credit Transfer, ref *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.FillLimitOrderTx(tx, userID, debit, credit, ref)
	})
}

// Tx-scoped variants below run inside an enclosing transaction, so the
// settlement path can commit ledger updates together with the order
// status flip and the trade row.

func (s *Service) LockTx(tx *gorm.DB, userID uuid.UUID, asset string, amount decimal.Decimal, ref *uuid.UUID) error {
	return s.mutate(tx, userID, asset, amount.Neg(), amount, models.EntryLock, ref)
}

func (s *Service) UnlockTx(tx *gorm.DB, userID uuid.UUID, asset string, amount decimal.Decimal, ref *uuid.UUID) error {
	return s.mutate(tx, userID, asset, amount, amount.Neg(), models.EntryUnlock, ref)
}

func (s *Service) AddBalanceTx(tx *gorm.DB, userID uuid.UUID, asset string, amount decimal.Decimal, ref *uuid.UUID) error {
	return s.mutate(tx, userID, asset, amount, decimal.Zero, models.EntryCredit, ref)
}

func (s *Service) SubtractBalanceTx(tx *gorm.DB, userID uuid.UUID, asset string, amount decimal.Decimal, ref *uuid.UUID) error {
	return s.mutate(tx, userID, asset, amount.Neg(), decimal.Zero, models.EntryDebit, ref)
}

func (s *Service) SwapBalancesTx(tx *gorm.DB, userID uuid.UUID, debit, credit Transfer, ref *uuid.UUID) error {
	if err := s.mutate(tx, userID, debit.Asset, debit.Amount.Neg(), decimal.Zero, models.EntrySwapDebit, ref); err != nil {
		return err
	}
	return s.mutate(tx, userID, credit.Asset, credit.Amount, decimal.Zero, models.EntrySwapCredit, ref)
}

func (s *Service) FillLimitOrderTx(tx *gorm.DB, userID uuid.UUID, debit, credit Transfer, ref *uuid.UUID) error {
	if err := s.mutate(tx, userID, debit.Asset, decimal.Zero, debit.Amount.Neg(), models.EntryFillDebit, ref); err != nil {
		return err
	}
	return s.mutate(tx, userID, credit.Asset, credit.Amount, decimal.Zero, models.EntryFillCredit, ref)
}

// mutate applies a delta to one account's available and locked columns
// and writes the paired ledger entry. availableDelta and lockedDelta may
// be negative; the resulting balances must both stay non-negative.
func (s *Service) mutate(tx *gorm.DB, userID uuid.UUID, asset string, availableDelta, lockedDelta decimal.Decimal, entryType string, ref *uuid.UUID) error {
	var account models.Account
	err := database.LockForUpdate(tx).
		Where("user_id = ? AND asset = ?", userID, asset).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnsupportedAsset
		}
		return fmt.Errorf("failed to lock account: %w", err)
	}

	newAvailable := account.Available.Add(availableDelta)
	newLocked := account.Locked.Add(lockedDelta)
	if newAvailable.IsNegative() {
		return ErrInsufficientBalance
	}
	if newLocked.IsNegative() {
		return ErrInsufficientLocked
	}

	if err := tx.Model(&models.Account{}).
		Where("id = ?", account.ID).
		Updates(map[string]interface{}{
			"available":  newAvailable,
			"locked":     newLocked,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	amount := availableDelta
	if amount.IsZero() {
		amount = lockedDelta
	}
	entry := &models.LedgerEntry{
		ID:            uuid.New(),
		UserID:        userID,
		Asset:         asset,
		Type:          entryType,
		Amount:        amount.Abs(),
		BalanceBefore: account.Available,
		BalanceAfter:  newAvailable,
		ReferenceID:   ref,
		CreatedAt:     time.Now(),
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to write ledger entry: %w", err)
	}

	s.logger.Debug("ledger entry recorded",
		zap.String("user_id", userID.String()),
		zap.String("asset", asset),
		zap.String("type", entryType),
		zap.String("amount", entry.Amount.String()))
	return nil
}
