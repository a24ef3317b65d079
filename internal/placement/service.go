// Package placement implements the two order entry paths: resting limit
// orders that lock funds until the matching engine settles them, and
// market orders that execute immediately against the user's balances
// without ever resting in the book.
package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradewell/exchange-core/internal/bookkeeper"
	"github.com/tradewell/exchange-core/internal/database"
	"github.com/tradewell/exchange-core/internal/fees"
	"github.com/tradewell/exchange-core/internal/notification"
	"github.com/tradewell/exchange-core/internal/orderbook"
	"github.com/tradewell/exchange-core/pkg/models"
)

var (
	// ErrNoLiquidity is returned when a market order finds no resting
	// counter order to price against.
	ErrNoLiquidity = errors.New("no liquidity for market order")

	// ErrOrderNotFound is returned when the order does not exist or
	// belongs to another user.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotPending is returned when a cancel races a settlement.
	ErrOrderNotPending = errors.New("order is not pending")

	// ErrInvalidOrder is returned for non-positive sizes or prices.
	ErrInvalidOrder = errors.New("invalid order")
)

// Service places and cancels orders.
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
	ledger *bookkeeper.Service
	reader *orderbook.Reader
	fees   *fees.Calculator
	sink   notification.Sink
}

// NewService creates an order placement service.
func NewService(logger *zap.Logger, db *gorm.DB, ledger *bookkeeper.Service, reader *orderbook.Reader, calc *fees.Calculator, sink notification.Sink) *Service {
	return &Service{logger: logger, db: db, ledger: ledger, reader: reader, fees: calc, sink: sink}
}

// PlaceLimitOrder reserves the funds backing the order and creates it
// pending, visible to the matching engine. Buys lock size*price of the
// quote asset, sells lock size of the base asset.
func (s *Service) PlaceLimitOrder(ctx context.Context, userID uuid.UUID, market models.Market, side string, size, price decimal.Decimal) (*models.Order, error) {
	if size.LessThanOrEqual(decimal.Zero) || price.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidOrder
	}

	now := time.Now()
	order := &models.Order{
		ID:         uuid.New(),
		UserID:     userID,
		Market:     market.ID,
		BaseAsset:  market.BaseAsset,
		QuoteAsset: market.QuoteAsset,
		Side:       side,
		Kind:       models.KindLimit,
		Size:       size,
		Price:      &price,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		asset, amount := reservation(order)
		if err := s.ledger.LockTx(tx, userID, asset, amount, &order.ID); err != nil {
			return err
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("limit order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("market", market.ID),
		zap.String("side", side),
		zap.String("size", size.String()),
		zap.String("price", price.String()))
	return order, nil
}

// PlaceMarketOrder executes immediately at the best resting counter
// price, swapping the user's balances synchronously with the taker fee
// applied. The order is stored already filled and never rests.
func (s *Service) PlaceMarketOrder(ctx context.Context, userID uuid.UUID, market models.Market, side string, size decimal.Decimal) (*models.Order, error) {
	if size.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidOrder
	}

	counterSide := models.SideSell
	if side == models.SideSell {
		counterSide = models.SideBuy
	}
	best, err := s.reader.BestPrice(ctx, market.ID, counterSide)
	if err != nil {
		return nil, err
	}
	if best == nil || best.Price == nil {
		return nil, ErrNoLiquidity
	}
	price := *best.Price

	// The taker fee comes out of whichever asset the user receives:
	// base for buys (size*rate), quote for sells (size*price*rate).
	feeQuote := s.fees.TakerFee(ctx, size, price, market.BaseAsset)
	feeBase := fees.RoundMoney(size.Mul(s.fees.TakerRate(ctx, market.BaseAsset)))
	quoteAmount := fees.RoundMoney(size.Mul(price))

	now := time.Now()
	order := &models.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Market:      market.ID,
		BaseAsset:   market.BaseAsset,
		QuoteAsset:  market.QuoteAsset,
		Side:        side,
		Kind:        models.KindMarket,
		Size:        size,
		FilledPrice: &price,
		Status:      models.StatusFilled,
		CreatedAt:   now,
		UpdatedAt:   now,
		FilledAt:    &now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		debit := bookkeeper.Transfer{Asset: market.QuoteAsset, Amount: quoteAmount}
		credit := bookkeeper.Transfer{Asset: market.BaseAsset, Amount: size.Sub(feeBase)}
		if side == models.SideSell {
			debit = bookkeeper.Transfer{Asset: market.BaseAsset, Amount: size}
			credit = bookkeeper.Transfer{Asset: market.QuoteAsset, Amount: quoteAmount.Sub(feeQuote)}
		}
		return s.ledger.SwapBalancesTx(tx, userID, debit, credit, &order.ID)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.sink.NotifyFilled(ctx, notification.Fill{
		UserID:  userID,
		OrderID: order.ID,
		Side:    side,
		Size:    size,
		Price:   price,
		Asset:   market.BaseAsset,
	}); err != nil {
		s.logger.Warn("fill notification failed", zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	s.logger.Info("market order executed",
		zap.String("order_id", order.ID.String()),
		zap.String("market", market.ID),
		zap.String("side", side),
		zap.String("price", price.String()))
	return order, nil
}

// CancelOrder flips a pending limit order to cancelled and releases its
// reservation. A cancel racing a settlement loses cleanly: the status
// predicate fails and nothing is unlocked.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := database.LockForUpdate(tx).
			Where("id = ? AND user_id = ?", orderID, userID).
			First(&order).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to load order: %w", err)
		}
		if order.Status != models.StatusPending || order.Kind != models.KindLimit {
			return ErrOrderNotPending
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.StatusPending).
			Updates(map[string]interface{}{
				"status":     models.StatusCancelled,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to cancel order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrOrderNotPending
		}

		asset, amount := reservation(&order)
		return s.ledger.UnlockTx(tx, userID, asset, amount, &orderID)
	})
}

// reservation returns the asset and amount a resting limit order keeps
// locked: quote size*price for buys, base size for sells.
func reservation(order *models.Order) (string, decimal.Decimal) {
	if order.Side == models.SideBuy {
		return order.QuoteAsset, fees.RoundMoney(order.Size.Mul(*order.Price))
	}
	return order.BaseAsset, order.Size
}
