package matching

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
	"github.com/tradewell/exchange-core/pkg/models"
)

// errAlreadyProcessed signals that another pass claimed one side of the
// pair. It is soft: the caller converts it to "try the next candidate"
// and it never escapes the engine.
var errAlreadyProcessed = errors.New("order already processed")

// settle executes one candidate pair inside a single transaction:
// re-validate both orders, compute fees, write the trade, move both
// parties' balances and flip both orders to filled with a conditional
// update. Returns the trade on success and nil when the pair was
// already claimed by a concurrent pass.
func (e *Engine) settle(ctx context.Context, market models.Market, buyOrder, sellOrder *models.Order) (*models.Trade, error) {
	var trade *models.Trade

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		buy, err := e.reload(tx, buyOrder.ID)
		if err != nil {
			return err
		}
		sell, err := e.reload(tx, sellOrder.ID)
		if err != nil {
			return err
		}
		if buy.Price == nil || sell.Price == nil {
			return errAlreadyProcessed
		}

		// The resting ask's quote wins; never a midpoint.
		price := *sell.Price
		size := decimal.Min(buy.Size, sell.Size)
		quoteAmount := fees.RoundMoney(size.Mul(price))

		// Trade fees are recorded on the quote value for both sides.
		// The buyer's fee is charged in the asset being credited, so
		// the base deduction is size*rate, the quote fee divided by
		// the execution price.
		buyerFee := e.fees.MakerFee(ctx, size, price, market.BaseAsset)
		sellerFee := e.fees.TakerFee(ctx, size, price, market.BaseAsset)
		buyerFeeBase := fees.RoundMoney(size.Mul(e.fees.MakerRate(ctx, market.BaseAsset)))

		now := time.Now()
		trade = &models.Trade{
			ID:          uuid.New(),
			BuyOrderID:  buy.ID,
			SellOrderID: sell.ID,
			BuyerID:     buy.UserID,
			SellerID:    sell.UserID,
			Market:      market.ID,
			Price:       price,
			Size:        size,
			BuyerFee:    buyerFee,
			SellerFee:   sellerFee,
			CreatedAt:   now,
		}
		if err := tx.Create(trade).Error; err != nil {
			return fmt.Errorf("failed to create trade: %w", err)
		}

		// The buyer's quote reservation is consumed and the base
		// credited net of the fee; mirrored for the seller.
		err = e.ledger.FillLimitOrderTx(tx, buy.UserID,
			bookkeeper.Transfer{Asset: market.QuoteAsset, Amount: quoteAmount},
			bookkeeper.Transfer{Asset: market.BaseAsset, Amount: size.Sub(buyerFeeBase)},
			&trade.ID)
		if err != nil {
			return fmt.Errorf("failed to settle buyer ledger: %w", err)
		}
		err = e.ledger.FillLimitOrderTx(tx, sell.UserID,
			bookkeeper.Transfer{Asset: market.BaseAsset, Amount: size},
			bookkeeper.Transfer{Asset: market.QuoteAsset, Amount: quoteAmount.Sub(sellerFee)},
			&trade.ID)
		if err != nil {
			return fmt.Errorf("failed to settle seller ledger: %w", err)
		}

		if err := e.fillOrder(tx, buy.ID, price, now); err != nil {
			return err
		}
		return e.fillOrder(tx, sell.ID, price, now)
	})

	if errors.Is(err, errAlreadyProcessed) {
		e.logger.Debug("settlement skipped, pair already claimed",
			zap.String("market", market.ID),
			zap.String("buy_order_id", buyOrder.ID.String()),
			zap.String("sell_order_id", sellOrder.ID.String()))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("trade settled",
		zap.String("market", market.ID),
		zap.String("trade_id", trade.ID.String()),
		zap.String("price", trade.Price.String()),
		zap.String("size", trade.Size.String()))
	return trade, nil
}

// reload re-reads an order inside the settlement transaction and checks
// it is still pending.
func (e *Engine) reload(tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := database.LockForUpdate(tx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errAlreadyProcessed
		}
		return nil, fmt.Errorf("failed to reload order %s: %w", orderID, err)
	}
	if order.Status != models.StatusPending {
		return nil, errAlreadyProcessed
	}
	return &order, nil
}

// fillOrder flips an order to filled, guarded by a status predicate.
// Zero affected rows means another process already claimed it.
func (e *Engine) fillOrder(tx *gorm.DB, orderID uuid.UUID, price decimal.Decimal, now time.Time) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":       models.StatusFilled,
			"filled_price": price,
			"filled_at":    now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to fill order %s: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errAlreadyProcessed
	}
	return nil
}
