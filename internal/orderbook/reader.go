// Package orderbook reads resting orders for a market from the store.
package orderbook

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tradewell/exchange-core/pkg/models"
)

// Reader fetches pending limit orders partitioned by side. Market
// orders never rest in the book; they settle immediately elsewhere.
type Reader struct {
	db *gorm.DB
}

// NewReader creates an order book reader.
func NewReader(db *gorm.DB) *Reader {
	return &Reader{db: db}
}

// PendingOrders returns the resting limit orders for a market side.
// Buys come back highest price first, sells lowest price first.
func (r *Reader) PendingOrders(ctx context.Context, market, side string) ([]*models.Order, error) {
	order := "price ASC"
	if side == models.SideBuy {
		order = "price DESC"
	}

	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("market = ? AND side = ? AND status = ? AND kind = ?", market, side, models.StatusPending, models.KindLimit).
		Order(order).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending %s orders for %s: %w", side, market, err)
	}
	return orders, nil
}

// BestPrice returns the top-of-book price for a side, or nil when the
// side is empty. Used by the immediate market-order path as its
// execution reference.
func (r *Reader) BestPrice(ctx context.Context, market, side string) (*models.Order, error) {
	orders, err := r.PendingOrders(ctx, market, side)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return orders[0], nil
}
