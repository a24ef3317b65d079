// Package notification dispatches order-fill notifications. Dispatch is
// best-effort and happens after settlement commits; a failed dispatch
// never rolls back a financial settlement.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradewell/exchange-core/pkg/models"
)

// Fill describes a settled order from one party's perspective.
type Fill struct {
	UserID  uuid.UUID       `json:"user_id"`
	OrderID uuid.UUID       `json:"order_id"`
	Side    string          `json:"side"`
	Size    decimal.Decimal `json:"size"`
	Price   decimal.Decimal `json:"price"`
	Asset   string          `json:"asset"`
}

// Sink receives order-fill notifications.
type Sink interface {
	NotifyFilled(ctx context.Context, fill Fill) (*models.Notification, error)
}

// Noop is a sink that records nothing. Used in tests.
type Noop struct{}

func (Noop) NotifyFilled(_ context.Context, fill Fill) (*models.Notification, error) {
	return newNotification(fill), nil
}

func newNotification(fill Fill) *models.Notification {
	return &models.Notification{
		ID:        uuid.New(),
		UserID:    fill.UserID,
		OrderID:   fill.OrderID,
		Side:      fill.Side,
		Size:      fill.Size,
		Price:     fill.Price,
		Asset:     fill.Asset,
		CreatedAt: time.Now(),
	}
}
