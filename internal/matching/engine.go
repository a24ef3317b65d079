// Package matching pairs resting buy and sell orders per market and
// settles each pair atomically against the wallet ledger.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradewell/exchange-core/internal/bookkeeper"
	"github.com/tradewell/exchange-core/internal/fees"
	"github.com/tradewell/exchange-core/internal/notification"
	"github.com/tradewell/exchange-core/internal/orderbook"
	"github.com/tradewell/exchange-core/pkg/metrics"
	"github.com/tradewell/exchange-core/pkg/models"
)

// Engine orchestrates one matching pass per market. It holds no order
// state between passes; every pass reads transaction-fresh data and
// relies on the settlement CAS to tolerate concurrent passes.
type Engine struct {
	logger  *zap.Logger
	db      *gorm.DB
	reader  *orderbook.Reader
	ledger  *bookkeeper.Service
	fees    *fees.Calculator
	sink    notification.Sink
	markets []models.Market
}

// NewEngine creates a matching engine over the configured markets.
func NewEngine(logger *zap.Logger, db *gorm.DB, reader *orderbook.Reader, ledger *bookkeeper.Service, calc *fees.Calculator, sink notification.Sink, markets []models.Market) *Engine {
	return &Engine{
		logger:  logger,
		db:      db,
		reader:  reader,
		ledger:  ledger,
		fees:    calc,
		sink:    sink,
		markets: markets,
	}
}

// MatchAllMarkets runs one matching pass over every configured market.
// A failure in one market is logged and does not stop the others.
func (e *Engine) MatchAllMarkets(ctx context.Context) {
	for _, market := range e.markets {
		if err := e.MatchOrders(ctx, market); err != nil {
			e.logger.Error("matching pass failed",
				zap.String("market", market.ID),
				zap.Error(err))
		}
	}
}

// MatchOrders runs one greedy matching pass over a market. For each buy
// order it scans the asks cheapest first and settles against the first
// crossing one; a settlement lost to a concurrent pass just moves on to
// the next candidate.
func (e *Engine) MatchOrders(ctx context.Context, market models.Market) error {
	started := time.Now()
	metrics.MatchingRuns.WithLabelValues(market.ID).Inc()
	defer func() {
		metrics.MatchingLatency.Observe(time.Since(started).Seconds())
	}()

	buys, err := e.reader.PendingOrders(ctx, market.ID, models.SideBuy)
	if err != nil {
		return err
	}
	sells, err := e.reader.PendingOrders(ctx, market.ID, models.SideSell)
	if err != nil {
		return err
	}
	if len(buys) == 0 || len(sells) == 0 {
		return nil
	}

	consumed := make(map[uuid.UUID]struct{})
	for _, buy := range buys {
		if _, ok := consumed[buy.ID]; ok {
			continue
		}
		if buy.Price == nil {
			continue
		}
		for _, sell := range sells {
			if _, ok := consumed[sell.ID]; ok {
				continue
			}
			if sell.Price == nil {
				continue
			}
			if sell.Price.GreaterThan(*buy.Price) {
				continue
			}

			trade, err := e.settle(ctx, market, buy, sell)
			if err != nil {
				return fmt.Errorf("settlement failed for %s (buy %s, sell %s): %w", market.ID, buy.ID, sell.ID, err)
			}
			if trade == nil {
				// Another process claimed one side; try the next ask.
				metrics.SettlementConflicts.WithLabelValues(market.ID).Inc()
				continue
			}

			consumed[buy.ID] = struct{}{}
			consumed[sell.ID] = struct{}{}
			metrics.TradesSettled.WithLabelValues(market.ID).Inc()
			e.notifyFilled(ctx, market, buy, sell, trade)
			break
		}
	}
	return nil
}

// notifyFilled dispatches fill notifications to both parties after a
// settlement commits. Best-effort: failures are logged, never returned.
func (e *Engine) notifyFilled(ctx context.Context, market models.Market, buy, sell *models.Order, trade *models.Trade) {
	fills := []notification.Fill{
		{UserID: trade.BuyerID, OrderID: buy.ID, Side: models.SideBuy, Size: trade.Size, Price: trade.Price, Asset: market.BaseAsset},
		{UserID: trade.SellerID, OrderID: sell.ID, Side: models.SideSell, Size: trade.Size, Price: trade.Price, Asset: market.BaseAsset},
	}
	for _, fill := range fills {
		if _, err := e.sink.NotifyFilled(ctx, fill); err != nil {
			metrics.NotificationFailures.Inc()
			e.logger.Warn("fill notification failed",
				zap.String("market", market.ID),
				zap.String("order_id", fill.OrderID.String()),
				zap.Error(err))
		}
	}
}
