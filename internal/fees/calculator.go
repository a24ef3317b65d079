// Package fees computes maker/taker fees with exact decimal arithmetic.
package fees

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tradewell/exchange-core/pkg/models"
)

// MoneyPrecision is the number of decimal digits every money amount is
// rounded to. All balances, fees and trade amounts share this precision.
const MoneyPrecision = 8

// Default rates applied when an asset has no FeeConfig row.
var (
	DefaultMakerRate = decimal.NewFromFloat(0.001)
	DefaultTakerRate = decimal.NewFromFloat(0.002)
)

// RoundMoney rounds an amount to MoneyPrecision digits, half up.
// decimal.Decimal is big.Int backed, so the size*price*rate product is
// computed exactly before the single rounding step.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPrecision)
}

// RateSource yields the fee schedule for an asset, or nil when absent.
type RateSource interface {
	Get(ctx context.Context, asset string) (*models.FeeConfig, error)
}

// Estimate is a fee preview with the rate that produced it.
type Estimate struct {
	Fee  decimal.Decimal `json:"fee"`
	Rate decimal.Decimal `json:"fee_rate"`
}

// Calculator converts (order kind, size, price, asset) into a fee amount.
type Calculator struct {
	rates RateSource
}

// NewCalculator creates a fee calculator backed by the given rate source.
func NewCalculator(rates RateSource) *Calculator {
	return &Calculator{rates: rates}
}

// MakerRate returns the maker rate for an asset, falling back to the default.
func (c *Calculator) MakerRate(ctx context.Context, asset string) decimal.Decimal {
	if cfg := c.lookup(ctx, asset); cfg != nil {
		return cfg.MakerRate
	}
	return DefaultMakerRate
}

// TakerRate returns the taker rate for an asset, falling back to the default.
func (c *Calculator) TakerRate(ctx context.Context, asset string) decimal.Decimal {
	if cfg := c.lookup(ctx, asset); cfg != nil {
		return cfg.TakerRate
	}
	return DefaultTakerRate
}

// Fee computes the fee for an order. Limit orders pay the maker rate,
// market orders the taker rate. Unknown assets use the default rates;
// there are no error conditions.
func (c *Calculator) Fee(ctx context.Context, kind string, size, price decimal.Decimal, asset string) decimal.Decimal {
	return c.fee(c.rate(ctx, kind, asset), size, price)
}

// MakerFee computes a fee at the asset's maker rate.
func (c *Calculator) MakerFee(ctx context.Context, size, price decimal.Decimal, asset string) decimal.Decimal {
	return c.fee(c.MakerRate(ctx, asset), size, price)
}

// TakerFee computes a fee at the asset's taker rate.
func (c *Calculator) TakerFee(ctx context.Context, size, price decimal.Decimal, asset string) decimal.Decimal {
	return c.fee(c.TakerRate(ctx, asset), size, price)
}

// EstimateFee returns the fee and the rate used, without side effects.
func (c *Calculator) EstimateFee(ctx context.Context, kind string, size, price decimal.Decimal, asset string) Estimate {
	rate := c.rate(ctx, kind, asset)
	return Estimate{Fee: c.fee(rate, size, price), Rate: rate}
}

func (c *Calculator) rate(ctx context.Context, kind string, asset string) decimal.Decimal {
	if kind == models.KindMarket {
		return c.TakerRate(ctx, asset)
	}
	return c.MakerRate(ctx, asset)
}

func (c *Calculator) fee(rate, size, price decimal.Decimal) decimal.Decimal {
	return RoundMoney(size.Mul(price).Mul(rate))
}

func (c *Calculator) lookup(ctx context.Context, asset string) *models.FeeConfig {
	if c.rates == nil {
		return nil
	}
	cfg, err := c.rates.Get(ctx, asset)
	if err != nil || cfg == nil {
		return nil
	}
	return cfg
}
