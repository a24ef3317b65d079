package fees

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewell/exchange-core/pkg/models"
)

type stubRates struct {
	configs map[string]*models.FeeConfig
}

func (s *stubRates) Get(_ context.Context, asset string) (*models.FeeConfig, error) {
	return s.configs[asset], nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFeeDefaultRates(t *testing.T) {
	c := NewCalculator(nil)
	ctx := context.Background()

	// 0.5 * 49000 * 0.001 = 24.5 maker, * 0.002 = 49 taker
	maker := c.Fee(ctx, models.KindLimit, dec("0.5"), dec("49000"), "BTC")
	taker := c.Fee(ctx, models.KindMarket, dec("0.5"), dec("49000"), "BTC")
	assert.True(t, maker.Equal(dec("24.5")), "maker fee = %s", maker)
	assert.True(t, taker.Equal(dec("49")), "taker fee = %s", taker)
}

func TestFeePerAssetRates(t *testing.T) {
	rates := &stubRates{configs: map[string]*models.FeeConfig{
		"ETH": {Asset: "ETH", MakerRate: dec("0.0005"), TakerRate: dec("0.003")},
	}}
	c := NewCalculator(rates)
	ctx := context.Background()

	fee := c.Fee(ctx, models.KindLimit, dec("2"), dec("3000"), "ETH")
	assert.True(t, fee.Equal(dec("3")), "fee = %s", fee)

	// Unknown asset falls back to the defaults, never errors.
	fee = c.Fee(ctx, models.KindLimit, dec("2"), dec("3000"), "DOGE")
	assert.True(t, fee.Equal(dec("6")), "fee = %s", fee)
}

func TestFeeDeterminismAndLinearity(t *testing.T) {
	c := NewCalculator(nil)
	ctx := context.Background()
	size, price := dec("0.33"), dec("12345.67")

	first := c.Fee(ctx, models.KindLimit, size, price, "BTC")
	for i := 0; i < 10; i++ {
		again := c.Fee(ctx, models.KindLimit, size, price, "BTC")
		require.True(t, first.Equal(again), "fee not deterministic: %s vs %s", first, again)
	}

	doubleSize := c.Fee(ctx, models.KindLimit, size.Mul(dec("2")), price, "BTC")
	doublePrice := c.Fee(ctx, models.KindLimit, size, price.Mul(dec("2")), "BTC")
	assert.True(t, doubleSize.Equal(first.Mul(dec("2"))), "doubling size must double the fee")
	assert.True(t, doublePrice.Equal(first.Mul(dec("2"))), "doubling price must double the fee")
}

func TestRoundMoneyHalfUp(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"0.123456785", "0.12345679"},  // half rounds up
		{"0.123456784", "0.12345678"},  // below half rounds down
		{"0.123456786", "0.12345679"},  // above half rounds up
		{"1", "1"},                     // integers untouched
		{"24.500000004", "24.5"},       // trailing noise dropped
	}
	for _, tc := range cases {
		got := RoundMoney(dec(tc.in))
		assert.True(t, got.Equal(dec(tc.want)), "RoundMoney(%s) = %s, want %s", tc.in, got, tc.want)
	}
}

func TestEstimateFee(t *testing.T) {
	c := NewCalculator(nil)
	ctx := context.Background()

	est := c.EstimateFee(ctx, models.KindMarket, dec("1"), dec("100"), "BTC")
	assert.True(t, est.Rate.Equal(DefaultTakerRate))
	assert.True(t, est.Fee.Equal(dec("0.2")), "fee = %s", est.Fee)

	est = c.EstimateFee(ctx, models.KindLimit, dec("1"), dec("100"), "BTC")
	assert.True(t, est.Rate.Equal(DefaultMakerRate))
	assert.True(t, est.Fee.Equal(dec("0.1")), "fee = %s", est.Fee)
}
