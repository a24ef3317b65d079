package bookkeeper

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tradewell/exchange-core/internal/database"
	"github.com/tradewell/exchange-core/pkg/models"
)

func newTestService(t *testing.T) *Service {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewService(zap.NewNop(), db)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedAccount(t *testing.T, s *Service, userID uuid.UUID, asset, available string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.CreateAccount(ctx, userID, asset)
	require.NoError(t, err)
	require.NoError(t, s.AddBalance(ctx, userID, asset, dec(available), nil))
}

// requireBalances asserts available and locked and that both are
// non-negative, the core ledger invariant.
func requireBalances(t *testing.T, s *Service, userID uuid.UUID, asset, available, locked string) {
	t.Helper()
	account, err := s.GetAccount(context.Background(), userID, asset)
	require.NoError(t, err)
	require.True(t, account.Available.Equal(dec(available)), "available = %s, want %s", account.Available, available)
	require.True(t, account.Locked.Equal(dec(locked)), "locked = %s, want %s", account.Locked, locked)
	require.False(t, account.Available.IsNegative())
	require.False(t, account.Locked.IsNegative())
}

func TestLockUnlock(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	seedAccount(t, s, user, "USDT", "1000")

	require.NoError(t, s.Lock(ctx, user, "USDT", dec("400"), nil))
	requireBalances(t, s, user, "USDT", "600", "400")

	require.NoError(t, s.Unlock(ctx, user, "USDT", dec("150"), nil))
	requireBalances(t, s, user, "USDT", "750", "250")
}

func TestLockInsufficientBalance(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	seedAccount(t, s, user, "USDT", "100")

	err := s.Lock(ctx, user, "USDT", dec("100.00000001"), nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	requireBalances(t, s, user, "USDT", "100", "0")
}

func TestLockUnsupportedAsset(t *testing.T) {
	s := newTestService(t)
	err := s.Lock(context.Background(), uuid.New(), "XRP", dec("1"), nil)
	require.ErrorIs(t, err, ErrUnsupportedAsset)
}

func TestSubtractBalance(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	seedAccount(t, s, user, "BTC", "2")

	require.NoError(t, s.SubtractBalance(ctx, user, "BTC", dec("0.5"), nil))
	requireBalances(t, s, user, "BTC", "1.5", "0")

	err := s.SubtractBalance(ctx, user, "BTC", dec("10"), nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	requireBalances(t, s, user, "BTC", "1.5", "0")
}

func TestSwapBalances(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	seedAccount(t, s, user, "USDT", "50000")
	seedAccount(t, s, user, "BTC", "0")

	err := s.SwapBalances(ctx, user,
		Transfer{Asset: "USDT", Amount: dec("24500")},
		Transfer{Asset: "BTC", Amount: dec("0.499")},
		nil)
	require.NoError(t, err)
	requireBalances(t, s, user, "USDT", "25500", "0")
	requireBalances(t, s, user, "BTC", "0.499", "0")
}

func TestSwapBalancesRollsBackOnInsufficientDebit(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	seedAccount(t, s, user, "USDT", "10")
	seedAccount(t, s, user, "BTC", "0")

	err := s.SwapBalances(ctx, user,
		Transfer{Asset: "USDT", Amount: dec("100")},
		Transfer{Asset: "BTC", Amount: dec("1")},
		nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	requireBalances(t, s, user, "USDT", "10", "0")
	requireBalances(t, s, user, "BTC", "0", "0")

	// No partial application: the aborted swap left no ledger entries.
	entries, count, err := s.Entries(ctx, user, "USDT", 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), count, "only the seed credit should exist") // seed AddBalance
	require.Equal(t, models.EntryCredit, entries[0].Type)
}

func TestSwapBalancesUnsupportedCreditAsset(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	seedAccount(t, s, user, "USDT", "100")

	err := s.SwapBalances(ctx, user,
		Transfer{Asset: "USDT", Amount: dec("50")},
		Transfer{Asset: "BTC", Amount: dec("0.001")},
		nil)
	require.ErrorIs(t, err, ErrUnsupportedAsset)
	// The debit must have rolled back with the failed credit.
	requireBalances(t, s, user, "USDT", "100", "0")
}

func TestFillLimitOrder(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	seedAccount(t, s, user, "USDT", "25000")
	seedAccount(t, s, user, "BTC", "0")
	require.NoError(t, s.Lock(ctx, user, "USDT", dec("24500"), nil))

	err := s.FillLimitOrder(ctx, user,
		Transfer{Asset: "USDT", Amount: dec("24500")},
		Transfer{Asset: "BTC", Amount: dec("0.4995")},
		nil)
	require.NoError(t, err)
	requireBalances(t, s, user, "USDT", "500", "0")
	requireBalances(t, s, user, "BTC", "0.4995", "0")
}

func TestFillLimitOrderInsufficientLocked(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	seedAccount(t, s, user, "USDT", "100")
	seedAccount(t, s, user, "BTC", "0")
	require.NoError(t, s.Lock(ctx, user, "USDT", dec("50"), nil))

	err := s.FillLimitOrder(ctx, user,
		Transfer{Asset: "USDT", Amount: dec("60")},
		Transfer{Asset: "BTC", Amount: dec("0.001")},
		nil)
	require.ErrorIs(t, err, ErrInsufficientLocked)
	requireBalances(t, s, user, "USDT", "50", "50")
	requireBalances(t, s, user, "BTC", "0", "0")
}

func TestEveryMutationWritesOneLedgerEntry(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	ref := uuid.New()
	seedAccount(t, s, user, "USDT", "1000") // 1 entry

	require.NoError(t, s.Lock(ctx, user, "USDT", dec("100"), &ref))     // 2
	require.NoError(t, s.Unlock(ctx, user, "USDT", dec("40"), &ref))    // 3
	require.NoError(t, s.SubtractBalance(ctx, user, "USDT", dec("10"), &ref)) // 4

	entries, count, err := s.Entries(ctx, user, "USDT", 100, 0)
	require.NoError(t, err)
	require.Equal(t, int64(4), count)

	// Entries carry before/after views and the reference id.
	for _, e := range entries {
		require.False(t, e.Amount.IsNegative())
		if e.Type != models.EntryCredit {
			require.NotNil(t, e.ReferenceID)
			require.Equal(t, ref, *e.ReferenceID)
		}
	}
}

func TestBalanceBeforeAfterChain(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	seedAccount(t, s, user, "USDT", "100")

	require.NoError(t, s.AddBalance(ctx, user, "USDT", dec("25"), nil))
	require.NoError(t, s.SubtractBalance(ctx, user, "USDT", dec("5"), nil))

	entries, _, err := s.Entries(ctx, user, "USDT", 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first: each entry's before must equal the next one's after.
	for i := 0; i+1 < len(entries); i++ {
		require.True(t, entries[i].BalanceBefore.Equal(entries[i+1].BalanceAfter),
			"entry %d before %s != entry %d after %s", i, entries[i].BalanceBefore, i+1, entries[i+1].BalanceAfter)
	}
}
