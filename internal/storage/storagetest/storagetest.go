// Package storagetest holds the behaviour every storage.Store engine must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solsniper-bot/internal/storage"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
	"github.com/rovshanmuradov/solsniper-bot/internal/types"
)

const (
	TokenA = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	TokenB = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// Run executes the shared suite. newStore must return a migrated, empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateAndGetUser", testCreateAndGetUser},
		{"SettingsDefaults", testSettingsDefaults},
		{"UpdateSettings", testUpdateSettings},
		{"RecordTrade", testRecordTrade},
		{"RecordTradeIsAtomic", testRecordTradeIsAtomic},
		{"ConcurrentUpsertsSum", testConcurrentUpsertsSum},
		{"PositionsExcludeEmpty", testPositionsExcludeEmpty},
		{"LargeAmountsExactOrRejected", testLargeAmountsExactOrRejected},
		{"TradesOrderAndLimit", testTradesOrderAndLimit},
		{"Stats", testStats},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			tt.fn(t, s)
		})
	}
}

// MustCreateUser registers a user with a placeholder wallet.
func MustCreateUser(t *testing.T, s storage.Store, telegramID int64) *models.User {
	t.Helper()
	user := &models.User{
		TelegramID:    telegramID,
		Username:      fmt.Sprintf("user%d", telegramID),
		WalletAddress: fmt.Sprintf("wallet%d", telegramID),
		PrivateKey:    fmt.Sprintf("key%d", telegramID),
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func testCreateAndGetUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	created := MustCreateUser(t, s, 42)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, created.WalletAddress, got.WalletAddress)
	assert.Equal(t, created.PrivateKey, got.PrivateKey)
	assert.Equal(t, "user42", got.Username)

	err = s.CreateUser(ctx, &models.User{TelegramID: 42, WalletAddress: "other", PrivateKey: "other"})
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists), "got %v", err)

	_, err = s.GetUser(ctx, 7)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func testSettingsDefaults(t *testing.T, s storage.Store) {
	ctx := context.Background()
	MustCreateUser(t, s, 1)

	first, err := s.GetSettings(ctx, 1)
	require.NoError(t, err)
	second, err := s.GetSettings(ctx, 1)
	require.NoError(t, err)

	assert.True(t, first.Slippage.Equal(decimal.NewFromInt(15)), "slippage %s", first.Slippage)
	assert.True(t, first.AutoBuyAmount.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, first.MEVProtection)
	assert.Equal(t, types.PriorityMedium, first.PriorityFee)
	assertSameSettings(t, first, second)

	// No row at all still yields the defaults.
	unknown, err := s.GetSettings(ctx, 999)
	require.NoError(t, err)
	assertSameSettings(t, models.DefaultSettings(999), unknown)
}

func testUpdateSettings(t *testing.T, s storage.Store) {
	ctx := context.Background()
	MustCreateUser(t, s, 1)

	slippage := decimal.NewFromInt(25)
	mev := false
	require.NoError(t, s.UpdateSettings(ctx, 1, models.SettingsUpdate{Slippage: &slippage, MEVProtection: &mev}))

	got, err := s.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Slippage.Equal(slippage))
	assert.False(t, got.MEVProtection)
	assert.True(t, got.AutoBuyAmount.Equal(models.DefaultAutoBuyAmount), "untouched field changed")

	bps, err := got.SlippageBps()
	require.NoError(t, err)
	assert.Equal(t, uint16(2500), bps)

	priority := types.PriorityExtreme
	require.NoError(t, s.UpdateSettings(ctx, 1, models.SettingsUpdate{PriorityFee: &priority}))
	got, err = s.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, types.PriorityExtreme, got.PriorityFee)

	err = s.UpdateSettings(ctx, 404, models.SettingsUpdate{Slippage: &slippage})
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)

	assert.NoError(t, s.UpdateSettings(ctx, 1, models.SettingsUpdate{}))
}

func testRecordTrade(t *testing.T, s storage.Store) {
	ctx := context.Background()
	MustCreateUser(t, s, 1)

	trade := &models.Trade{
		TelegramID:   1,
		TokenAddress: TokenA,
		Side:         models.SideBuy,
		AmountIn:     decimal.RequireFromString("1.0"),
		AmountOut:    decimal.NewFromInt(500000),
		Signature:    "sig1",
	}
	delta := models.PositionDelta{
		TelegramID:   1,
		TokenAddress: TokenA,
		Symbol:       "BONK",
		Name:         "Bonk",
		Amount:       decimal.NewFromInt(500000),
		EntryPrice:   decimal.NewNullDecimal(decimal.RequireFromString("0.000002")),
	}
	require.NoError(t, s.RecordTrade(ctx, trade, delta))
	assert.NotZero(t, trade.ID)
	assert.Equal(t, models.TradeStatusCompleted, trade.Status)

	trades, err := s.GetTrades(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.SideBuy, trades[0].Side)
	assert.True(t, trades[0].AmountIn.Equal(decimal.NewFromInt(1)))
	assert.True(t, trades[0].AmountOut.Equal(decimal.NewFromInt(500000)))
	assert.Equal(t, "sig1", trades[0].Signature)

	positions, err := s.GetPositions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "BONK", positions[0].Symbol)
	assert.True(t, positions[0].Amount.Equal(decimal.NewFromInt(500000)), "amount %s", positions[0].Amount)
	assert.True(t, positions[0].EntryPrice.Valid)
}

func testRecordTradeIsAtomic(t *testing.T, s storage.Store) {
	ctx := context.Background()
	MustCreateUser(t, s, 1)

	trade := &models.Trade{
		TelegramID:   1,
		TokenAddress: TokenA,
		Side:         models.SideBuy,
		AmountIn:     decimal.NewFromInt(1),
		AmountOut:    decimal.NewFromInt(10),
	}
	// The position insert violates the users foreign key, so the trade
	// written before it in the same transaction must be rolled back.
	delta := models.PositionDelta{TelegramID: 2, TokenAddress: TokenA, Amount: decimal.NewFromInt(10)}
	require.Error(t, s.RecordTrade(ctx, trade, delta))

	trades, err := s.GetTrades(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func testConcurrentUpsertsSum(t *testing.T, s storage.Store) {
	ctx := context.Background()
	MustCreateUser(t, s, 1)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			errs <- s.UpsertPosition(ctx, models.PositionDelta{
				TelegramID:   1,
				TokenAddress: TokenA,
				Amount:       decimal.NewFromInt(n),
			})
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	positions, err := s.GetPositions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	// 1 + 2 + ... + 20
	assert.True(t, positions[0].Amount.Equal(decimal.NewFromInt(210)), "amount %s", positions[0].Amount)
}

func testPositionsExcludeEmpty(t *testing.T, s storage.Store) {
	ctx := context.Background()
	MustCreateUser(t, s, 1)

	require.NoError(t, s.UpsertPosition(ctx, models.PositionDelta{TelegramID: 1, TokenAddress: TokenA, Amount: decimal.NewFromInt(100)}))
	require.NoError(t, s.UpsertPosition(ctx, models.PositionDelta{TelegramID: 1, TokenAddress: TokenB, Amount: decimal.NewFromInt(50)}))
	require.NoError(t, s.UpsertPosition(ctx, models.PositionDelta{TelegramID: 1, TokenAddress: TokenA, Amount: decimal.NewFromInt(-100)}))

	positions, err := s.GetPositions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, TokenB, positions[0].TokenAddress)
	for _, p := range positions {
		assert.True(t, p.Amount.IsPositive())
	}

	require.NoError(t, s.DeletePosition(ctx, 1, TokenB))
	positions, err = s.GetPositions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, positions)

	err = s.DeletePosition(ctx, 1, TokenB)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

// testLargeAmountsExactOrRejected: an engine either keeps a uint64 token
// amount exactly or refuses the write. A stored row is never corrupted.
func testLargeAmountsExactOrRejected(t *testing.T, s storage.Store) {
	ctx := context.Background()
	MustCreateUser(t, s, 1)

	big := decimal.RequireFromString("10000000000000000000") // > MaxInt64, < MaxUint64
	err := s.UpsertPosition(ctx, models.PositionDelta{TelegramID: 1, TokenAddress: TokenA, Amount: big})
	positions, getErr := s.GetPositions(ctx, 1)
	require.NoError(t, getErr)
	if err != nil {
		assert.ErrorIs(t, err, storage.ErrAmountOutOfRange)
		assert.Empty(t, positions)
	} else {
		require.Len(t, positions, 1)
		assert.True(t, positions[0].Amount.Equal(big), "amount %s", positions[0].Amount)
	}

	maxInt := decimal.NewFromInt(math.MaxInt64)
	require.NoError(t, s.UpsertPosition(ctx, models.PositionDelta{TelegramID: 1, TokenAddress: TokenB, Amount: maxInt}))
	err = s.UpsertPosition(ctx, models.PositionDelta{TelegramID: 1, TokenAddress: TokenB, Amount: decimal.NewFromInt(1)})

	want := maxInt.Add(decimal.NewFromInt(1))
	if err != nil {
		assert.ErrorIs(t, err, storage.ErrAmountOutOfRange)
		want = maxInt
	}
	positions, getErr = s.GetPositions(ctx, 1)
	require.NoError(t, getErr)
	var found bool
	for _, p := range positions {
		if p.TokenAddress == TokenB {
			found = true
			assert.True(t, p.Amount.Equal(want), "amount %s, want %s", p.Amount, want)
		}
	}
	assert.True(t, found, "position %s missing", TokenB)
}

func testTradesOrderAndLimit(t *testing.T, s storage.Store) {
	ctx := context.Background()
	MustCreateUser(t, s, 1)
	MustCreateUser(t, s, 2)

	for i := 1; i <= 12; i++ {
		require.NoError(t, s.LogTrade(ctx, &models.Trade{
			TelegramID:   1,
			TokenAddress: TokenA,
			Side:         models.SideSell,
			AmountIn:     decimal.NewFromInt(int64(i)),
			AmountOut:    decimal.RequireFromString("0.5"),
			Signature:    fmt.Sprintf("sig%d", i),
		}))
	}
	require.NoError(t, s.LogTrade(ctx, &models.Trade{
		TelegramID: 2, TokenAddress: TokenB, Side: models.SideBuy,
		AmountIn: decimal.NewFromInt(1), AmountOut: decimal.NewFromInt(1),
	}))

	trades, err := s.GetTrades(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, trades, storage.DefaultTradesLimit)
	assert.Equal(t, "sig12", trades[0].Signature, "newest first")
	for _, trade := range trades {
		assert.Equal(t, int64(1), trade.TelegramID)
	}

	recent, err := s.RecentTrades(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(2), recent[0].TelegramID)
	assert.Empty(t, recent[0].Signature)
}

func testStats(t *testing.T, s storage.Store) {
	ctx := context.Background()
	MustCreateUser(t, s, 1)
	MustCreateUser(t, s, 2)
	require.NoError(t, s.RecordTrade(ctx,
		&models.Trade{TelegramID: 1, TokenAddress: TokenA, Side: models.SideBuy, AmountIn: decimal.NewFromInt(1), AmountOut: decimal.NewFromInt(5)},
		models.PositionDelta{TelegramID: 1, TokenAddress: TokenA, Amount: decimal.NewFromInt(5)},
	))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Users: 2, Trades: 1, Positions: 1}, stats)
}

func assertSameSettings(t *testing.T, want, got models.Settings) {
	t.Helper()
	assert.Equal(t, want.TelegramID, got.TelegramID)
	assert.True(t, want.Slippage.Equal(got.Slippage))
	assert.True(t, want.AutoBuyAmount.Equal(got.AutoBuyAmount))
	assert.Equal(t, want.MEVProtection, got.MEVProtection)
	assert.Equal(t, want.PriorityFee, got.PriorityFee)
}
