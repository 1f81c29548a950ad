package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zignal/zignalapi/internal/db/dbtest"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
)

func TestBunNewsRepository_Search(t *testing.T) {
	db := dbtest.New(t)
	repo := NewBunNewsRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, n := range []models.News{
		{Title: "Bitcoin rallies", Source: "CoinDesk", Summary: "BTC above 70k"},
		{Title: "Fed holds rates", Source: "Reuters", Summary: "Markets calm"},
		{Title: "ETH upgrade", Source: "The Block", Summary: "bitcoin dominance dips"},
	} {
		n.PublishedAt = now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, &n))
	}

	items, total, err := repo.List(ctx, "BITCOIN", pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "ETH upgrade", items[0].Title, "newest first")

	items, total, err = repo.List(ctx, "reuters", pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Fed holds rates", items[0].Title)

	_, total, err = repo.List(ctx, "", pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestBunTransactionRepository_TypedViews(t *testing.T) {
	db := dbtest.New(t)
	profiles := NewBunProfileRepository(db)
	repo := NewBunTransactionRepository(db)
	ctx := context.Background()

	owner := createProfile(t, profiles, "wallet@example.com")
	other := createProfile(t, profiles, "someone@example.com")

	w := &models.Transaction{ProfileID: owner.ID, Type: models.TransactionWithdrawal, Amount: 100, Currency: "USD", Destination: ptr("wallet123")}
	require.NoError(t, repo.Create(ctx, w))
	assert.Equal(t, models.TransactionPending, w.Status)
	require.NoError(t, repo.Create(ctx, &models.Transaction{ProfileID: owner.ID, Type: models.TransactionDeposit, Amount: 50, Currency: "USDT"}))
	require.NoError(t, repo.Create(ctx, &models.Transaction{ProfileID: other.ID, Type: models.TransactionDeposit, Amount: 5, Currency: "PHP"}))

	items, total, err := repo.List(ctx, TransactionFilter{ProfileID: owner.ID, Type: "withdrawal"}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, w.ID, items[0].ID)
	assert.Equal(t, "wallet123", *items[0].Destination)

	_, total, err = repo.List(ctx, TransactionFilter{ProfileID: owner.ID}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestBunSignalAndTradeRepositories_Filters(t *testing.T) {
	db := dbtest.New(t)
	profiles := NewBunProfileRepository(db)
	signals := NewBunSignalRepository(db)
	trades := NewBunTradeRepository(db)
	ctx := context.Background()

	require.NoError(t, signals.Create(ctx, &models.Signal{Pair: "btc/usdt", Action: "buy", TargetPrice: 72000, TakeProfits: models.FloatList{73000, 75000}}))
	require.NoError(t, signals.Create(ctx, &models.Signal{Pair: "ETH/USDT", Action: "SELL"}))

	items, total, err := signals.List(ctx, SignalFilter{Action: "buy"}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "BTC/USDT", items[0].Pair)
	assert.Equal(t, models.FloatList{73000, 75000}, items[0].TakeProfits)

	_, total, err = signals.List(ctx, SignalFilter{Search: "eth"}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	owner := createProfile(t, profiles, "trader@example.com")
	require.NoError(t, trades.Create(ctx, &models.Trade{ProfileID: owner.ID, Pair: "BTC/USDT", Side: "buy", Price: 70000, Amount: 0.1}))
	require.NoError(t, trades.Create(ctx, &models.Trade{ProfileID: owner.ID, Pair: "SOL/USDT", Side: "SELL", Price: 150, Amount: 3}))

	tradeItems, total, err := trades.List(ctx, TradeFilter{ProfileID: owner.ID, Side: "BUY"}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "BTC/USDT", tradeItems[0].Pair)

	_, total, err = trades.List(ctx, TradeFilter{ProfileID: owner.ID, Search: "sol"}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestBunNotificationRepository_ReadState(t *testing.T) {
	db := dbtest.New(t)
	profiles := NewBunProfileRepository(db)
	repo := NewBunNotificationRepository(db)
	ctx := context.Background()

	owner := createProfile(t, profiles, "inbox@example.com")
	other := createProfile(t, profiles, "elsewhere@example.com")

	first := &models.Notification{ProfileID: owner.ID, Title: "Signal", Message: "BTC buy", Type: "trade"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, &models.Notification{ProfileID: owner.ID, Title: "Welcome", Message: "hi"}))
	foreign := &models.Notification{ProfileID: other.ID, Title: "x", Message: "y"}
	require.NoError(t, repo.Create(ctx, foreign))

	_, unread, err := repo.List(ctx, owner.ID, true, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	require.NoError(t, repo.MarkRead(ctx, owner.ID, first.ID))
	assert.ErrorIs(t, repo.MarkRead(ctx, owner.ID, foreign.ID), ErrNotFound)
	assert.ErrorIs(t, repo.MarkRead(ctx, owner.ID, "abc"), ErrNotFound)

	_, unread, err = repo.List(ctx, owner.ID, true, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	n, err := repo.MarkAllRead(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	items, total, err := repo.List(ctx, owner.ID, false, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, it := range items {
		assert.True(t, it.IsRead)
	}
}
