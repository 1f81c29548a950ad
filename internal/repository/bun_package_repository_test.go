package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zignal/zignalapi/internal/db/dbtest"
	"github.com/zignal/zignalapi/internal/db/models"
)

func TestBunPackageRepository_SubscriberCounts(t *testing.T) {
	db := dbtest.New(t)
	profiles := NewBunProfileRepository(db)
	repo := NewBunPackageRepository(db)
	ctx := context.Background()

	empty, err := repo.ListWithSubscriberCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	basic := &models.Package{Name: "Basic", Price: 19, DurationDays: 30, Features: models.StringList{"daily signals"}, Active: true}
	require.NoError(t, repo.Create(ctx, basic))
	assert.Equal(t, "USD", basic.Currency)
	pro := &models.Package{Name: "Pro", Price: 49, DurationDays: 30, Features: models.StringList{"daily signals", "vip chat"}, Active: true}
	require.NoError(t, repo.Create(ctx, pro))

	alice := createProfile(t, profiles, "alice@example.com")
	bob := createProfile(t, profiles, "bob@example.com")
	carol := createProfile(t, profiles, "carol@example.com")

	for _, sub := range []*models.Subscription{
		{ProfileID: alice.ID, PackageID: pro.ID},
		{ProfileID: bob.ID, PackageID: pro.ID},
		{ProfileID: carol.ID, PackageID: pro.ID, Status: models.SubscriptionExpired},
		{ProfileID: carol.ID, PackageID: basic.ID, Status: models.SubscriptionCancelled},
	} {
		require.NoError(t, repo.CreateSubscription(ctx, sub))
	}

	views, err := repo.ListWithSubscriberCounts(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "Pro", views[0].Name, "newest first")
	assert.Equal(t, 2, views[0].SubscriberCount, "only active subscriptions count")
	assert.Equal(t, models.StringList{"daily signals", "vip chat"}, views[0].Features)

	assert.Equal(t, "Basic", views[1].Name)
	assert.Equal(t, 0, views[1].SubscriberCount)
}
