package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-engine/internal/domain"
)

func newAuction(id string) *domain.Auction {
	now := time.Now()
	return &domain.Auction{
		ID:           id,
		ProductID:    "product_1",
		SellerID:     "seller_1",
		StartPrice:   50000,
		CurrentPrice: 50000,
		MinIncrement: 1000,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
		Status:       domain.AuctionActive,
	}
}

func TestUpdateAuction_VersionContract(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.CreateAuction(ctx, newAuction("auction_1")))

	first, err := store.GetAuction(ctx, "auction_1")
	require.NoError(t, err)
	second, err := store.GetAuction(ctx, "auction_1")
	require.NoError(t, err)

	first.CurrentPrice = 51000
	require.NoError(t, store.UpdateAuction(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	// The second reader still holds version 0 and must lose the race.
	second.CurrentPrice = 52000
	err = store.UpdateAuction(ctx, second)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	stored, err := store.GetAuction(ctx, "auction_1")
	require.NoError(t, err)
	assert.Equal(t, int64(51000), stored.CurrentPrice)
}

func TestUpdateAuction_PreservesViewCount(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.CreateAuction(ctx, newAuction("auction_1")))
	require.NoError(t, store.IncrementViewCount(ctx, "auction_1"))
	require.NoError(t, store.IncrementViewCount(ctx, "auction_1"))

	// A writer holding a snapshot from before the views must not clobber them.
	auction, err := store.GetAuction(ctx, "auction_1")
	require.NoError(t, err)
	auction.ViewCount = 0
	auction.CurrentPrice = 51000
	require.NoError(t, store.UpdateAuction(ctx, auction))

	stored, err := store.GetAuction(ctx, "auction_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.ViewCount)
	assert.Equal(t, int64(51000), stored.CurrentPrice)
}

func TestGetAuction_ReturnsIsolatedCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.CreateAuction(ctx, newAuction("auction_1")))

	auction, err := store.GetAuction(ctx, "auction_1")
	require.NoError(t, err)
	auction.CurrentPrice = 99999

	stored, err := store.GetAuction(ctx, "auction_1")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), stored.CurrentPrice)
}

func TestGetAuction_NotFound(t *testing.T) {
	store := NewStore()
	_, err := store.GetAuction(context.Background(), "auction_missing")
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestDeactivateAutoBid(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.SaveAutoBid(ctx, &domain.AutoBid{
		ID:        "autobid_1",
		AuctionID: "auction_1",
		BidderID:  "alice",
		MaxAmount: 70000,
		IsActive:  true,
		CreatedAt: time.Now(),
	}))

	require.NoError(t, store.DeactivateAutoBid(ctx, "auction_1", "alice"))

	active, err := store.GetActiveAutoBids(ctx, "auction_1")
	require.NoError(t, err)
	assert.Empty(t, active)

	err = store.DeactivateAutoBid(ctx, "auction_1", "alice")
	assert.ErrorIs(t, err, domain.ErrAutoBidNotFound)
}

func TestDueAuctionQueries(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now()

	scheduled := newAuction("auction_scheduled")
	scheduled.Status = domain.AuctionScheduled
	scheduled.StartTime = now.Add(-time.Minute)
	require.NoError(t, store.CreateAuction(ctx, scheduled))

	expired := newAuction("auction_expired")
	expired.EndTime = now.Add(-time.Minute)
	require.NoError(t, store.CreateAuction(ctx, expired))

	running := newAuction("auction_running")
	require.NoError(t, store.CreateAuction(ctx, running))

	due, err := store.GetAuctionsDueToStart(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "auction_scheduled", due[0].ID)

	ending, err := store.GetAuctionsDueToEnd(ctx, now)
	require.NoError(t, err)
	require.Len(t, ending, 1)
	assert.Equal(t, "auction_expired", ending[0].ID)

	active, err := store.GetActiveAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
}
