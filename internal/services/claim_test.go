package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lostfound-board/apiserver/internal/store"
	"github.com/lostfound-board/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClaimService(repo ItemRepository, opts ...Option) *ClaimService {
	return NewClaimService(repo, append([]Option{WithLogger(discardLogger())}, opts...)...)
}

func TestClaimSucceedsThenConflicts(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryItemRepository()
	item := seedItem(t, repo, "u1", time.Time{})
	publisher := &recordingPublisher{}
	svc := newClaimService(repo, WithPublisher(publisher))

	claimed, err := svc.Claim(ctx, item.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusClaimed, claimed.Status)
	require.NotNil(t, claimed.ClaimedBy)
	assert.Equal(t, "u2", *claimed.ClaimedBy)
	require.NotNil(t, claimed.ClaimedAt)

	_, err = svc.Claim(ctx, item.ID, "u3")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	stored, err := repo.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "u2", *stored.ClaimedBy)
	assert.Equal(t, claimed.ClaimedAt.UnixNano(), stored.ClaimedAt.UnixNano())

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, ChannelItemClaimed, events[0].channel)
	assert.Equal(t, item.ID, events[0].event.ItemID)
	assert.Equal(t, "u2", events[0].event.ClaimedBy)
	assert.Equal(t, "u1", events[0].event.PostedBy)
}

func TestClaimOwnItemIsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryItemRepository()
	item := seedItem(t, repo, "u1", time.Time{})
	svc := newClaimService(repo)

	_, err := svc.Claim(ctx, item.ID, "u1")
	assert.ErrorIs(t, err, ErrSelfClaim)

	stored, err := repo.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusActive, stored.Status)
	assert.Nil(t, stored.ClaimedBy)
	assert.Equal(t, item.Version, stored.Version)
}

func TestClaimOwnItemIsInvalidEvenWhenClaimed(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryItemRepository()
	item := seedItem(t, repo, "u1", time.Time{})
	svc := newClaimService(repo)

	_, err := svc.Claim(ctx, item.ID, "u2")
	require.NoError(t, err)

	_, err = svc.Claim(ctx, item.ID, "u1")
	assert.ErrorIs(t, err, ErrSelfClaim)
}

func TestClaimMissingItem(t *testing.T) {
	svc := newClaimService(store.NewMemoryItemRepository())
	_, err := svc.Claim(context.Background(), "does-not-exist", "u2")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestClaimRequiresUser(t *testing.T) {
	svc := newClaimService(store.NewMemoryItemRepository())
	_, err := svc.Claim(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClaimConcurrentCallersSingleWinner(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemoryItemRepository()
	item := seedItem(t, memory, "u1", time.Time{})

	claimants := []string{"u2", "u3"}
	svc := newClaimService(newBarrierItemRepository(memory, len(claimants)))

	var wg sync.WaitGroup
	errs := make([]error, len(claimants))
	for i, userID := range claimants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Claim(ctx, item.ID, userID)
		}()
	}
	wg.Wait()

	var winner string
	for i, err := range errs {
		if err == nil {
			require.Empty(t, winner, "two claims succeeded")
			winner = claimants[i]
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
	}
	require.NotEmpty(t, winner)

	stored, err := memory.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, winner, *stored.ClaimedBy)
}

func TestClaimManyConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryItemRepository()
	item := seedItem(t, repo, "poster", time.Time{})
	publisher := &recordingPublisher{}
	svc := newClaimService(repo, WithPublisher(publisher))

	const callers = 50
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Claim(ctx, item.ID, fmt.Sprintf("user-%d", i))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
	}
	assert.Equal(t, 1, successes)
	assert.Len(t, publisher.published(), 1)
}

func TestClaimLostWriteIsConflict(t *testing.T) {
	memory := store.NewMemoryItemRepository()
	item := seedItem(t, memory, "u1", time.Time{})
	svc := newClaimService(failingItemRepository{ItemRepository: memory, err: store.ErrConflict})

	_, err := svc.Claim(context.Background(), item.ID, "u2")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestClaimStoreFailureIsNotConflict(t *testing.T) {
	memory := store.NewMemoryItemRepository()
	item := seedItem(t, memory, "u1", time.Time{})
	svc := newClaimService(failingItemRepository{ItemRepository: memory, err: errBoom})

	_, err := svc.Claim(context.Background(), item.ID, "u2")
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrAlreadyClaimed)
}

func TestClaimTimeout(t *testing.T) {
	svc := newClaimService(slowItemRepository{}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := svc.Claim(context.Background(), "x", "u2")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrAlreadyClaimed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClaimTimeIsNeverBeforeCreation(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryItemRepository()
	createdAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	item := seedItem(t, repo, "u1", createdAt)

	skewed := func() time.Time { return createdAt.Add(-time.Minute) }
	svc := newClaimService(repo, WithClock(skewed))

	claimed, err := svc.Claim(ctx, item.ID, "u2")
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedAt)
	assert.False(t, claimed.ClaimedAt.Before(claimed.CreatedAt))
}

func TestClaimSucceedsWhenPublishFails(t *testing.T) {
	repo := store.NewMemoryItemRepository()
	item := seedItem(t, repo, "u1", time.Time{})
	svc := newClaimService(repo, WithPublisher(&recordingPublisher{err: errBoom}))

	claimed, err := svc.Claim(context.Background(), item.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, types.ItemStatusClaimed, claimed.Status)
}

func TestClaimInvariantsHoldAfterMixedSequence(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryItemRepository()
	svc := newClaimService(repo)

	users := []string{"u1", "u2", "u3"}
	var items []types.Item
	for _, poster := range users {
		items = append(items, seedItem(t, repo, poster, time.Time{}))
	}
	for _, item := range items {
		for _, user := range users {
			_, _ = svc.Claim(ctx, item.ID, user)
		}
	}

	all, _, err := repo.List(ctx, types.ItemFilter{Limit: 10})
	require.NoError(t, err)
	for _, item := range all {
		assert.Equal(t, item.Status == types.ItemStatusClaimed, item.ClaimedBy != nil)
		if item.ClaimedBy != nil {
			assert.NotEqual(t, item.PostedBy, *item.ClaimedBy)
			require.NotNil(t, item.ClaimedAt)
			assert.False(t, item.ClaimedAt.Before(item.CreatedAt))
		}
		assert.Equal(t, types.ItemStatusClaimed, item.Status)
	}
}
