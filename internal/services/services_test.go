package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lostfound-board/apiserver/internal/store"
	"github.com/lostfound-board/apiserver/types"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type publishedEvent struct {
	channel string
	event   ItemEvent
}

// recordingPublisher captures published item events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, channel string, value any, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	event, _ := value.(ItemEvent)
	p.events = append(p.events, publishedEvent{channel: channel, event: event})
	return "id", nil
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent{}, p.events...)
}

// seedItem stores an active found item posted by postedBy.
func seedItem(t *testing.T, repo ItemRepository, postedBy string, createdAt time.Time) types.Item {
	t.Helper()
	item, err := repo.Create(context.Background(), types.Item{
		Kind:        types.ItemKindFound,
		Title:       "Black umbrella",
		Description: "Left on the bench",
		Location:    "Bus stop 4",
		PostedBy:    postedBy,
		CreatedAt:   createdAt,
	})
	require.NoError(t, err)
	return item
}

// slowItemRepository blocks every call until the context is done.
type slowItemRepository struct{}

func (slowItemRepository) Get(ctx context.Context, _ string) (types.Item, error) {
	<-ctx.Done()
	return types.Item{}, ctx.Err()
}

func (slowItemRepository) Create(ctx context.Context, _ types.Item) (types.Item, error) {
	<-ctx.Done()
	return types.Item{}, ctx.Err()
}

func (slowItemRepository) List(ctx context.Context, _ types.ItemFilter) ([]types.Item, int, error) {
	<-ctx.Done()
	return nil, 0, ctx.Err()
}

func (slowItemRepository) UpdateStatus(ctx context.Context, _ string, _ types.ItemStatus, _ types.ItemTransition) (types.Item, error) {
	<-ctx.Done()
	return types.Item{}, ctx.Err()
}

func (slowItemRepository) AddImage(ctx context.Context, _, _ string, _ int) (types.Item, error) {
	<-ctx.Done()
	return types.Item{}, ctx.Err()
}

// barrierItemRepository holds every Get until n callers have read the item,
// so all of them pass the pre-checks before any conditional write runs.
type barrierItemRepository struct {
	ItemRepository
	reads sync.WaitGroup
}

func newBarrierItemRepository(inner ItemRepository, n int) *barrierItemRepository {
	r := &barrierItemRepository{ItemRepository: inner}
	r.reads.Add(n)
	return r
}

func (r *barrierItemRepository) Get(ctx context.Context, id string) (types.Item, error) {
	item, err := r.ItemRepository.Get(ctx, id)
	r.reads.Done()
	r.reads.Wait()
	return item, err
}

// failingItemRepository returns err from every write.
type failingItemRepository struct {
	ItemRepository
	err error
}

func (r failingItemRepository) UpdateStatus(context.Context, string, types.ItemStatus, types.ItemTransition) (types.Item, error) {
	return types.Item{}, r.err
}

func (r failingItemRepository) AddImage(context.Context, string, string, int) (types.Item, error) {
	return types.Item{}, r.err
}

var errBoom = errors.New("boom")

var _ ItemRepository = (*store.MemoryItemRepository)(nil)
var _ UserRepository = (*store.MemoryUserRepository)(nil)
