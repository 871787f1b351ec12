package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lostfound-board/apiserver/types"
)

// MemoryItemRepository keeps items in process memory.
//
// Conditional updates use the item's Version as an optimistic concurrency
// token: the transition is computed from a snapshot and committed only if
// the stored version is still the one that was read.
type MemoryItemRepository struct {
	mu    sync.RWMutex
	items map[string]types.Item
}

func NewMemoryItemRepository() *MemoryItemRepository {
	return &MemoryItemRepository{items: make(map[string]types.Item)}
}

func cloneItem(item types.Item) types.Item {
	out := item
	if item.ClaimedBy != nil {
		claimedBy := *item.ClaimedBy
		out.ClaimedBy = &claimedBy
	}
	if item.ClaimedAt != nil {
		claimedAt := *item.ClaimedAt
		out.ClaimedAt = &claimedAt
	}
	out.Images = append([]string{}, item.Images...)
	return out
}

func (r *MemoryItemRepository) Get(ctx context.Context, id string) (types.Item, error) {
	if err := ctx.Err(); err != nil {
		return types.Item{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return types.Item{}, ErrNotFound
	}
	return cloneItem(item), nil
}

func (r *MemoryItemRepository) Create(ctx context.Context, item types.Item) (types.Item, error) {
	if err := ctx.Err(); err != nil {
		return types.Item{}, err
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = item.CreatedAt
	if item.Status == "" {
		item.Status = types.ItemStatusActive
	}
	item.Version = 1

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; exists {
		return types.Item{}, ErrDuplicate
	}
	r.items[item.ID] = cloneItem(item)
	return cloneItem(item), nil
}

func (r *MemoryItemRepository) List(ctx context.Context, filter types.ItemFilter) ([]types.Item, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))

	r.mu.RLock()
	matched := make([]types.Item, 0, len(r.items))
	for _, item := range r.items {
		if filter.Kind != "" && item.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.PostedBy != "" && item.PostedBy != filter.PostedBy {
			continue
		}
		if query != "" && !matchesQuery(item, query) {
			continue
		}
		matched = append(matched, cloneItem(item))
	}
	r.mu.RUnlock()

	oldestFirst := filter.Order == types.ItemOrderOldest
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if oldestFirst {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if oldestFirst {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	total := len(matched)
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func matchesQuery(item types.Item, query string) bool {
	return strings.Contains(strings.ToLower(item.Title), query) ||
		strings.Contains(strings.ToLower(item.Description), query) ||
		strings.Contains(strings.ToLower(item.Location), query)
}

// UpdateStatus applies transition only if the item's status is still from.
func (r *MemoryItemRepository) UpdateStatus(ctx context.Context, id string, from types.ItemStatus, to types.ItemTransition) (types.Item, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return types.Item{}, err
	}
	if current.Status != from {
		return types.Item{}, ErrConflict
	}

	next := cloneItem(current)
	next.Status = to.Status
	next.ClaimedBy = to.ClaimedBy
	next.ClaimedAt = to.ClaimedAt

	return r.compareAndSwap(ctx, current.Version, next)
}

// AddImage appends an object key to the item's image list unless the list
// already holds limit keys. The length check is repeated on every attempt and
// committed through the version CAS, so concurrent appends cannot overshoot.
func (r *MemoryItemRepository) AddImage(ctx context.Context, id, key string, limit int) (types.Item, error) {
	for {
		current, err := r.Get(ctx, id)
		if err != nil {
			return types.Item{}, err
		}
		if len(current.Images) >= limit {
			return types.Item{}, ErrLimitReached
		}
		next := cloneItem(current)
		next.Images = append(next.Images, key)

		updated, err := r.compareAndSwap(ctx, current.Version, next)
		if errors.Is(err, ErrConflict) {
			continue
		}
		return updated, err
	}
}

// compareAndSwap stores next if the stored version still equals expected.
func (r *MemoryItemRepository) compareAndSwap(ctx context.Context, expected int64, next types.Item) (types.Item, error) {
	if err := ctx.Err(); err != nil {
		return types.Item{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[next.ID]
	if !ok {
		return types.Item{}, ErrNotFound
	}
	if stored.Version != expected {
		return types.Item{}, ErrConflict
	}

	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()
	r.items[next.ID] = cloneItem(next)
	return cloneItem(next), nil
}

// MemoryUserRepository keeps users in process memory.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]types.User)}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// GetByLogin looks a user up by username or email, case-insensitively.
// A username match wins over an email match.
func (r *MemoryUserRepository) GetByLogin(ctx context.Context, login string) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var byEmail *types.User
	for _, user := range r.users {
		if strings.EqualFold(user.Username, login) {
			return user, nil
		}
		if strings.EqualFold(user.Email, login) {
			u := user
			byEmail = &u
		}
	}
	if byEmail != nil {
		return *byEmail, nil
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, user.Username) || strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}
