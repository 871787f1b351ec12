package services

import (
	"context"

	"github.com/lostfound-board/apiserver/types"
)

// ItemRepository defines persistence operations for items.
//
// UpdateStatus must apply the transition only if the stored status still
// equals from, as a single atomic step, and report store.ErrConflict otherwise.
// AddImage likewise appends only while the item holds fewer than limit images
// and reports store.ErrLimitReached otherwise.
type ItemRepository interface {
	Get(ctx context.Context, id string) (types.Item, error)
	Create(ctx context.Context, item types.Item) (types.Item, error)
	List(ctx context.Context, filter types.ItemFilter) ([]types.Item, int, error)
	UpdateStatus(ctx context.Context, id string, from types.ItemStatus, to types.ItemTransition) (types.Item, error)
	AddImage(ctx context.Context, id, key string, limit int) (types.Item, error)
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByLogin(ctx context.Context, login string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Count(ctx context.Context) (int, error)
}
