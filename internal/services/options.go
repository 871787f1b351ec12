package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lostfound-board/apiserver/internal/store"
)

// DefaultStoreTimeout bounds a single store round trip when no timeout is configured.
const DefaultStoreTimeout = 5 * time.Second

// Option configures the services in this package.
type Option func(*options)

type options struct {
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
	publisher EventPublisher
}

func newOptions(opts []Option) options {
	o := options{
		timeout: DefaultStoreTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTimeout bounds every store call made by the service.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPublisher sends item events after successful writes.
func WithPublisher(publisher EventPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

func (o options) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.timeout)
}

// storeError converts a deadline on the store call into ErrTimeout and a
// missing item into ErrItemNotFound. Other errors pass through.
func storeError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, store.ErrNotFound):
		return ErrItemNotFound
	default:
		return err
	}
}
