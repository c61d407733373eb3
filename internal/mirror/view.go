package mirror

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"sparkclean/internal/models"
	"sparkclean/internal/realtime"
)

const viewBufferSize = 64

// View is a filtered live window over a Table. It holds no rows of its own:
// Snapshot always reads the shared table.
type View[T models.Record] struct {
	table   *Table[T]
	filter  realtime.Filter
	events  chan Event[T]
	dropped atomic.Int64

	mu    sync.Mutex
	err   error
	sub   Subscription
	store *Store
	once  sync.Once
}

// Watch opens a view over table narrowed by filter. It subscribes to the table
// when the store does not already, then fetches the matching rows once. A
// failed fetch or subscription does not fail Watch; it is reported by Err and
// not retried.
func Watch[T models.Record](ctx context.Context, s *Store, table string, filter realtime.Filter) (*View[T], error) {
	t, err := TableOf[T](s, table)
	if err != nil {
		return nil, err
	}
	v := &View[T]{table: t, filter: filter, events: make(chan Event[T], viewBufferSize), store: s}
	t.addView(v)

	if !s.subscribed(table) {
		sub, err := s.feed.Subscribe(ctx, table, filter)
		if err != nil {
			v.fail(fmt.Errorf("failed to subscribe to %s: %w", table, err))
		} else {
			v.sub = sub
			s.follow(t, sub)
		}
	}

	id := s.requests.begin(ctx, "watch "+table)
	rows, err := s.backend.List(ctx, table, filter)
	if err == nil {
		err = t.load(rows)
	}
	s.requests.finish(id, err)
	if err != nil {
		v.fail(fmt.Errorf("failed to fetch %s: %w", table, err))
	}
	return v, nil
}

func (v *View[T]) Snapshot() []T {
	return v.table.snapshot(v.filter)
}

// Changes streams the events matching the view. It is closed by Close. When
// the reader falls behind, events are dropped; Snapshot stays exact.
func (v *View[T]) Changes() <-chan Event[T] { return v.events }

// Dropped counts events the reader missed.
func (v *View[T]) Dropped() int64 { return v.dropped.Load() }

func (v *View[T]) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func (v *View[T]) fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err == nil {
		v.err = err
	}
	v.store.logger.Warn().Err(err).Str("table", v.table.name).Msg("view degraded")
}

func (v *View[T]) Close() error {
	var err error
	v.once.Do(func() {
		v.table.removeView(v)
		if v.sub != nil {
			err = v.store.unfollow(v.sub)
		}
	})
	return err
}
