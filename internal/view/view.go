// Package view binds a list loader and its aggregate stats to one query
// descriptor, the way a reports or tickets page uses them.
package view

import (
	"context"
	"errors"
	"sync"

	"github.com/fieldcrm/listsync/internal/loader"
	"github.com/fieldcrm/listsync/internal/query"
	"github.com/fieldcrm/listsync/internal/stats"
)

// View owns one loader and one stats tracker.
type View[K comparable, R loader.Record[K]] struct {
	Loader *loader.Loader[K, R]
	Stats  *stats.Tracker

	mu      sync.Mutex
	current query.Descriptor
	opened  bool
}

// New creates a view. stats may be nil for lists without aggregates.
func New[K comparable, R loader.Record[K]](l *loader.Loader[K, R], st *stats.Tracker) *View[K, R] {
	return &View[K, R]{Loader: l, Stats: st}
}

// Open loads the first page and stats for d regardless of the current
// descriptor. It is called when the view mounts.
func (v *View[K, R]) Open(ctx context.Context, d query.Descriptor) error {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	statsEpoch := v.begin(d)
	v.mu.Unlock()
	return v.reload(ctx, d, statsEpoch)
}

// SetDescriptor applies a new descriptor. Updates equal to the current
// descriptor do nothing; otherwise the list is reset and stats refreshed
// concurrently.
func (v *View[K, R]) SetDescriptor(ctx context.Context, d query.Descriptor) (bool, error) {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return false, err
	}
	v.mu.Lock()
	if v.opened && d == v.current {
		v.mu.Unlock()
		return false, nil
	}
	statsEpoch := v.begin(d)
	v.mu.Unlock()
	return true, v.reload(ctx, d, statsEpoch)
}

// Descriptor returns the descriptor last applied to the view.
func (v *View[K, R]) Descriptor() query.Descriptor {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// LoadMore requests the next page; it is the proximity trigger's target.
func (v *View[K, R]) LoadMore(ctx context.Context) error {
	return v.Loader.LoadMore(ctx)
}

// begin records d and starts new loader and tracker epochs for it. Callers
// hold v.mu, so the epoch order of both matches the order of descriptor
// changes and the last change wins in the list and the stats alike.
func (v *View[K, R]) begin(d query.Descriptor) uint64 {
	v.current = d
	v.opened = true
	v.Loader.Begin(d)
	if v.Stats == nil {
		return 0
	}
	return v.Stats.Begin()
}

func (v *View[K, R]) reload(ctx context.Context, d query.Descriptor, statsEpoch uint64) error {
	var (
		wg               sync.WaitGroup
		loadErr, statErr error
	)
	if v.Stats != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statErr = v.Stats.Complete(ctx, statsEpoch, d)
		}()
	}
	loadErr = v.Loader.LoadMore(ctx)
	wg.Wait()
	return errors.Join(loadErr, statErr)
}
