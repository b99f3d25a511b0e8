// Package stats keeps the aggregate counts shown next to a list in step with
// the list's query descriptor.
package stats

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
)

// Fetcher loads server-computed counts for a descriptor.
type Fetcher interface {
	FetchStats(ctx context.Context, d query.Descriptor) (model.Stats, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, d query.Descriptor) (model.Stats, error)

func (f FetcherFunc) FetchStats(ctx context.Context, d query.Descriptor) (model.Stats, error) {
	return f(ctx, d)
}

// Snapshot is the latest applied stats and the descriptor they belong to.
type Snapshot struct {
	Descriptor query.Descriptor `json:"descriptor"`
	Stats      model.Stats      `json:"stats"`
	Loaded     bool             `json:"loaded"`
}

// Tracker issues stats requests and keeps the response for the most
// recently requested descriptor. Responses to superseded requests are dropped.
type Tracker struct {
	fetcher Fetcher
	onError func(error)
	log     *log.Entry

	mu      sync.Mutex
	epoch   uint64
	current Snapshot
}

// NewTracker creates a tracker. onError may be nil.
func NewTracker(f Fetcher, onError func(error)) *Tracker {
	return &Tracker{
		fetcher: f,
		onError: onError,
		log:     log.WithField("component", "stats"),
	}
}

// Refresh requests stats for d. If another Refresh starts before this one
// completes, this result is discarded and nil is returned. A failure for the
// latest request keeps the previous stats.
func (t *Tracker) Refresh(ctx context.Context, d query.Descriptor) error {
	return t.Complete(ctx, t.Begin(), d)
}

// Begin supersedes every request in flight and returns the epoch to pass to
// Complete.
func (t *Tracker) Begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.epoch++
	return t.epoch
}

// Complete fetches stats for d and applies them if epoch is still the latest
// one handed out by Begin.
func (t *Tracker) Complete(ctx context.Context, epoch uint64, d query.Descriptor) error {
	st, err := t.fetcher.FetchStats(ctx, d)

	t.mu.Lock()
	if epoch != t.epoch {
		t.mu.Unlock()
		t.log.WithField("query", d.Key()).Debug("discarding stale stats")
		return nil
	}
	if err != nil {
		t.mu.Unlock()
		err = fmt.Errorf("refresh stats: %w", err)
		t.log.WithError(err).Warn("stats refresh failed")
		if t.onError != nil {
			t.onError(err)
		}
		return err
	}
	if st.PerCategory == nil {
		st.PerCategory = map[string]int{}
	}
	t.current = Snapshot{Descriptor: d, Stats: st, Loaded: true}
	t.mu.Unlock()
	return nil
}

// Current returns the latest applied stats.
func (t *Tracker) Current() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.current
	if s.Stats.PerCategory != nil {
		cp := make(map[string]int, len(s.Stats.PerCategory))
		for k, v := range s.Stats.PerCategory {
			cp[k] = v
		}
		s.Stats.PerCategory = cp
	}
	return s
}
