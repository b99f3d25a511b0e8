// Package loader implements the incremental list loader behind the reports
// and tickets views: it pulls pages of remote records on demand while the
// query descriptor may change underneath it.
//
// Every Reset starts a new epoch. A fetch remembers the epoch it was started
// in and its result is applied only if no Reset happened in between, so a
// slow response for an old descriptor can never leak into the current list.
// Items are deduplicated by id on append.
package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/fieldcrm/listsync/internal/query"
)

// DefaultPageSize matches the page size of the CRM reports view.
const DefaultPageSize = 12

// ErrMalformedPage is returned for pages whose pagination metadata is
// inconsistent. It is handled like any other fetch failure.
var ErrMalformedPage = errors.New("malformed page")

// Record is an item with a stable, comparable id.
type Record[K comparable] interface {
	RecordID() K
}

// Page is one batch of records plus pagination metadata.
type Page[R any] struct {
	Items      []R
	PageNumber int
	TotalPages int
}

// Fetcher loads one page of records for a descriptor. Pages are 1-based.
type Fetcher[R any] interface {
	FetchPage(ctx context.Context, d query.Descriptor, page, pageSize int) (Page[R], error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[R any] func(ctx context.Context, d query.Descriptor, page, pageSize int) (Page[R], error)

func (f FetcherFunc[R]) FetchPage(ctx context.Context, d query.Descriptor, page, pageSize int) (Page[R], error) {
	return f(ctx, d, page, pageSize)
}

// FetchError reports a failed page load in the current epoch.
type FetchError struct {
	Page  int
	Epoch uint64
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// State is a snapshot of the loader.
type State[R any] struct {
	Descriptor  query.Descriptor `json:"descriptor"`
	Items       []R              `json:"items"`
	CurrentPage int              `json:"current_page"`
	HasMore     bool             `json:"has_more"`
	IsLoading   bool             `json:"is_loading"`
	Epoch       uint64           `json:"epoch"`
}

// Option configures a Loader.
type Option func(*options)

type options struct {
	pageSize int
	onError  func(error)
	logger   *log.Entry
}

// WithPageSize sets the fixed page size requested from the fetcher.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithErrorHandler registers a callback invoked once per failed fetch in the
// current epoch. Stale failures are not reported.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *log.Entry) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Loader accumulates pages of records for one descriptor at a time.
// It is safe for concurrent use; the fetch runs without holding the lock.
type Loader[K comparable, R Record[K]] struct {
	fetcher  Fetcher[R]
	pageSize int
	onError  func(error)
	log      *log.Entry

	mu    sync.Mutex
	state State[R]
	seen  map[K]struct{}
}

// New creates an empty loader. Nothing is loaded until Reset is called.
func New[K comparable, R Record[K]](f Fetcher[R], opts ...Option) *Loader[K, R] {
	o := options{
		pageSize: DefaultPageSize,
		logger:   log.WithField("component", "loader"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loader[K, R]{
		fetcher:  f,
		pageSize: o.pageSize,
		onError:  o.onError,
		log:      o.logger,
		state:    State[R]{Descriptor: query.Default()},
		seen:     map[K]struct{}{},
	}
}

// Reset discards the current list, starts a new epoch for d and loads its
// first page. Results of fetches started before the reset are dropped.
func (l *Loader[K, R]) Reset(ctx context.Context, d query.Descriptor) error {
	l.Begin(d)
	return l.LoadMore(ctx)
}

// Begin discards the current list and starts a new epoch for d without
// fetching. The next LoadMore requests page 1 of d. It returns the new epoch.
func (l *Loader[K, R]) Begin(d query.Descriptor) uint64 {
	l.mu.Lock()
	l.state = State[R]{
		Descriptor: d,
		HasMore:    true,
		Epoch:      l.state.Epoch + 1,
	}
	l.seen = map[K]struct{}{}
	epoch := l.state.Epoch
	l.mu.Unlock()

	l.log.WithFields(log.Fields{"epoch": epoch, "query": d.Key()}).Debug("loader reset")
	return epoch
}

// LoadMore fetches the next page. It is a no-op while a fetch is in flight
// or once the list is exhausted, so triggers may call it as often as they
// like. A failure in the current epoch leaves items and HasMore untouched,
// is passed to the error handler and returned as a *FetchError.
func (l *Loader[K, R]) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if !l.state.HasMore || l.state.IsLoading {
		l.mu.Unlock()
		return nil
	}
	l.state.IsLoading = true
	epoch := l.state.Epoch
	d := l.state.Descriptor
	next := l.state.CurrentPage + 1
	l.mu.Unlock()

	page, err := l.fetcher.FetchPage(ctx, d, next, l.pageSize)
	if err == nil {
		err = normalizePage(&page, next)
	}

	l.mu.Lock()
	if epoch != l.state.Epoch {
		current := l.state.Epoch
		l.mu.Unlock()
		l.log.WithFields(log.Fields{"epoch": epoch, "current": current, "page": next}).Debug("discarding stale page")
		return nil
	}
	if err != nil {
		l.state.IsLoading = false
		l.mu.Unlock()

		ferr := &FetchError{Page: next, Epoch: epoch, Err: err}
		l.log.WithError(err).WithFields(log.Fields{"epoch": epoch, "page": next}).Warn("page load failed")
		if l.onError != nil {
			l.onError(ferr)
		}
		return ferr
	}

	added := 0
	for _, item := range page.Items {
		id := item.RecordID()
		if _, ok := l.seen[id]; ok {
			continue
		}
		l.seen[id] = struct{}{}
		l.state.Items = append(l.state.Items, item)
		added++
	}
	l.state.CurrentPage = page.PageNumber
	l.state.HasMore = page.PageNumber < page.TotalPages
	l.state.IsLoading = false
	hasMore := l.state.HasMore
	l.mu.Unlock()

	l.log.WithFields(log.Fields{
		"epoch":    epoch,
		"page":     page.PageNumber,
		"total":    page.TotalPages,
		"added":    added,
		"dupes":    len(page.Items) - added,
		"has_more": hasMore,
	}).Debug("page applied")
	return nil
}

// normalizePage checks pagination metadata. A zero page number means the
// requested page; an empty result with zero total pages is an exhausted list.
func normalizePage[R any](p *Page[R], requested int) error {
	if p.PageNumber == 0 {
		p.PageNumber = requested
	}
	switch {
	case p.TotalPages < 0:
		return fmt.Errorf("%w: total pages %d", ErrMalformedPage, p.TotalPages)
	case p.PageNumber < 1:
		return fmt.Errorf("%w: page number %d", ErrMalformedPage, p.PageNumber)
	case p.TotalPages == 0 && len(p.Items) > 0:
		return fmt.Errorf("%w: %d items with zero total pages", ErrMalformedPage, len(p.Items))
	case p.TotalPages > 0 && p.PageNumber > p.TotalPages:
		return fmt.Errorf("%w: page %d of %d", ErrMalformedPage, p.PageNumber, p.TotalPages)
	}
	return nil
}

// Items returns the accumulated records in server order.
func (l *Loader[K, R]) Items() []R {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.state.Items)
}

// State returns a consistent snapshot of the loader.
func (l *Loader[K, R]) State() State[R] {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	s.Items = slices.Clone(l.state.Items)
	return s
}

// Descriptor returns the descriptor of the current epoch.
func (l *Loader[K, R]) Descriptor() query.Descriptor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Descriptor
}

// HasMore reports whether another page can be requested.
func (l *Loader[K, R]) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.HasMore
}

// Len returns the number of loaded records.
func (l *Loader[K, R]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.Items)
}

// Epoch returns the current epoch; it changes on every Reset.
func (l *Loader[K, R]) Epoch() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Epoch
}
