// Package query wraps a fetch operation with key-based caching, staleness
// windows, periodic background refetch, and keep-previous-data semantics:
// while a refetch is in flight, the last-known result keeps being served
// instead of clearing to empty.
package query

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"crypto-dashboard/internal/observability"
)

// Options configures one query kind.
type Options struct {
	// StaleTime is how long a result is served without triggering a refetch.
	StaleTime time.Duration
	// RefetchInterval, when > 0, refetches in the background on a schedule.
	RefetchInterval time.Duration
	// Retries is how many times a failed fetch is re-attempted before the
	// error is recorded. These retries apply to any fetch error; the HTTP
	// client below handles rate-limit retries itself.
	Retries int
	// RetryDelay is the pause between query-level retries.
	RetryDelay time.Duration
}

// Result is a point-in-time snapshot of a query.
type Result[T any] struct {
	// Data is the last successful result. Valid only when HasData is true.
	Data    T
	HasData bool
	// Loading is true only before any data has ever been obtained.
	Loading bool
	// Err is the most recent fetch error. Err alongside HasData means the
	// previous data is being served stale.
	Err error
	// FetchedAt is when Data was obtained.
	FetchedAt time.Time
}

// Query caches the result of a single keyed fetch operation.
//
// Overlapping refetches are not sequenced: a later-completing response
// overwrites an earlier one regardless of issue order (last-response-wins by
// completion). Each in-flight fetch is tagged with an issue sequence number
// purely so the overwrite is observable in logs.
type Query[T any] struct {
	name   string
	fetch  func(context.Context) (T, error)
	opts   Options
	logger *zap.Logger

	mu        sync.Mutex
	data      T
	hasData   bool
	err       error
	fetchedAt time.Time
	fetching  bool
	issued    uint64
	applied   uint64

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a query around fetch. Start must be called to enable the
// background refetch schedule.
func New[T any](name string, fetch func(context.Context) (T, error), opts Options, logger *zap.Logger) *Query[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Query[T]{
		name:   name,
		fetch:  fetch,
		opts:   opts,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Start launches the background refetch loop, if configured.
func (q *Query[T]) Start(ctx context.Context) {
	if q.opts.RefetchInterval <= 0 {
		return
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(q.opts.RefetchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-q.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.refetch(ctx)
			}
		}
	}()
}

// Stop terminates the background refetch loop. Idempotent.
func (q *Query[T]) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
	q.wg.Wait()
}

// Get returns the current snapshot. When no data has ever been obtained the
// fetch runs synchronously; when data exists but is past the staleness
// window a background refetch is kicked off and the previous data is
// returned immediately.
func (q *Query[T]) Get(ctx context.Context) Result[T] {
	q.mu.Lock()
	if !q.hasData {
		q.mu.Unlock()
		q.refetch(ctx)
		return q.snapshot()
	}

	stale := time.Since(q.fetchedAt) > q.opts.StaleTime
	alreadyFetching := q.fetching
	q.mu.Unlock()

	if stale && !alreadyFetching {
		go q.refetch(context.WithoutCancel(ctx))
	}
	return q.snapshot()
}

// Refetch forces a synchronous fetch and returns the resulting snapshot.
func (q *Query[T]) Refetch(ctx context.Context) Result[T] {
	q.refetch(ctx)
	return q.snapshot()
}

func (q *Query[T]) snapshot() Result[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Result[T]{
		Data:      q.data,
		HasData:   q.hasData,
		Loading:   !q.hasData && q.err == nil,
		Err:       q.err,
		FetchedAt: q.fetchedAt,
	}
}

// refetch runs the fetch with query-level retries and applies the outcome.
// On failure the previous data is kept; only the error flag changes.
func (q *Query[T]) refetch(ctx context.Context) {
	q.mu.Lock()
	q.issued++
	seq := q.issued
	q.fetching = true
	q.mu.Unlock()

	var (
		data T
		err  error
	)
	for attempt := 0; attempt <= q.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				q.apply(seq, data, err)
				return
			case <-time.After(q.opts.RetryDelay):
			}
		}
		data, err = q.fetch(ctx)
		if err == nil {
			break
		}
	}
	q.apply(seq, data, err)
}

func (q *Query[T]) apply(seq uint64, data T, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if seq < q.applied {
		q.logger.Debug("late response overwrites newer one",
			zap.String("query", q.name),
			zap.Uint64("seq", seq),
			zap.Uint64("applied", q.applied))
	}
	q.applied = seq
	q.fetching = false

	if err != nil {
		q.err = err
		q.logger.Warn("query fetch failed",
			zap.String("query", q.name), zap.Error(err))
		observability.RecordQueryRefetchFailure(q.name)
		return
	}

	q.data = data
	q.hasData = true
	q.err = nil
	q.fetchedAt = time.Now()
}

// Group is a registry of queries of one kind, keyed by their parameters.
type Group[T any] struct {
	mu      sync.Mutex
	queries map[string]*Query[T]
	opts    Options
	logger  *zap.Logger
}

// NewGroup creates an empty registry sharing one Options set.
func NewGroup[T any](opts Options, logger *zap.Logger) *Group[T] {
	return &Group[T]{
		queries: make(map[string]*Query[T]),
		opts:    opts,
		logger:  logger,
	}
}

// GetOrCreate returns the query registered under key, creating and starting
// it on first use.
func (g *Group[T]) GetOrCreate(ctx context.Context, key string, fetch func(context.Context) (T, error)) *Query[T] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if q, ok := g.queries[key]; ok {
		return q
	}
	q := New(key, fetch, g.opts, g.logger)
	q.Start(ctx)
	g.queries[key] = q
	return q
}

// Stop stops every registered query.
func (g *Group[T]) Stop() {
	g.mu.Lock()
	queries := make([]*Query[T], 0, len(g.queries))
	for _, q := range g.queries {
		queries = append(queries, q)
	}
	g.mu.Unlock()

	for _, q := range queries {
		q.Stop()
	}
}
