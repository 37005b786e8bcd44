// Package engine is the federation facade: it drives one SQL statement
// through parse, plan and execute, fronted by the result cache and
// instrumented with statistics and observer events.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/fedsql/fedsql/internal/catalog"
	"github.com/fedsql/fedsql/internal/driver"
	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/log"
	"github.com/fedsql/fedsql/internal/sql/executor"
	"github.com/fedsql/fedsql/internal/sql/parser"
	"github.com/fedsql/fedsql/internal/sql/planner"
	"github.com/fedsql/fedsql/internal/sql/types"
	"github.com/fedsql/fedsql/internal/util/timeutil"
)

// Config bounds one engine instance.
type Config struct {
	DefaultSource      string
	MaxParallelFetches int
	FetchTimeout       time.Duration
	QueryTimeout       time.Duration
	CacheEnabled       bool
	CacheTTL           time.Duration
	CacheSize          int
	StreamBatchSize    int
}

// DefaultConfig returns the engine defaults used when configuration
// leaves a knob unset.
func DefaultConfig() Config {
	return Config{
		MaxParallelFetches: 4,
		FetchTimeout:       30 * time.Second,
		QueryTimeout:       2 * time.Minute,
		CacheEnabled:       true,
		CacheTTL:           time.Minute,
		CacheSize:          128,
		StreamBatchSize:    256,
	}
}

// Options control one query invocation.
type Options struct {
	// ExplainOnly plans the query and returns without touching any
	// driver.
	ExplainOnly bool
	// UseCache consults and populates the result cache, when the
	// engine has caching enabled.
	UseCache bool
	// StreamBatchSize overrides the configured chunk size for
	// ExecuteStream.
	StreamBatchSize int
	// Params bind the statement's $1..$n placeholders.
	Params []any
}

// Result is one completed invocation.
type Result struct {
	QueryID       string
	SQL           string // canonical rendering
	Columns       []string
	Batch         *types.ResultSet
	RowCount      int
	ExecutionTime time.Duration
	Plan          *planner.ExecutionPlan
	RowErrors     []error
	FromCache     bool
}

// Engine executes federated queries. Per-invocation state lives on the
// stack; the engine itself only shares the cache, the statistics and
// the fetch pool, each safe for concurrent use.
type Engine struct {
	cfg      Config
	registry *driver.Registry
	catalog  catalog.Catalog
	planner  *planner.Planner
	exec     *executor.Executor
	cache    *Cache
	stats    *Statistics
	observer Observer
	logger   log.Logger
	pool     *ants.Pool
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithObserver attaches a lifecycle observer. There is no global
// listener registry; this is the only subscription point.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger overrides the default logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over a driver registry and catalog.
func New(cfg Config, registry *driver.Registry, cat catalog.Catalog, opts ...Option) (*Engine, error) {
	if cfg.MaxParallelFetches <= 0 {
		cfg.MaxParallelFetches = DefaultConfig().MaxParallelFetches
	}
	if cfg.StreamBatchSize <= 0 {
		cfg.StreamBatchSize = DefaultConfig().StreamBatchSize
	}

	e := &Engine{
		cfg:      cfg,
		registry: registry,
		catalog:  cat,
		stats:    NewStatistics(),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	pool, err := ants.NewPool(cfg.MaxParallelFetches, ants.WithPanicHandler(func(v any) {
		e.logger.Error("fetch worker panic", log.Any("panic", v))
	}))
	if err != nil {
		return nil, errors.InternalErrorf("create fetch pool: %v", err)
	}
	e.pool = pool

	e.planner = planner.NewPlanner(cat, planner.WithDefaultSource(cfg.DefaultSource))
	e.exec = executor.New(registry, pool, executor.Config{FetchTimeout: cfg.FetchTimeout}, e.logger)
	if cfg.CacheEnabled {
		e.cache = NewCache(cfg.CacheSize, cfg.CacheTTL)
	}
	return e, nil
}

// Close releases the fetch pool. Drivers are owned by the registry's
// creator and are not closed here.
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Execute runs one federated query through the full pipeline:
// Received -> Parsed -> Planned -> Executing -> Completed or Failed.
// No stage is re-entered; a failure terminates the invocation carrying
// the stage it happened in.
func (e *Engine) Execute(ctx context.Context, sql string, opts Options) (*Result, error) {
	queryID := uuid.NewString()
	start := timeutil.Now()

	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, e.fail(queryID, sql, err)
	}
	canonical := stmt.String()
	e.emit(Event{Kind: EventQueryParsed, QueryID: queryID, SQL: canonical, Statement: stmt})

	params := make([]types.Value, len(opts.Params))
	for i, p := range opts.Params {
		params[i] = types.FromAny(p)
	}

	plan, err := e.planner.Plan(stmt, params)
	if err != nil {
		return nil, e.fail(queryID, canonical, err)
	}
	e.emit(Event{Kind: EventPlanGenerated, QueryID: queryID, SQL: canonical, Plan: plan})

	if opts.ExplainOnly {
		return &Result{QueryID: queryID, SQL: canonical, Plan: plan}, nil
	}

	useCache := e.cache != nil && opts.UseCache
	var cacheKey string
	if useCache {
		cacheKey = CacheKey(canonical, params)
		if cached, ok := e.cache.Get(cacheKey); ok {
			e.stats.RecordCacheHit()
			e.stats.RecordQuery(int64(cached.NumRows()))
			elapsed := timeutil.Since(start)
			e.emit(Event{Kind: EventQueryCompleted, QueryID: queryID, SQL: canonical,
				Plan: plan, Rows: cached.NumRows(), Elapsed: elapsed})
			return e.buildResult(queryID, canonical, plan, cached, nil, elapsed, true), nil
		}
		e.stats.RecordCacheMiss()
	}

	execCtx := ctx
	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	res, err := e.exec.Execute(execCtx, plan, e.hooks(queryID, canonical))
	if err != nil {
		if ctxErr := errors.FromContext(ctx.Err(), errors.StageExecute); ctxErr != nil && errors.IsTimeout(err) {
			// The overall deadline fired, not a per-fetch one.
			err = errors.TimeoutError(errors.StageExecute)
		}
		return nil, e.fail(queryID, canonical, err)
	}

	elapsed := timeutil.Since(start)
	e.stats.RecordQuery(int64(res.Batch.NumRows()))
	if useCache && len(res.RowErrors) == 0 {
		e.cache.Put(cacheKey, res.Batch, e.cfg.CacheTTL)
	}
	e.emit(Event{Kind: EventQueryCompleted, QueryID: queryID, SQL: canonical,
		Plan: plan, Rows: res.Batch.NumRows(), Elapsed: elapsed})
	e.logger.Debug("query completed",
		log.QueryID(queryID), log.Rows(res.Batch.NumRows()), log.Duration("elapsed", elapsed))

	return e.buildResult(queryID, canonical, plan, res.Batch, res.RowErrors, elapsed, false), nil
}

// ExecuteStream materializes the result and delivers it in chunks,
// observing cancellation at every batch boundary.
func (e *Engine) ExecuteStream(ctx context.Context, sql string, opts Options, fn func(*types.RowBatch) error) error {
	result, err := e.Execute(ctx, sql, opts)
	if err != nil {
		return err
	}

	size := opts.StreamBatchSize
	if size <= 0 {
		size = e.cfg.StreamBatchSize
	}

	batch := result.Batch
	for offset := 0; ; offset += size {
		if err := ctx.Err(); err != nil {
			return errors.FromContext(err, errors.StageExecute)
		}
		chunk := batch.Slice(offset, offset+size)
		if chunk.NumRows() == 0 && offset > 0 {
			return nil
		}
		if err := fn(chunk); err != nil {
			return err
		}
		if offset+size >= batch.NumRows() {
			return nil
		}
	}
}

// Explain plans the statement without executing any remote fetch.
func (e *Engine) Explain(ctx context.Context, sql string, params ...any) (*planner.ExecutionPlan, error) {
	result, err := e.Execute(ctx, sql, Options{ExplainOnly: true, Params: params})
	if err != nil {
		return nil, err
	}
	return result.Plan, nil
}

// Statistics snapshots the engine counters.
func (e *Engine) Statistics() Snapshot {
	return e.stats.Snapshot()
}

// ResetStatistics zeroes the engine counters.
func (e *Engine) ResetStatistics() {
	e.stats.Reset()
}

// ClearCache drops every cached result.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// Sources lists the registered source names.
func (e *Engine) Sources() []string {
	return e.registry.Sources()
}

func (e *Engine) buildResult(queryID, canonical string, plan *planner.ExecutionPlan, batch *types.ResultSet, rowErrs []error, elapsed time.Duration, fromCache bool) *Result {
	return &Result{
		QueryID:       queryID,
		SQL:           canonical,
		Columns:       batch.Schema.Names(),
		Batch:         batch,
		RowCount:      batch.NumRows(),
		ExecutionTime: elapsed,
		Plan:          plan,
		RowErrors:     rowErrs,
		FromCache:     fromCache,
	}
}

// hooks wires executor step events into statistics, catalog feedback
// and observer notifications.
func (e *Engine) hooks(queryID, canonical string) executor.Hooks {
	return executor.Hooks{
		StepStarted: func(step *planner.ExecutionStep) {
			e.emit(Event{Kind: EventStepStarted, QueryID: queryID, SQL: canonical, Step: step})
		},
		StepCompleted: func(step *planner.ExecutionStep, rows int, elapsed time.Duration) {
			e.emit(Event{Kind: EventStepCompleted, QueryID: queryID, SQL: canonical,
				Step: step, Rows: rows, Elapsed: elapsed})
		},
		FetchDone: func(step *planner.ExecutionStep, rows, bytes int64, elapsed time.Duration) {
			e.stats.RecordFetch(step.Source, rows, bytes, timeutil.DurationToMillis(elapsed))
			// An unfiltered, unlimited fetch observed the table's true
			// cardinality; feed it back to the planner.
			if step.Remote != nil && len(step.Remote.Filters) == 0 && step.Remote.Limit == 0 {
				e.catalog.SetTableStats(step.Source, step.Table, catalog.TableStats{
					RowCount:  rows,
					UpdatedAt: timeutil.Now(),
				})
			}
		},
	}
}

// fail records and reports a failed invocation with the stage it died
// in.
func (e *Engine) fail(queryID, sql string, err error) error {
	e.stats.RecordFailure()
	stage := errors.StageExecute
	if coded, ok := errors.Coded(err); ok && coded.Stage != "" {
		stage = coded.Stage
	}
	e.emit(Event{Kind: EventQueryFailed, QueryID: queryID, SQL: sql, Stage: stage, Err: err})
	e.logger.Warn("query failed", log.QueryID(queryID), log.Stage(stage), log.Err(err))
	return err
}

// emit delivers one event to the observer. A nil observer is a no-op;
// an observer panic is contained here so monitoring can never fail a
// query.
func (e *Engine) emit(event Event) {
	if e.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("observer panic", log.Any("panic", r), "event", event.Kind.String())
		}
	}()
	event.Time = timeutil.Now()
	e.observer.Observe(event)
}
