// Package executor walks an execution plan: it fetches from every
// participating source in parallel, then feeds the batches through the
// plan's join, aggregate, sort and limit steps, and finally applies
// the output projection.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/fedsql/fedsql/internal/driver"
	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/log"
	"github.com/fedsql/fedsql/internal/sql/parser"
	"github.com/fedsql/fedsql/internal/sql/planner"
	"github.com/fedsql/fedsql/internal/sql/types"
	"github.com/fedsql/fedsql/internal/util/timeutil"
)

// Config bounds the executor's resource use.
type Config struct {
	// FetchTimeout caps each remote fetch. Zero means no per-fetch
	// deadline beyond the query context.
	FetchTimeout time.Duration
}

// Hooks receive step lifecycle notifications. Any field may be nil.
// Hook failures must never fail the query; callers keep them cheap.
type Hooks struct {
	StepStarted   func(step *planner.ExecutionStep)
	StepCompleted func(step *planner.ExecutionStep, rows int, elapsed time.Duration)
	// FetchDone reports one completed remote fetch with the transferred
	// row and byte volume, before local filtering.
	FetchDone func(step *planner.ExecutionStep, rows int64, bytes int64, elapsed time.Duration)
}

func (h Hooks) stepStarted(step *planner.ExecutionStep) {
	if h.StepStarted != nil {
		h.StepStarted(step)
	}
}

func (h Hooks) stepCompleted(step *planner.ExecutionStep, rows int, elapsed time.Duration) {
	if h.StepCompleted != nil {
		h.StepCompleted(step, rows, elapsed)
	}
}

func (h Hooks) fetchDone(step *planner.ExecutionStep, rows, bytes int64, elapsed time.Duration) {
	if h.FetchDone != nil {
		h.FetchDone(step, rows, bytes, elapsed)
	}
}

// Result is a materialized query result plus the row-level errors
// collected along the way. Row errors accompany partial results; they
// do not fail the query unless they hit a join key.
type Result struct {
	Batch     *types.RowBatch
	RowErrors []error
}

// Executor runs execution plans against a driver registry.
type Executor struct {
	registry *driver.Registry
	pool     *ants.Pool
	cfg      Config
	logger   log.Logger
}

// New creates an executor. The pool bounds parallel fetches and may be
// shared between executors; a nil pool runs fetches on plain
// goroutines.
func New(registry *driver.Registry, pool *ants.Pool, cfg Config, logger log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{registry: registry, pool: pool, cfg: cfg, logger: logger}
}

// execState carries the mutable per-invocation state: completed step
// outputs and collected row errors. Fetches append concurrently.
type execState struct {
	mu        sync.Mutex
	results   map[int]*types.RowBatch
	rowErrors []error
}

func (st *execState) put(id int, batch *types.RowBatch) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.results[id] = batch
}

// take hands a dependency's output to its consumer. Ownership
// transfers: the batch is removed so no later step can observe it.
func (st *execState) take(id int) (*types.RowBatch, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	batch, ok := st.results[id]
	delete(st.results, id)
	return batch, ok
}

func (st *execState) addRowError(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.rowErrors = append(st.rowErrors, err)
}

// Execute walks the plan and materializes the final result.
func (e *Executor) Execute(ctx context.Context, plan *planner.ExecutionPlan, hooks Hooks) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	ev := &evaluator{params: plan.Params}
	st := &execState{results: make(map[int]*types.RowBatch)}

	var fetches, rest []*planner.ExecutionStep
	for _, step := range plan.Steps {
		if step.Kind == planner.StepFetch {
			fetches = append(fetches, step)
		} else {
			rest = append(rest, step)
		}
	}

	if err := e.runFetches(ctx, fetches, ev, st, hooks); err != nil {
		return nil, err
	}

	for _, step := range rest {
		if err := ctx.Err(); err != nil {
			return nil, errors.FromContext(err, errors.StageExecute)
		}
		hooks.stepStarted(step)
		start := timeutil.Now()

		out, err := e.runStep(ctx, step, ev, st)
		if err != nil {
			return nil, err
		}
		st.put(step.ID, out)
		hooks.stepCompleted(step, out.NumRows(), timeutil.Since(start))
	}

	root := plan.Root()
	final, ok := st.take(root.ID)
	if !ok {
		return nil, errors.InternalErrorf("plan root step %d produced no output", root.ID).
			WithStage(errors.StageExecute)
	}

	final = projectBatch(final, plan.Projection, ev, st)
	return &Result{Batch: final, RowErrors: st.rowErrors}, nil
}

// runStep dispatches one non-fetch step over its dependencies' output.
func (e *Executor) runStep(ctx context.Context, step *planner.ExecutionStep, ev *evaluator, st *execState) (*types.RowBatch, error) {
	inputs := make([]*types.RowBatch, len(step.DependsOn))
	for i, dep := range step.DependsOn {
		batch, ok := st.take(dep)
		if !ok {
			return nil, errors.InternalErrorf("step %d ran before its dependency %d completed", step.ID, dep).
				WithStage(errors.StageExecute).
				WithStep(step.ID)
		}
		inputs[i] = batch
	}

	switch step.Kind {
	case planner.StepJoin:
		op := JoinOperatorFor(step.Strategy)
		out, err := op.Join(ctx, step, inputs[0], inputs[1], ev, st)
		if err != nil {
			return nil, err
		}
		if step.Residual != nil {
			out = filterBatch(out, step.Residual, ev, st)
		}
		return out, nil
	case planner.StepSort:
		return sortBatch(step.Keys, inputs[0], ev, st), nil
	case planner.StepAggregate:
		return aggregateBatch(step, inputs[0], ev, st)
	case planner.StepLimit:
		return limitBatch(inputs[0], step.Limit, step.Offset), nil
	default:
		return nil, errors.InternalErrorf("unexpected step kind %s", step.Kind).WithStep(step.ID)
	}
}

// runFetches runs every fetch step concurrently and waits for all of
// them. A failed fetch does not interrupt its siblings; the first
// failure is returned once everything has settled.
func (e *Executor) runFetches(ctx context.Context, fetches []*planner.ExecutionStep, ev *evaluator, st *execState, hooks Hooks) error {
	var wg sync.WaitGroup
	fetchErrs := make([]error, len(fetches))

	for i, step := range fetches {
		i, step := i, step
		hooks.stepStarted(step)
		wg.Add(1)
		task := func() {
			defer wg.Done()
			start := timeutil.Now()
			batch, err := e.runFetch(ctx, step, ev, st, hooks)
			if err != nil {
				fetchErrs[i] = err
				return
			}
			st.put(step.ID, batch)
			hooks.stepCompleted(step, batch.NumRows(), timeutil.Since(start))
		}
		if e.pool != nil {
			if err := e.pool.Submit(task); err == nil {
				continue
			}
		}
		go task()
	}
	wg.Wait()

	for _, err := range fetchErrs {
		if err != nil {
			return err
		}
	}
	return nil
}

// runFetch performs one remote fetch, stamps the table alias onto the
// returned schema, and applies the step's local filter.
func (e *Executor) runFetch(ctx context.Context, step *planner.ExecutionStep, ev *evaluator, st *execState, hooks Hooks) (*types.RowBatch, error) {
	fetchCtx := ctx
	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}

	start := timeutil.Now()
	batch, err := e.registry.Fetch(fetchCtx, step.Source, step.Remote)
	elapsed := timeutil.Since(start)
	if err != nil {
		// A deadline that fired on the fetch context but not on the
		// query context is this fetch's own timeout.
		if errors.IsTimeout(err) && ctx.Err() == nil {
			err = errors.SourceTimeoutError(step.Source).WithStep(step.ID)
		}
		if coded, ok := errors.Coded(err); ok && coded.Step == 0 {
			coded.Step = step.ID
		}
		e.logger.Warn("fetch failed", log.Source(step.Source), "table", step.Table, log.Err(err))
		return nil, err
	}

	hooks.fetchDone(step, int64(batch.NumRows()), batch.ApproxBytes(), elapsed)
	e.logger.Debug("fetch completed",
		log.Source(step.Source), "table", step.Table, log.Rows(batch.NumRows()))

	for i := range batch.Schema.Columns {
		batch.Schema.Columns[i].Qualifier = step.Alias
	}
	if step.LocalFilter != nil {
		batch = filterBatch(batch, step.LocalFilter, ev, st)
	}
	return batch, nil
}

// filterBatch keeps the rows a predicate accepts. Rows whose
// evaluation fails are dropped and recorded as row errors.
func filterBatch(batch *types.RowBatch, expr parser.Expression, ev *evaluator, st *execState) *types.RowBatch {
	out := types.NewRowBatch(batch.Schema)
	for i, row := range batch.Rows {
		keep, err := ev.truthy(expr, batch.Schema, row)
		if err != nil {
			st.addRowError(rowError(err, i+1))
			continue
		}
		if keep {
			out.Append(row)
		}
	}
	return out
}

// limitBatch applies OFFSET then LIMIT. Limit -1 means no limit. An
// offset past the end yields an empty batch, not an error.
func limitBatch(batch *types.RowBatch, limit, offset int) *types.RowBatch {
	start := offset
	if start > len(batch.Rows) {
		start = len(batch.Rows)
	}
	end := len(batch.Rows)
	if limit >= 0 && start+limit < end {
		end = start + limit
	}
	return batch.Slice(start, end)
}

// projectBatch evaluates the output projection. A star column expands
// to the whole input schema. Rows with failing expressions are dropped
// and recorded.
func projectBatch(input *types.RowBatch, cols []planner.OutputColumn, ev *evaluator, st *execState) *types.RowBatch {
	schema := types.Schema{}
	for _, oc := range cols {
		if oc.Star {
			schema.Columns = append(schema.Columns, input.Schema.Columns...)
			continue
		}
		schema.Columns = append(schema.Columns, oc.Column)
	}

	out := types.NewRowBatch(schema)
	for i, row := range input.Rows {
		projected := make(types.Row, 0, len(schema.Columns))
		var rowErr error
		for _, oc := range cols {
			if oc.Star {
				projected = append(projected, row...)
				continue
			}
			v, err := ev.eval(oc.Expr, input.Schema, row)
			if err != nil {
				rowErr = err
				break
			}
			projected = append(projected, v)
		}
		if rowErr != nil {
			st.addRowError(rowError(rowErr, i+1))
			continue
		}
		out.Append(projected)
	}
	return out
}

// rowError stamps the row number onto an error if it is coded and has
// none yet.
func rowError(err error, row int) error {
	if coded, ok := errors.Coded(err); ok && coded.Row == 0 {
		coded.Row = row
	}
	return err
}
