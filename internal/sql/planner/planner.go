package planner

import (
	"sort"

	"github.com/fedsql/fedsql/internal/catalog"
	"github.com/fedsql/fedsql/internal/driver"
	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/parser"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// Planner builds execution plans from parsed statements and catalog
// estimates.
type Planner struct {
	catalog       catalog.Catalog
	defaultSource string
	pushdown      bool
}

// Option configures a Planner.
type Option func(*Planner)

// WithDefaultSource sets the source assumed for table references
// written without a source qualifier.
func WithDefaultSource(name string) Option {
	return func(p *Planner) { p.defaultSource = name }
}

// DisablePushdown keeps every WHERE conjunct local. Output is
// unchanged; only the fetch volume differs. Used to verify push-down
// correctness in tests.
func DisablePushdown() Option {
	return func(p *Planner) { p.pushdown = false }
}

// NewPlanner creates a planner over the given catalog.
func NewPlanner(cat catalog.Catalog, opts ...Option) *Planner {
	p := &Planner{catalog: cat, pushdown: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// plannedTable is one FROM/JOIN table with its resolved source and the
// fetch step built for it.
type plannedTable struct {
	ref    *parser.TableRef
	source string
	alias  string
	step   *ExecutionStep
}

// Plan builds the execution plan for a statement. Params are the bound
// positional parameter values; planning fails if the statement
// references a parameter beyond the bound set. No remote call is made
// here: unknown sources fail before any fetch.
func (p *Planner) Plan(stmt *parser.SelectStmt, params []types.Value) (*ExecutionPlan, error) {
	if err := p.checkParams(stmt, params); err != nil {
		return nil, err
	}

	tables, err := p.resolveTables(stmt)
	if err != nil {
		return nil, err
	}

	declared := make(map[string]bool, len(tables))
	for _, t := range tables {
		declared[t.alias] = true
	}
	soleTable := ""
	if len(tables) == 1 {
		soleTable = tables[0].alias
	}

	localFilters, remoteFilters, residual, err := p.classifyWhere(stmt.Where, declared, soleTable, nullableAliases(stmt, tables), params)
	if err != nil {
		return nil, err
	}

	plan := &ExecutionPlan{Params: params, Statement: stmt}
	nextID := 0
	newStep := func(kind StepKind, deps ...int) *ExecutionStep {
		nextID++
		s := &ExecutionStep{ID: nextID, Kind: kind, DependsOn: deps, Limit: -1}
		plan.Steps = append(plan.Steps, s)
		return s
	}

	neededColumns := p.projectedColumns(stmt, tables, declared, soleTable)

	// Fetch steps, one per table, no dependencies between them.
	for _, t := range tables {
		s := newStep(StepFetch)
		s.Source = t.source
		s.Table = t.ref.Table
		s.Alias = t.alias
		s.Remote = &driver.RemoteQuery{
			Table:   t.ref.Table,
			Columns: neededColumns[t.alias],
			Filters: remoteFilters[t.alias],
		}
		s.LocalFilter = andJoin(localFilters[t.alias])
		s.EstimatedRows = estimateFetchRows(
			p.catalog.EstimateRows(t.source, t.ref.Table),
			len(remoteFilters[t.alias])+len(localFilters[t.alias]))
		s.EstimatedCost = fetchCost(s.EstimatedRows)
		t.step = s
	}

	grouped := stmt.HasAggregates() || len(stmt.GroupBy) > 0 || orderByHasAggregate(stmt)

	// A bare single-table scan can push LIMIT/OFFSET to the source when
	// nothing downstream reorders or filters rows.
	if soleTable != "" && !grouped && len(stmt.OrderBy) == 0 && residual == nil &&
		tables[0].step.LocalFilter == nil && stmt.Limit != nil {
		n := *stmt.Limit
		if stmt.Offset != nil {
			n += *stmt.Offset
		}
		tables[0].step.Remote.Limit = n
	}

	// Join chain, left to right.
	last := tables[0].step
	leftAliases := map[string]bool{tables[0].alias: true}
	for i, join := range stmt.Joins {
		right := tables[i+1]
		leftKey, rightKey := equiJoinKeys(join.Condition, leftAliases, right.alias)
		equi := leftKey != nil

		strategy := chooseStrategy(last.EstimatedRows, right.step.EstimatedRows, equi)

		leftInput, rightInput := last, right.step
		if strategy == MergeJoin {
			leftInput = newStep(StepSort, last.ID)
			leftInput.Keys = []SortKey{{Expr: leftKey}}
			leftInput.EstimatedRows = last.EstimatedRows
			leftInput.EstimatedCost = sortCost(last.EstimatedRows)

			rightInput = newStep(StepSort, right.step.ID)
			rightInput.Keys = []SortKey{{Expr: rightKey}}
			rightInput.EstimatedRows = right.step.EstimatedRows
			rightInput.EstimatedCost = sortCost(right.step.EstimatedRows)
		}

		s := newStep(StepJoin, leftInput.ID, rightInput.ID)
		s.Strategy = strategy
		s.JoinType = join.Type
		s.Condition = join.Condition
		s.LeftKey = leftKey
		s.RightKey = rightKey
		s.EstimatedRows = estimateJoinRows(last.EstimatedRows, right.step.EstimatedRows, equi)
		s.EstimatedCost = joinCost(strategy, last.EstimatedRows, right.step.EstimatedRows)

		leftAliases[right.alias] = true
		last = s
	}

	if residual != nil {
		// Cross-source and outer-join-protected conjuncts run right
		// after the final join. A joinless plan folds them into the
		// fetch's local filter instead.
		if last.Kind == StepFetch {
			last.LocalFilter = andJoin(append(splitConjuncts(last.LocalFilter), splitConjuncts(residual)...))
		} else {
			last.Residual = residual
		}
	}

	if grouped {
		aggs, err := collectAggregates(stmt)
		if err != nil {
			return nil, err
		}
		if err := checkGrouping(stmt); err != nil {
			return nil, err
		}
		s := newStep(StepAggregate, last.ID)
		s.GroupBy = stmt.GroupBy
		s.Aggregates = aggs
		s.Having = stmt.Having
		s.EstimatedRows = estimateGroupRows(last.EstimatedRows, len(stmt.GroupBy))
		s.EstimatedCost = aggregateCost(last.EstimatedRows)
		last = s
	}

	if len(stmt.OrderBy) > 0 {
		s := newStep(StepSort, last.ID)
		s.Keys = make([]SortKey, len(stmt.OrderBy))
		for i, o := range stmt.OrderBy {
			s.Keys[i] = SortKey{Expr: resolveOrderExpr(o.Expr, stmt.Columns), Desc: o.Desc}
		}
		s.EstimatedRows = last.EstimatedRows
		s.EstimatedCost = sortCost(last.EstimatedRows)
		last = s
	}

	if stmt.Limit != nil || stmt.Offset != nil {
		s := newStep(StepLimit, last.ID)
		s.Limit = -1
		if stmt.Limit != nil {
			s.Limit = *stmt.Limit
		}
		if stmt.Offset != nil {
			s.Offset = *stmt.Offset
		}
		s.EstimatedRows = estimateLimitRows(last.EstimatedRows, s.Limit, s.Offset)
		s.EstimatedCost = float64(s.EstimatedRows)
	}

	plan.Projection = buildProjection(stmt)
	plan.Sources = sourceNames(tables)
	plan.Strategy = overallStrategy(plan.Steps)

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// resolveTables maps every table reference to a registered source,
// applying the default source to unqualified references.
func (p *Planner) resolveTables(stmt *parser.SelectStmt) ([]*plannedTable, error) {
	refs := stmt.Tables()
	tables := make([]*plannedTable, len(refs))
	for i, ref := range refs {
		source := ref.Source
		if source == "" {
			if p.defaultSource == "" {
				return nil, errors.PlanErrorf("table %q has no source qualifier and no default source is configured", ref.Table).
					WithHint("Write the table as source.table or configure engine.default_source.")
			}
			source = p.defaultSource
		}
		if _, err := p.catalog.Source(source); err != nil {
			return nil, err
		}
		tables[i] = &plannedTable{ref: ref, source: source, alias: ref.Name()}
	}
	return tables, nil
}

// checkParams rejects parameter references beyond the bound set before
// anything else runs.
func (p *Planner) checkParams(stmt *parser.SelectStmt, params []types.Value) error {
	var err error
	check := func(expr parser.Expression) {
		parser.WalkExpr(expr, func(e parser.Expression) bool {
			if ref, ok := e.(*parser.ParameterRef); ok && ref.Index > len(params) {
				err = errors.PlanErrorf("parameter $%d is not bound (%d given)", ref.Index, len(params))
				return false
			}
			return true
		})
	}
	for _, col := range stmt.Columns {
		check(col.Expr)
	}
	for _, join := range stmt.Joins {
		check(join.Condition)
	}
	check(stmt.Where)
	for _, g := range stmt.GroupBy {
		check(g)
	}
	check(stmt.Having)
	for _, o := range stmt.OrderBy {
		check(o.Expr)
	}
	return err
}

// nullableAliases reports the aliases an outer join can pad with
// NULLs. WHERE conjuncts on those tables must run after the join, not
// below it, or padded rows would be produced that the predicate should
// have removed.
func nullableAliases(stmt *parser.SelectStmt, tables []*plannedTable) map[string]bool {
	nullable := make(map[string]bool)
	for i, join := range stmt.Joins {
		switch join.Type {
		case parser.LeftJoin:
			nullable[tables[i+1].alias] = true
		case parser.RightJoin:
			for j := 0; j <= i; j++ {
				nullable[tables[j].alias] = true
			}
		case parser.FullJoin:
			for j := 0; j <= i+1; j++ {
				nullable[tables[j].alias] = true
			}
		}
	}
	return nullable
}

// classifyWhere splits the WHERE clause into per-table remote filters,
// per-table local filters, and the residual applied after the final
// join. Conjuncts on a null-padded outer join side stay residual.
func (p *Planner) classifyWhere(where parser.Expression, declared map[string]bool, soleTable string, nullable map[string]bool, params []types.Value) (map[string][]parser.Expression, map[string][]driver.Filter, parser.Expression, error) {
	localFilters := make(map[string][]parser.Expression)
	remoteFilters := make(map[string][]driver.Filter)
	var residualConjuncts []parser.Expression

	for _, conjunct := range splitConjuncts(where) {
		touched, ok := conjunctTables(conjunct, declared, soleTable)
		if ok {
			for alias := range touched {
				if nullable[alias] {
					ok = false
					break
				}
			}
		}

		switch {
		case ok && len(touched) == 0 && soleTable != "":
			// Constant predicate on a single-table query.
			localFilters[soleTable] = append(localFilters[soleTable], conjunct)

		case ok && len(touched) == 1:
			alias := singleKey(touched)
			if p.pushdown {
				f, err := remoteFilter(conjunct, params)
				if err != nil {
					return nil, nil, nil, err
				}
				if f != nil {
					remoteFilters[alias] = append(remoteFilters[alias], *f)
					continue
				}
			}
			localFilters[alias] = append(localFilters[alias], conjunct)

		default:
			residualConjuncts = append(residualConjuncts, conjunct)
		}
	}
	return localFilters, remoteFilters, andJoin(residualConjuncts), nil
}

// projectedColumns computes, per table, the columns the query actually
// reads, so the fetch can project remotely. A star or an unattributable
// unqualified reference disables the projection for every table.
func (p *Planner) projectedColumns(stmt *parser.SelectStmt, tables []*plannedTable, declared map[string]bool, soleTable string) map[string][]string {
	perTable := make(map[string]map[string]bool, len(tables))
	for _, t := range tables {
		perTable[t.alias] = make(map[string]bool)
	}
	all := false

	collect := func(expr parser.Expression) {
		parser.WalkExpr(expr, func(e parser.Expression) bool {
			switch x := e.(type) {
			case *parser.Star:
				all = true
			case *parser.Identifier:
				switch {
				case x.Qualifier != "" && declared[x.Qualifier]:
					perTable[x.Qualifier][x.Name] = true
				case x.Qualifier == "" && soleTable != "":
					perTable[soleTable][x.Name] = true
				default:
					all = true
				}
			}
			return true
		})
	}

	for _, col := range stmt.Columns {
		collect(col.Expr)
	}
	for _, join := range stmt.Joins {
		collect(join.Condition)
	}
	collect(stmt.Where)
	for _, g := range stmt.GroupBy {
		collect(g)
	}
	collect(stmt.Having)
	for _, o := range stmt.OrderBy {
		collect(o.Expr)
	}

	out := make(map[string][]string, len(tables))
	if all {
		return out
	}
	for alias, set := range perTable {
		cols := make([]string, 0, len(set))
		for col := range set {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		out[alias] = cols
	}
	return out
}

// equiJoinKeys extracts the join key pair when the condition is a
// single equality between a column of each side. Anything more complex
// runs as a nested loop over the full condition.
func equiJoinKeys(condition parser.Expression, leftAliases map[string]bool, rightAlias string) (left, right *parser.Identifier) {
	expr := condition
	for {
		paren, ok := expr.(*parser.ParenExpr)
		if !ok {
			break
		}
		expr = paren.Expr
	}
	cmp, ok := expr.(*parser.ComparisonExpr)
	if !ok || cmp.Operator != parser.TokenEqual {
		return nil, nil
	}
	a, okA := cmp.Left.(*parser.Identifier)
	b, okB := cmp.Right.(*parser.Identifier)
	if !okA || !okB || a.Qualifier == "" || b.Qualifier == "" {
		return nil, nil
	}
	switch {
	case leftAliases[a.Qualifier] && b.Qualifier == rightAlias:
		return a, b
	case leftAliases[b.Qualifier] && a.Qualifier == rightAlias:
		return b, a
	}
	return nil, nil
}

// collectAggregates gathers the distinct aggregate calls the query
// computes, in first-appearance order.
func collectAggregates(stmt *parser.SelectStmt) ([]*parser.FunctionCall, error) {
	var aggs []*parser.FunctionCall
	seen := make(map[string]bool)
	add := func(expr parser.Expression) {
		parser.WalkExpr(expr, func(e parser.Expression) bool {
			if fc, ok := e.(*parser.FunctionCall); ok && fc.IsAggregate() {
				if !seen[fc.String()] {
					seen[fc.String()] = true
					aggs = append(aggs, fc)
				}
				return false
			}
			return true
		})
	}
	for _, col := range stmt.Columns {
		add(col.Expr)
	}
	add(stmt.Having)
	for _, o := range stmt.OrderBy {
		add(o.Expr)
	}
	return aggs, nil
}

// checkGrouping enforces that every bare column in the select list
// appears in GROUP BY once aggregation is in play.
func checkGrouping(stmt *parser.SelectStmt) error {
	var err error
	checkExpr := func(expr parser.Expression) {
		parser.WalkExpr(expr, func(e parser.Expression) bool {
			if fc, ok := e.(*parser.FunctionCall); ok && fc.IsAggregate() {
				return false
			}
			if _, ok := e.(*parser.Star); ok {
				err = errors.PlanErrorf("SELECT * cannot be combined with aggregate functions")
				return false
			}
			id, ok := e.(*parser.Identifier)
			if !ok {
				return true
			}
			if !groupedColumn(id, stmt.GroupBy) {
				err = errors.GroupingColumnError(id.String())
				return false
			}
			return true
		})
	}
	for _, col := range stmt.Columns {
		checkExpr(col.Expr)
		if err != nil {
			return err
		}
	}
	return nil
}

// groupedColumn reports whether a column reference matches one of the
// GROUP BY expressions. A qualifier mismatch is forgiven when either
// side is unqualified, since the parser has already resolved ambiguity.
func groupedColumn(id *parser.Identifier, groupBy []parser.Expression) bool {
	for _, g := range groupBy {
		gid, ok := g.(*parser.Identifier)
		if !ok {
			if g.String() == id.String() {
				return true
			}
			continue
		}
		if gid.Name != id.Name {
			continue
		}
		if gid.Qualifier == id.Qualifier || gid.Qualifier == "" || id.Qualifier == "" {
			return true
		}
	}
	return false
}

// resolveOrderExpr substitutes select-list aliases referenced from
// ORDER BY, so `ORDER BY total` works when the list has `SUM(x) AS
// total`.
func resolveOrderExpr(expr parser.Expression, columns []parser.SelectColumn) parser.Expression {
	id, ok := expr.(*parser.Identifier)
	if !ok || id.Qualifier != "" {
		return expr
	}
	for _, col := range columns {
		if col.Alias == id.Name {
			return col.Expr
		}
	}
	return expr
}

// buildProjection resolves the output columns of the query.
func buildProjection(stmt *parser.SelectStmt) []OutputColumn {
	out := make([]OutputColumn, 0, len(stmt.Columns))
	for _, col := range stmt.Columns {
		if _, ok := col.Expr.(*parser.Star); ok {
			out = append(out, OutputColumn{Expr: col.Expr, Star: true})
			continue
		}
		oc := OutputColumn{Expr: col.Expr}
		switch {
		case col.Alias != "":
			oc.Column = types.Column{Name: col.Alias}
		default:
			if id, ok := col.Expr.(*parser.Identifier); ok {
				oc.Column = types.Column{Name: id.Name, Qualifier: id.Qualifier}
			} else {
				oc.Column = types.Column{Name: col.Expr.String()}
			}
		}
		out = append(out, oc)
	}
	return out
}

func sourceNames(tables []*plannedTable) []string {
	set := make(map[string]bool, len(tables))
	for _, t := range tables {
		set[t.source] = true
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// overallStrategy reports the strategy of the most expensive join, the
// one that dominates the query's runtime. Plans without joins carry
// StrategyNone.
func overallStrategy(steps []*ExecutionStep) Strategy {
	best := StrategyNone
	bestCost := -1.0
	for _, s := range steps {
		if s.Kind == StepJoin && s.EstimatedCost > bestCost {
			best = s.Strategy
			bestCost = s.EstimatedCost
		}
	}
	return best
}

func orderByHasAggregate(stmt *parser.SelectStmt) bool {
	for _, o := range stmt.OrderBy {
		if parser.ContainsAggregate(o.Expr) {
			return true
		}
	}
	return false
}

// estimateFetchRows discounts a table estimate for each pushed or local
// filter conjunct. The factor is arbitrary but fixed, keeping EXPLAIN
// reproducible.
func estimateFetchRows(tableRows int64, filterCount int) int64 {
	est := tableRows
	for i := 0; i < filterCount; i++ {
		est /= 3
	}
	if est < 1 {
		est = 1
	}
	return est
}

func estimateGroupRows(inputRows int64, groupByCount int) int64 {
	if groupByCount == 0 {
		return 1
	}
	est := inputRows / groupReduction
	if est < 1 {
		est = 1
	}
	return est
}

func estimateLimitRows(inputRows int64, limit, offset int) int64 {
	est := inputRows - int64(offset)
	if est < 0 {
		est = 0
	}
	if limit >= 0 && int64(limit) < est {
		est = int64(limit)
	}
	return est
}

func singleKey(m map[string]bool) string {
	for k := range m {
		return k
	}
	return ""
}
