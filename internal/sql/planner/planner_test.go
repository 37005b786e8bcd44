package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsql/fedsql/internal/catalog"
	"github.com/fedsql/fedsql/internal/driver"
	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/parser"
	"github.com/fedsql/fedsql/internal/sql/types"
)

func testCatalog(t *testing.T) *catalog.MemoryCatalog {
	t.Helper()
	cat := catalog.NewMemoryCatalog()
	for _, name := range []string{"pg", "mongo", "mem"} {
		require.NoError(t, cat.RegisterSource(&catalog.SourceMeta{Name: name, Kind: "memory"}))
	}
	return cat
}

func mustPlan(t *testing.T, cat catalog.Catalog, sql string, params []types.Value, opts ...Option) *ExecutionPlan {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	plan, err := NewPlanner(cat, opts...).Plan(stmt, params)
	require.NoError(t, err)
	return plan
}

func stepsOfKind(plan *ExecutionPlan, kind StepKind) []*ExecutionStep {
	var out []*ExecutionStep
	for _, s := range plan.Steps {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func TestJoinStrategySelection(t *testing.T) {
	tests := []struct {
		name       string
		leftRows   int64
		rightRows  int64
		want       Strategy
		wantSorts  int
	}{
		{"both tiny", 500, 900, NestedLoop, 0},
		{"boundary below", 999, 999, NestedLoop, 0},
		{"mid range", 5000, 200, MergeJoin, 2},
		{"boundary at merge", 1000, 1000, MergeJoin, 2},
		{"large", 20000, 50, HashJoin, 0},
		{"boundary at hash", 10000, 10, HashJoin, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := testCatalog(t)
			cat.SetTableStats("pg", "users", catalog.TableStats{RowCount: tt.leftRows})
			cat.SetTableStats("mongo", "orders", catalog.TableStats{RowCount: tt.rightRows})

			plan := mustPlan(t, cat,
				"SELECT u.name FROM pg.users u JOIN mongo.orders o ON u.id = o.user_id", nil)

			joins := stepsOfKind(plan, StepJoin)
			require.Len(t, joins, 1)
			assert.Equal(t, tt.want, joins[0].Strategy)
			assert.Equal(t, tt.want, plan.Strategy)
			assert.Len(t, stepsOfKind(plan, StepSort), tt.wantSorts)
		})
	}
}

func TestNonEquiJoinForcesNestedLoop(t *testing.T) {
	cat := testCatalog(t)
	cat.SetTableStats("pg", "users", catalog.TableStats{RowCount: 50000})
	cat.SetTableStats("mongo", "orders", catalog.TableStats{RowCount: 50000})

	plan := mustPlan(t, cat,
		"SELECT u.name FROM pg.users u JOIN mongo.orders o ON u.id < o.user_id", nil)

	joins := stepsOfKind(plan, StepJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, NestedLoop, joins[0].Strategy)
	assert.Nil(t, joins[0].LeftKey)
}

func TestMergeJoinSortInputs(t *testing.T) {
	cat := testCatalog(t)
	cat.SetTableStats("pg", "users", catalog.TableStats{RowCount: 2000})
	cat.SetTableStats("mongo", "orders", catalog.TableStats{RowCount: 3000})

	plan := mustPlan(t, cat,
		"SELECT u.name FROM pg.users u JOIN mongo.orders o ON u.id = o.user_id", nil)

	joins := stepsOfKind(plan, StepJoin)
	require.Len(t, joins, 1)
	join := joins[0]
	assert.Equal(t, MergeJoin, join.Strategy)

	require.Len(t, join.DependsOn, 2)
	left := plan.Step(join.DependsOn[0])
	right := plan.Step(join.DependsOn[1])
	require.NotNil(t, left)
	require.NotNil(t, right)
	assert.Equal(t, StepSort, left.Kind)
	assert.Equal(t, StepSort, right.Kind)
	assert.Equal(t, "u.id", left.Keys[0].Expr.String())
	assert.Equal(t, "o.user_id", right.Keys[0].Expr.String())
}

func TestFilterPushdown(t *testing.T) {
	cat := testCatalog(t)
	plan := mustPlan(t, cat,
		"SELECT u.name FROM pg.users u JOIN mongo.orders o ON u.id = o.user_id "+
			"WHERE u.age > 30 AND o.status = 'open' AND u.name = o.note", nil)

	fetches := stepsOfKind(plan, StepFetch)
	require.Len(t, fetches, 2)
	byAlias := map[string]*ExecutionStep{}
	for _, f := range fetches {
		byAlias[f.Alias] = f
	}

	require.Len(t, byAlias["u"].Remote.Filters, 1)
	assert.Equal(t, "age", byAlias["u"].Remote.Filters[0].Column)
	assert.Equal(t, driver.OpGt, byAlias["u"].Remote.Filters[0].Op)

	require.Len(t, byAlias["o"].Remote.Filters, 1)
	assert.Equal(t, "status", byAlias["o"].Remote.Filters[0].Column)

	// The cross-source conjunct survives as the join residual.
	joins := stepsOfKind(plan, StepJoin)
	require.Len(t, joins, 1)
	require.NotNil(t, joins[0].Residual)
	assert.Equal(t, "u.name = o.note", joins[0].Residual.String())
}

func TestPushdownDisabled(t *testing.T) {
	cat := testCatalog(t)
	plan := mustPlan(t, cat,
		"SELECT u.name FROM pg.users u WHERE u.age > 30", nil, DisablePushdown())

	fetches := stepsOfKind(plan, StepFetch)
	require.Len(t, fetches, 1)
	assert.Empty(t, fetches[0].Remote.Filters)
	require.NotNil(t, fetches[0].LocalFilter)
	assert.Equal(t, "u.age > 30", fetches[0].LocalFilter.String())
}

func TestFlippedComparisonPushdown(t *testing.T) {
	cat := testCatalog(t)
	plan := mustPlan(t, cat, "SELECT u.name FROM pg.users u WHERE 30 < u.age", nil)

	fetches := stepsOfKind(plan, StepFetch)
	require.Len(t, fetches, 1)
	require.Len(t, fetches[0].Remote.Filters, 1)
	f := fetches[0].Remote.Filters[0]
	assert.Equal(t, "age", f.Column)
	assert.Equal(t, driver.OpGt, f.Op)
	assert.Equal(t, types.NewInt(30), f.Value)
}

func TestParameterPushdown(t *testing.T) {
	cat := testCatalog(t)
	params := []types.Value{types.NewString("open")}
	plan := mustPlan(t, cat, "SELECT o.id FROM mongo.orders o WHERE o.status = $1", params)

	fetches := stepsOfKind(plan, StepFetch)
	require.Len(t, fetches, 1)
	require.Len(t, fetches[0].Remote.Filters, 1)
	assert.Equal(t, types.NewString("open"), fetches[0].Remote.Filters[0].Value)
}

func TestUnboundParameter(t *testing.T) {
	cat := testCatalog(t)
	stmt, err := parser.Parse("SELECT o.id FROM mongo.orders o WHERE o.status = $2")
	require.NoError(t, err)

	_, err = NewPlanner(cat).Plan(stmt, []types.Value{types.NewString("open")})
	require.Error(t, err)
	assert.True(t, errors.IsPlanError(err))
	assert.Contains(t, err.Error(), "$2")
}

func TestUnknownSource(t *testing.T) {
	cat := testCatalog(t)
	stmt, err := parser.Parse("SELECT x.id FROM nowhere.things x")
	require.NoError(t, err)

	_, err = NewPlanner(cat).Plan(stmt, nil)
	require.Error(t, err)
	assert.True(t, errors.IsError(err, errors.UndefinedObject))
}

func TestDefaultSource(t *testing.T) {
	cat := testCatalog(t)
	plan := mustPlan(t, cat, "SELECT id FROM users", nil, WithDefaultSource("pg"))

	fetches := stepsOfKind(plan, StepFetch)
	require.Len(t, fetches, 1)
	assert.Equal(t, "pg", fetches[0].Source)
	assert.Equal(t, []string{"pg"}, plan.Sources)
}

func TestNoDefaultSource(t *testing.T) {
	cat := testCatalog(t)
	stmt, err := parser.Parse("SELECT id FROM users")
	require.NoError(t, err)

	_, err = NewPlanner(cat).Plan(stmt, nil)
	require.Error(t, err)
	assert.True(t, errors.IsPlanError(err))
}

func TestRemoteLimitPushdown(t *testing.T) {
	cat := testCatalog(t)

	t.Run("bare scan", func(t *testing.T) {
		plan := mustPlan(t, cat, "SELECT u.id FROM pg.users u LIMIT 10 OFFSET 5", nil)
		fetches := stepsOfKind(plan, StepFetch)
		require.Len(t, fetches, 1)
		assert.Equal(t, 15, fetches[0].Remote.Limit)
		limits := stepsOfKind(plan, StepLimit)
		require.Len(t, limits, 1)
		assert.Equal(t, 10, limits[0].Limit)
		assert.Equal(t, 5, limits[0].Offset)
	})

	t.Run("order by blocks pushdown", func(t *testing.T) {
		plan := mustPlan(t, cat, "SELECT u.id FROM pg.users u ORDER BY u.id LIMIT 10", nil)
		fetches := stepsOfKind(plan, StepFetch)
		require.Len(t, fetches, 1)
		assert.Zero(t, fetches[0].Remote.Limit)
	})
}

func TestColumnProjectionPushdown(t *testing.T) {
	cat := testCatalog(t)
	plan := mustPlan(t, cat,
		"SELECT u.name FROM pg.users u JOIN mongo.orders o ON u.id = o.user_id WHERE o.total > 100", nil)

	fetches := stepsOfKind(plan, StepFetch)
	byAlias := map[string][]string{}
	for _, f := range fetches {
		byAlias[f.Alias] = f.Remote.Columns
	}
	assert.Equal(t, []string{"id", "name"}, byAlias["u"])
	assert.Equal(t, []string{"total", "user_id"}, byAlias["o"])

	// A star disables remote projection everywhere.
	starPlan := mustPlan(t, cat,
		"SELECT * FROM pg.users u JOIN mongo.orders o ON u.id = o.user_id", nil)
	for _, f := range stepsOfKind(starPlan, StepFetch) {
		assert.Empty(t, f.Remote.Columns)
	}
}

func TestAggregatePlanning(t *testing.T) {
	cat := testCatalog(t)
	cat.SetTableStats("pg", "users", catalog.TableStats{RowCount: 100})
	cat.SetTableStats("mongo", "orders", catalog.TableStats{RowCount: 500})

	sql := "SELECT u.name, SUM(o.total) AS total FROM pg.users u " +
		"JOIN mongo.orders o ON u.id = o.user_id " +
		"GROUP BY u.name HAVING COUNT(*) > 1 ORDER BY total DESC"
	plan := mustPlan(t, cat, sql, nil)

	aggs := stepsOfKind(plan, StepAggregate)
	require.Len(t, aggs, 1)
	require.Len(t, aggs[0].Aggregates, 2)
	assert.Equal(t, "SUM(o.total)", aggs[0].Aggregates[0].String())
	assert.Equal(t, "COUNT(*)", aggs[0].Aggregates[1].String())
	require.NotNil(t, aggs[0].Having)

	// ORDER BY total resolves through the select alias to the aggregate.
	sorts := stepsOfKind(plan, StepSort)
	require.Len(t, sorts, 1)
	assert.Equal(t, "SUM(o.total)", sorts[0].Keys[0].Expr.String())
	assert.True(t, sorts[0].Keys[0].Desc)

	// Without stats both sides default to the catalog estimate, which
	// lands in the merge-join band and adds a sort per join input. The
	// ORDER BY sort is the last one either way.
	unseeded := mustPlan(t, testCatalog(t), sql, nil)
	joins := stepsOfKind(unseeded, StepJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, MergeJoin, joins[0].Strategy)
	sorts = stepsOfKind(unseeded, StepSort)
	require.Len(t, sorts, 3)
	assert.Equal(t, "SUM(o.total)", sorts[2].Keys[0].Expr.String())
	assert.True(t, sorts[2].Keys[0].Desc)
}

func TestGroupingErrors(t *testing.T) {
	cat := testCatalog(t)

	tests := []struct {
		name string
		sql  string
	}{
		{"ungrouped column", "SELECT u.name, COUNT(*) FROM pg.users u"},
		{"star with aggregate", "SELECT *, COUNT(*) FROM pg.users u"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := parser.Parse(tt.sql)
			require.NoError(t, err)
			_, err = NewPlanner(cat).Plan(stmt, nil)
			require.Error(t, err)
			assert.True(t, errors.IsPlanError(err))
		})
	}
}

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name string
		plan *ExecutionPlan
	}{
		{"empty", &ExecutionPlan{}},
		{
			"duplicate id",
			&ExecutionPlan{Steps: []*ExecutionStep{{ID: 1, Kind: StepFetch}, {ID: 1, Kind: StepFetch}}},
		},
		{
			"forward dependency",
			&ExecutionPlan{Steps: []*ExecutionStep{
				{ID: 1, Kind: StepFetch},
				{ID: 2, Kind: StepJoin, DependsOn: []int{1, 3}},
				{ID: 3, Kind: StepFetch},
			}},
		},
		{
			"fetch with dependency",
			&ExecutionPlan{Steps: []*ExecutionStep{
				{ID: 1, Kind: StepFetch},
				{ID: 2, Kind: StepFetch, DependsOn: []int{1}},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.plan.Validate())
		})
	}
}

func TestDeterministicPlans(t *testing.T) {
	cat := testCatalog(t)
	sql := "SELECT u.name, SUM(o.total) AS total FROM pg.users u " +
		"JOIN mongo.orders o ON u.id = o.user_id WHERE o.status = 'open' " +
		"GROUP BY u.name ORDER BY total DESC LIMIT 5"

	first := FormatText(mustPlan(t, cat, sql, nil))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, FormatText(mustPlan(t, cat, sql, nil)))
	}
}

func TestExplainFormat(t *testing.T) {
	cat := testCatalog(t)
	cat.SetTableStats("pg", "users", catalog.TableStats{RowCount: 2000})
	cat.SetTableStats("mongo", "orders", catalog.TableStats{RowCount: 3000})

	plan := mustPlan(t, cat,
		"SELECT u.name FROM pg.users u JOIN mongo.orders o ON u.id = o.user_id WHERE u.age > 30", nil)

	text := FormatText(plan)
	assert.Contains(t, text, "Merge Join")
	assert.Contains(t, text, "Fetch")
	assert.Contains(t, text, "pg.users")
	assert.Contains(t, text, "age > 30")

	jsonOut, err := FormatJSON(plan)
	require.NoError(t, err)
	assert.Contains(t, jsonOut, "\"strategy\"")
}
