package driver

import (
	"testing"

	"github.com/fedsql/fedsql/internal/sql/types"
)

func TestMatchFilter(t *testing.T) {
	tests := []struct {
		name string
		v    types.Value
		op   FilterOp
		want types.Value
		exp  bool
	}{
		{"int equal", types.NewInt(5), OpEq, types.NewInt(5), true},
		{"int not equal", types.NewInt(5), OpNe, types.NewInt(4), true},
		{"int less", types.NewInt(3), OpLt, types.NewInt(5), true},
		{"int greater", types.NewInt(7), OpGt, types.NewInt(5), true},
		{"float vs int", types.NewFloat(5.5), OpGt, types.NewInt(5), true},
		{"numeric string vs int", types.NewString("150"), OpGt, types.NewInt(100), true},
		{"string equal", types.NewString("NY"), OpEq, types.NewString("NY"), true},
		{"null never compares equal", types.Null(), OpEq, types.Null(), false},
		{"null never compares unequal", types.Null(), OpNe, types.NewInt(1), false},
		{"is null", types.Null(), OpIsNull, types.Value{}, true},
		{"is null on value", types.NewInt(1), OpIsNull, types.Value{}, false},
		{"is not null", types.NewInt(1), OpIsNotNull, types.Value{}, true},
		{"uncoercible does not match", types.NewString("abc"), OpGt, types.NewInt(5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchFilter(tt.v, tt.op, tt.want); got != tt.exp {
				t.Errorf("MatchFilter(%v, %v, %v) = %v, want %v", tt.v, tt.op, tt.want, got, tt.exp)
			}
		})
	}
}

func TestMatchFilters(t *testing.T) {
	row := map[string]types.Value{
		"total":  types.NewInt(150),
		"region": types.NewString("NY"),
	}

	filters := []Filter{
		{Column: "total", Op: OpGt, Value: types.NewInt(100)},
		{Column: "region", Op: OpEq, Value: types.NewString("NY")},
	}
	if !MatchFilters(row, filters) {
		t.Error("Expected row to match both conjuncts")
	}

	filters[0].Value = types.NewInt(200)
	if MatchFilters(row, filters) {
		t.Error("Expected row to fail the total conjunct")
	}

	// A column absent from the row is NULL and fails comparisons.
	if MatchFilters(row, []Filter{{Column: "ghost", Op: OpEq, Value: types.NewInt(1)}}) {
		t.Error("Expected missing column to behave as NULL")
	}
	if !MatchFilters(row, []Filter{{Column: "ghost", Op: OpIsNull}}) {
		t.Error("Expected missing column to satisfy IS NULL")
	}
}
