// Package planner turns a parsed federated SELECT into an execution
// plan: a DAG of fetch, join, aggregate, sort and limit steps with
// push-down filters attached to the fetches and a join strategy chosen
// by a deterministic rule over catalog row estimates.
package planner

import (
	"fmt"

	"github.com/fedsql/fedsql/internal/driver"
	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/parser"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// StepKind identifies what an execution step does.
type StepKind int

const (
	StepFetch StepKind = iota
	StepJoin
	StepAggregate
	StepSort
	StepLimit
)

// String returns the display name of the step kind.
func (k StepKind) String() string {
	switch k {
	case StepFetch:
		return "Fetch"
	case StepJoin:
		return "Join"
	case StepAggregate:
		return "Aggregate"
	case StepSort:
		return "Sort"
	case StepLimit:
		return "Limit"
	default:
		return fmt.Sprintf("Step(%d)", k)
	}
}

// Strategy is the join algorithm chosen for a join step.
type Strategy int

const (
	StrategyNone Strategy = iota
	NestedLoop
	HashJoin
	MergeJoin
)

// String returns the display name of the strategy.
func (s Strategy) String() string {
	switch s {
	case NestedLoop:
		return "Nested Loop"
	case HashJoin:
		return "Hash Join"
	case MergeJoin:
		return "Merge Join"
	default:
		return "None"
	}
}

// SortKey is one ORDER BY term, or the join key of a merge-join input.
type SortKey struct {
	Expr parser.Expression
	Desc bool
}

// ExecutionStep is one node of the plan DAG. Only the fields belonging
// to the step's kind are populated. Step ids start at 1 and appear in
// topological order within the plan.
type ExecutionStep struct {
	ID            int
	Kind          StepKind
	DependsOn     []int
	EstimatedRows int64
	EstimatedCost float64

	// Fetch steps.
	Source      string
	Table       string
	Alias       string              // qualifier stamped on fetched columns
	Remote      *driver.RemoteQuery // push-down projection, filters, limit
	LocalFilter parser.Expression   // single-source conjuncts not expressible remotely

	// Join steps. DependsOn[0] is the left input, DependsOn[1] the right.
	Strategy  Strategy
	JoinType  parser.JoinType
	Condition parser.Expression
	LeftKey   *parser.Identifier // equi-join key, set for hash and merge joins
	RightKey  *parser.Identifier
	Residual  parser.Expression // cross-source WHERE conjuncts, applied after the topmost join

	// Sort steps.
	Keys []SortKey

	// Aggregate steps.
	GroupBy    []parser.Expression
	Aggregates []*parser.FunctionCall
	Having     parser.Expression

	// Limit steps. Limit -1 means no limit, only an offset.
	Limit  int
	Offset int
}

// OutputColumn is one column of the final projection.
type OutputColumn struct {
	Expr parser.Expression
	// Column is the schema entry the projected value is published under.
	// A Star output column expands to the whole input schema instead.
	Column types.Column
	Star   bool
}

// ExecutionPlan is the planner's output: steps in topological order,
// the overall join strategy, the participating sources, and the final
// projection the executor applies after the last step.
type ExecutionPlan struct {
	Steps      []*ExecutionStep
	Strategy   Strategy
	Sources    []string
	Projection []OutputColumn
	Params     []types.Value
	Statement  *parser.SelectStmt
}

// Step returns the step with the given id, or nil.
func (p *ExecutionPlan) Step(id int) *ExecutionStep {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Root returns the final step of the plan.
func (p *ExecutionPlan) Root() *ExecutionStep {
	if len(p.Steps) == 0 {
		return nil
	}
	return p.Steps[len(p.Steps)-1]
}

// TotalCost sums the estimated cost of every step.
func (p *ExecutionPlan) TotalCost() float64 {
	var total float64
	for _, s := range p.Steps {
		total += s.EstimatedCost
	}
	return total
}

// Validate checks the structural invariants of the plan: unique step
// ids, every dependency declared before its dependent (which also
// guarantees acyclicity), and fetch steps with no dependencies.
func (p *ExecutionPlan) Validate() error {
	if len(p.Steps) == 0 {
		return errors.PlanErrorf("plan has no steps")
	}
	seen := make(map[int]bool, len(p.Steps))
	for _, s := range p.Steps {
		if seen[s.ID] {
			return errors.PlanErrorf("duplicate step id %d", s.ID).WithStep(s.ID)
		}
		if s.Kind == StepFetch && len(s.DependsOn) > 0 {
			return errors.PlanErrorf("fetch step %d must not have dependencies", s.ID).WithStep(s.ID)
		}
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return errors.PlanErrorf("step %d depends on step %d, which does not precede it", s.ID, dep).
					WithStep(s.ID)
			}
		}
		seen[s.ID] = true
	}
	return nil
}
