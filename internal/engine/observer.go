package engine

import (
	"time"

	"github.com/fedsql/fedsql/internal/sql/parser"
	"github.com/fedsql/fedsql/internal/sql/planner"
)

// EventKind identifies a query lifecycle notification.
type EventKind int

const (
	EventQueryParsed EventKind = iota
	EventPlanGenerated
	EventStepStarted
	EventStepCompleted
	EventQueryCompleted
	EventQueryFailed
)

// String returns the event kind's wire name.
func (k EventKind) String() string {
	switch k {
	case EventQueryParsed:
		return "query-parsed"
	case EventPlanGenerated:
		return "plan-generated"
	case EventStepStarted:
		return "step-started"
	case EventStepCompleted:
		return "step-completed"
	case EventQueryCompleted:
		return "query-completed"
	case EventQueryFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification. Only the fields relevant to the
// kind are set: Statement after parsing, Plan after planning, Step for
// step events, Err for failures.
type Event struct {
	Kind      EventKind
	QueryID   string
	SQL       string
	Time      time.Time
	Statement *parser.SelectStmt
	Plan      *planner.ExecutionPlan
	Step      *planner.ExecutionStep
	Stage     string
	Rows      int
	Elapsed   time.Duration
	Err       error
}

// Observer receives engine events. Implementations must be fast and
// must not block; a panicking observer is contained and logged, never
// propagated to the query.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(e Event) { f(e) }
