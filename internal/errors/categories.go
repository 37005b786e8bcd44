package errors

import (
	"context"
	stderrors "errors"
)

// Category-specific error constructors for the federation pipeline

// Lexer errors

func NewLexError(msg string, line, col int) *Error {
	return Newf(SyntaxError, "%s", msg).
		WithStage(StageLex).
		WithPosition(line, col)
}

// Parser errors

func NewParseError(msg string, line, col int) *Error {
	return Newf(SyntaxError, "%s", msg).
		WithStage(StageParse).
		WithPosition(line, col)
}

func UnexpectedTokenError(expected, found string, line, col int) *Error {
	return Newf(SyntaxError, "expected %s, found %s", expected, found).
		WithStage(StageParse).
		WithPosition(line, col)
}

func UnresolvedColumnError(qualifier, column string) *Error {
	return Newf(UndefinedColumn, "column reference %q does not match any table or alias in FROM", qualifier+"."+column).
		WithStage(StageParse).
		WithColumn(column)
}

func AmbiguousColumnError(column string) *Error {
	return Newf(AmbiguousColumn, "column reference %q is ambiguous", column).
		WithColumn(column)
}

func ColumnNotFoundError(qualifier, column string) *Error {
	ref := column
	if qualifier != "" {
		ref = qualifier + "." + column
	}
	return Newf(UndefinedColumn, "column %q does not exist", ref).
		WithColumn(column)
}

func DuplicateAliasError(alias string, line, col int) *Error {
	return Newf(DuplicateAlias, "table alias %q specified more than once", alias).
		WithStage(StageParse).
		WithPosition(line, col)
}

func NotSupportedError(feature string) *Error {
	return Newf(FeatureNotSupported, "%s is not supported", feature)
}

// Planner errors

func UnknownSourceError(source string) *Error {
	return Newf(UndefinedObject, "data source %q is not registered", source).
		WithStage(StagePlan).
		WithSource(source).
		WithHint("Register the source or check the database qualifier in FROM.")
}

func UnknownTableError(source, table string) *Error {
	return Newf(UndefinedTable, "table %q does not exist in source %q", table, source).
		WithStage(StagePlan).
		WithSource(source)
}

func GroupingColumnError(column string) *Error {
	return Newf(GroupingError, "column %q must appear in the GROUP BY clause or be used in an aggregate function", column).
		WithStage(StagePlan).
		WithColumn(column)
}

func PlanErrorf(format string, args ...interface{}) *Error {
	return Newf(InternalError, format, args...).WithStage(StagePlan)
}

// Driver errors

func DriverError(source string, err error) *Error {
	return Wrap(err, ConnectionFailure, "remote fetch failed").
		WithStage(StageFetch).
		WithSource(source).
		WithDetailf("%v", err)
}

// Coercion errors

func CoercionError(column string, value interface{}, want string) *Error {
	return Newf(InvalidCharacterValueForCast, "cannot coerce %v to %s", value, want).
		WithStage(StageExecute).
		WithColumn(column)
}

func JoinKeyCoercionError(column string, value interface{}) *Error {
	return Newf(CannotCoerce, "join key %q has a value (%v) that cannot be coerced to the key type", column, value).
		WithStage(StageExecute).
		WithColumn(column)
}

// Cancellation and timeouts

func CanceledError(stage string) *Error {
	return New(QueryCanceled, "canceling statement due to user request").
		WithStage(stage)
}

func TimeoutError(stage string) *Error {
	return New(QueryTimeout, "query timeout expired").
		WithStage(stage)
}

func SourceTimeoutError(source string) *Error {
	return Newf(FetchTimeout, "fetch from source %q timed out", source).
		WithStage(StageFetch).
		WithSource(source)
}

// FromContext translates a context error into the engine taxonomy.
// Returns nil when err is not a context error.
func FromContext(err error, stage string) *Error {
	switch {
	case stderrors.Is(err, context.Canceled):
		return CanceledError(stage)
	case stderrors.Is(err, context.DeadlineExceeded):
		return TimeoutError(stage)
	}
	return nil
}

// Internal

func InternalErrorf(format string, args ...interface{}) *Error {
	return Newf(InternalError, format, args...)
}
