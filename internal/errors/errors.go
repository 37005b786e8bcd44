package errors

import (
	stderrors "errors"
	"fmt"
)

// Pipeline stages an error can be attributed to.
const (
	StageLex     = "lex"
	StageParse   = "parse"
	StagePlan    = "plan"
	StageFetch   = "fetch"
	StageExecute = "execute"
	StageCache   = "cache"
)

// Error represents a fedsql error with an SQLSTATE-style code and enough
// context (stage, source, step, position) to act on without re-running
// the query with verbose logging.
type Error struct {
	Code    string // SQLSTATE-style code
	Message string // Primary error message
	Detail  string // Optional detailed error message
	Hint    string // Optional hint message
	Stage   string // Pipeline stage where the error occurred
	Source  string // Data source name, when attributable
	Column  string // Offending column name, when attributable
	Step    int    // Plan step id, when attributable (steps are numbered from 1)
	Row     int    // Row number within a batch, when attributable (rows are numbered from 1)
	Line    int    // 1-based line in the SQL text (0 if not applicable)
	Pos     int    // 1-based column in the SQL text (0 if not applicable)
	Err     error  // Wrapped cause, when any
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d, column %d", msg, e.Line, e.Pos)
	}
	msg = fmt.Sprintf("%s (SQLSTATE %s)", msg, e.Code)
	if e.Detail != "" {
		msg += " DETAIL: " + e.Detail
	}
	return msg
}

// Unwrap returns the wrapped cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the given code and message
func New(code string, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message
func Newf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an underlying cause
func Wrap(err error, code string, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetail adds detail to the error
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithDetailf adds formatted detail to the error
func (e *Error) WithDetailf(format string, args ...interface{}) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithHint adds a hint to the error
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithStage sets the pipeline stage
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithSource sets the data source name
func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

// WithColumn sets the column name
func (e *Error) WithColumn(column string) *Error {
	e.Column = column
	return e
}

// WithStep sets the plan step id
func (e *Error) WithStep(step int) *Error {
	e.Step = step
	return e
}

// WithRow sets the row number within a batch
func (e *Error) WithRow(row int) *Error {
	e.Row = row
	return e
}

// WithPosition sets the position in the SQL text
func (e *Error) WithPosition(line, col int) *Error {
	e.Line = line
	e.Pos = col
	return e
}

// IsError checks if an error is a fedsql Error with a specific code
func IsError(err error, code string) bool {
	var fe *Error
	if !stderrors.As(err, &fe) {
		return false
	}
	return fe.Code == code
}

// Coded returns the coded error err carries, if any
func Coded(err error) (*Error, bool) {
	fe := asError(err)
	return fe, fe != nil
}

// GetError attempts to extract a fedsql Error from any error
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if stderrors.As(err, &fe) {
		return fe
	}
	// Wrap generic errors as internal errors
	return InternalErrorf("%v", err)
}

// Taxonomy predicates

// IsParseError reports whether err is a lex or parse failure
func IsParseError(err error) bool {
	fe := asError(err)
	return fe != nil && (fe.Stage == StageLex || fe.Stage == StageParse)
}

// IsPlanError reports whether err was raised during planning
func IsPlanError(err error) bool {
	fe := asError(err)
	return fe != nil && fe.Stage == StagePlan
}

// IsDriverError reports whether err is a wrapped remote fetch failure
func IsDriverError(err error) bool {
	return IsError(err, ConnectionFailure)
}

// IsCoercionError reports whether err is a type coercion failure,
// row-level or join-key-level
func IsCoercionError(err error) bool {
	return IsError(err, InvalidCharacterValueForCast) || IsError(err, CannotCoerce)
}

// IsTimeout reports whether err is a query or fetch timeout
func IsTimeout(err error) bool {
	return IsError(err, QueryTimeout) || IsError(err, FetchTimeout)
}

// IsCanceled reports whether err is a query cancellation
func IsCanceled(err error) bool {
	return IsError(err, QueryCanceled)
}

func asError(err error) *Error {
	var fe *Error
	if stderrors.As(err, &fe) {
		return fe
	}
	return nil
}
