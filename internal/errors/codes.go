package errors

// SQLSTATE-style error codes. PostgreSQL codes are used where one
// exists; the timeout codes come from ODBC, which distinguishes
// statement and connection timeouts where PostgreSQL folds both
// into 57014.

// Class 08 - Connection Exception
const (
	ConnectionException = "08000"
	ConnectionFailure   = "08006"
)

// Class 0A - Feature Not Supported
const (
	FeatureNotSupported = "0A000"
)

// Class 22 - Data Exception
const (
	DataException                = "22000"
	NumericValueOutOfRange       = "22003"
	DivisionByZero               = "22012"
	InvalidCharacterValueForCast = "22018"
	InvalidTextRepresentation    = "22P02"
)

// Class 42 - Syntax Error or Access Rule Violation
const (
	SyntaxError     = "42601"
	AmbiguousColumn = "42702"
	UndefinedColumn = "42703"
	UndefinedObject = "42704"
	DuplicateObject = "42710"
	DuplicateAlias  = "42712"
	GroupingError   = "42803"
	CannotCoerce    = "42846"
	UndefinedTable  = "42P01"
)

// Class 57 - Operator Intervention
const (
	QueryCanceled = "57014"
)

// Class HY - ODBC timeouts
const (
	QueryTimeout = "HYT00"
	FetchTimeout = "HYT01"
)

// Class F0 - Configuration File Error
const (
	ConfigFileError = "F0000"
)

// Class XX - Internal Error
const (
	InternalError = "XX000"
)
