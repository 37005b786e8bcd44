package parser

import "fmt"

// TokenType represents the type of a SQL token.
type TokenType int

const (
	// Special tokens.
	TokenEOF TokenType = iota
	TokenError

	// Literals.
	TokenIdentifier
	TokenNumber
	TokenString
	TokenTrue
	TokenFalse
	TokenNull
	TokenParam // Parameter placeholder like $1, $2

	// Keywords.
	TokenSelect
	TokenFrom
	TokenWhere
	TokenAnd
	TokenOr
	TokenNot
	TokenOrderBy
	TokenGroupBy
	TokenHaving
	TokenAsc
	TokenDesc
	TokenLimit
	TokenOffset
	TokenAs
	TokenOn
	TokenJoin
	TokenInner
	TokenLeft
	TokenRight
	TokenFull
	TokenOuter
	TokenCross
	TokenIs

	// Recognized only to be rejected with a descriptive error.
	TokenDistinct
	TokenUnion
	TokenIntersect
	TokenExcept
	TokenWith

	// Operators.
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenPercent
	TokenEqual
	TokenNotEqual
	TokenLess
	TokenLessEqual
	TokenGreater
	TokenGreaterEqual

	// Delimiters.
	TokenLeftParen
	TokenRightParen
	TokenComma
	TokenSemicolon
	TokenDot
)

var tokenStrings = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenIdentifier:   "IDENTIFIER",
	TokenNumber:       "NUMBER",
	TokenString:       "STRING",
	TokenTrue:         "TRUE",
	TokenFalse:        "FALSE",
	TokenNull:         "NULL",
	TokenParam:        "PARAM",
	TokenSelect:       "SELECT",
	TokenFrom:         "FROM",
	TokenWhere:        "WHERE",
	TokenAnd:          "AND",
	TokenOr:           "OR",
	TokenNot:          "NOT",
	TokenOrderBy:      "ORDER BY",
	TokenGroupBy:      "GROUP BY",
	TokenHaving:       "HAVING",
	TokenAsc:          "ASC",
	TokenDesc:         "DESC",
	TokenLimit:        "LIMIT",
	TokenOffset:       "OFFSET",
	TokenAs:           "AS",
	TokenOn:           "ON",
	TokenJoin:         "JOIN",
	TokenInner:        "INNER",
	TokenLeft:         "LEFT",
	TokenRight:        "RIGHT",
	TokenFull:         "FULL",
	TokenOuter:        "OUTER",
	TokenCross:        "CROSS",
	TokenIs:           "IS",
	TokenDistinct:     "DISTINCT",
	TokenUnion:        "UNION",
	TokenIntersect:    "INTERSECT",
	TokenExcept:       "EXCEPT",
	TokenWith:         "WITH",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenPercent:      "%",
	TokenEqual:        "=",
	TokenNotEqual:     "!=",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenLeftParen:    "(",
	TokenRightParen:   ")",
	TokenComma:        ",",
	TokenSemicolon:    ";",
	TokenDot:          ".",
}

// String returns the string representation of a token type.
func (t TokenType) String() string {
	if s, ok := tokenStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(%d)", t)
}

// Token represents a SQL token.
type Token struct {
	Type     TokenType
	Value    string
	Position int
	Line     int
	Column   int
}

// String returns a string representation of the token.
func (t Token) String() string {
	if t.Type == TokenIdentifier || t.Type == TokenNumber || t.Type == TokenString || t.Type == TokenParam {
		return fmt.Sprintf("%s(%s)", t.Type, t.Value)
	}
	return t.Type.String()
}

// Keywords maps keyword strings to token types.
var keywords = map[string]TokenType{
	"SELECT":    TokenSelect,
	"FROM":      TokenFrom,
	"WHERE":     TokenWhere,
	"AND":       TokenAnd,
	"OR":        TokenOr,
	"NOT":       TokenNot,
	"HAVING":    TokenHaving,
	"ASC":       TokenAsc,
	"DESC":      TokenDesc,
	"LIMIT":     TokenLimit,
	"OFFSET":    TokenOffset,
	"AS":        TokenAs,
	"ON":        TokenOn,
	"JOIN":      TokenJoin,
	"INNER":     TokenInner,
	"LEFT":      TokenLeft,
	"RIGHT":     TokenRight,
	"FULL":      TokenFull,
	"OUTER":     TokenOuter,
	"CROSS":     TokenCross,
	"IS":        TokenIs,
	"DISTINCT":  TokenDistinct,
	"UNION":     TokenUnion,
	"INTERSECT": TokenIntersect,
	"EXCEPT":    TokenExcept,
	"WITH":      TokenWith,
	"TRUE":      TokenTrue,
	"FALSE":     TokenFalse,
	"NULL":      TokenNull,
	"ORDER BY":  TokenOrderBy,
	"GROUP BY":  TokenGroupBy,
}

// LookupKeyword returns the token type for a keyword.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdentifier
}
