package parser

import (
	"strings"

	"github.com/fedsql/fedsql/internal/errors"
)

// Lexer tokenizes SQL input. Scanning is byte-wise: bare identifiers
// and keywords are ASCII, and line/column positions count bytes.
// Non-ASCII text is only valid inside string literals and quoted
// identifiers.
type Lexer struct {
	input    string
	position int
	line     int
	column   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		column: 1,
	}
}

// Tokenize scans the whole input and returns the token stream, EOF
// token included. The first malformed token aborts the scan.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == TokenError {
			return nil, errors.NewLexError(tok.Value, tok.Line, tok.Column)
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.position >= len(l.input) {
		return l.makeToken(TokenEOF, "")
	}

	ch := l.input[l.position]

	switch ch {
	case '(':
		return l.consumeChar(TokenLeftParen)
	case ')':
		return l.consumeChar(TokenRightParen)
	case ',':
		return l.consumeChar(TokenComma)
	case ';':
		return l.consumeChar(TokenSemicolon)
	case '.':
		return l.consumeChar(TokenDot)
	case '+':
		return l.consumeChar(TokenPlus)
	case '-':
		if l.peek(1) == '-' {
			l.skipComment()
			return l.NextToken()
		}
		return l.consumeChar(TokenMinus)
	case '*':
		return l.consumeChar(TokenStar)
	case '/':
		return l.consumeChar(TokenSlash)
	case '%':
		return l.consumeChar(TokenPercent)
	case '=':
		return l.consumeChar(TokenEqual)
	case '<':
		if l.peek(1) == '=' {
			return l.consumeChars(TokenLessEqual, 2)
		}
		if l.peek(1) == '>' {
			return l.consumeChars(TokenNotEqual, 2)
		}
		return l.consumeChar(TokenLess)
	case '>':
		if l.peek(1) == '=' {
			return l.consumeChars(TokenGreaterEqual, 2)
		}
		return l.consumeChar(TokenGreater)
	case '!':
		if l.peek(1) == '=' {
			return l.consumeChars(TokenNotEqual, 2)
		}
		return l.errorToken("unexpected character '!'")
	case '\'':
		return l.readString()
	case '"':
		return l.readQuotedIdentifier()
	case '$':
		return l.readParameter()
	}

	if isLetter(ch) || ch == '_' {
		return l.readIdentifier()
	}

	if isDigit(ch) {
		return l.readNumber()
	}

	return l.errorToken("unexpected character '" + string(ch) + "'")
}

func (l *Lexer) skipWhitespace() {
	for l.position < len(l.input) {
		ch := l.input[l.position]
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.position++
			l.column++
		} else if ch == '\n' {
			l.position++
			l.line++
			l.column = 1
		} else {
			break
		}
	}
}

func (l *Lexer) skipComment() {
	for l.position < len(l.input) && l.input[l.position] != '\n' {
		l.position++
		l.column++
	}
}

func (l *Lexer) peek(offset int) byte {
	pos := l.position + offset
	if pos >= len(l.input) {
		return 0
	}
	return l.input[pos]
}

func (l *Lexer) consumeChar(tokenType TokenType) Token {
	return l.consumeChars(tokenType, 1)
}

func (l *Lexer) consumeChars(tokenType TokenType, count int) Token {
	tok := Token{
		Type:     tokenType,
		Value:    l.input[l.position : l.position+count],
		Position: l.position,
		Line:     l.line,
		Column:   l.column,
	}
	l.position += count
	l.column += count
	return tok
}

func (l *Lexer) makeToken(tokenType TokenType, value string) Token {
	return Token{
		Type:     tokenType,
		Value:    value,
		Position: l.position,
		Line:     l.line,
		Column:   l.column,
	}
}

func (l *Lexer) errorToken(message string) Token {
	tok := Token{
		Type:     TokenError,
		Value:    message,
		Position: l.position,
		Line:     l.line,
		Column:   l.column,
	}
	l.position++
	l.column++
	return tok
}

func (l *Lexer) readIdentifier() Token {
	start := l.position
	startColumn := l.column

	for l.position < len(l.input) {
		ch := l.input[l.position]
		if isLetter(ch) || isDigit(ch) || ch == '_' {
			l.position++
			l.column++
		} else {
			break
		}
	}

	value := l.input[start:l.position]
	upper := strings.ToUpper(value)

	// ORDER BY and GROUP BY lex as single two-word tokens.
	if upper == "ORDER" || upper == "GROUP" {
		if tok, ok := l.tryReadSecondWord(upper, "BY"); ok {
			tok.Position = start
			tok.Column = startColumn
			return tok
		}
	}

	tokenType := LookupKeyword(upper)
	return Token{
		Type:     tokenType,
		Value:    value,
		Position: start,
		Line:     l.line,
		Column:   startColumn,
	}
}

// tryReadSecondWord looks ahead for the second word of a two-word
// keyword and consumes it when present.
func (l *Lexer) tryReadSecondWord(first, second string) (Token, bool) {
	savedPos := l.position
	savedLine := l.line
	savedColumn := l.column

	l.skipWhitespace()
	start := l.position
	for l.position < len(l.input) {
		ch := l.input[l.position]
		if isLetter(ch) {
			l.position++
			l.column++
		} else {
			break
		}
	}

	if strings.ToUpper(l.input[start:l.position]) == second {
		return Token{
			Type:  LookupKeyword(first + " " + second),
			Value: first + " " + second,
			Line:  savedLine,
		}, true
	}

	l.position = savedPos
	l.line = savedLine
	l.column = savedColumn
	return Token{}, false
}

func (l *Lexer) readNumber() Token {
	start := l.position
	startColumn := l.column
	seenDot := false

	for l.position < len(l.input) {
		ch := l.input[l.position]
		if isDigit(ch) {
			l.position++
			l.column++
		} else if ch == '.' && !seenDot && l.position+1 < len(l.input) && isDigit(l.input[l.position+1]) {
			seenDot = true
			l.position++
			l.column++
		} else {
			break
		}
	}

	return Token{
		Type:     TokenNumber,
		Value:    l.input[start:l.position],
		Position: start,
		Line:     l.line,
		Column:   startColumn,
	}
}

func (l *Lexer) readString() Token {
	startColumn := l.column
	l.position++ // opening quote
	l.column++

	var sb strings.Builder
	for l.position < len(l.input) {
		ch := l.input[l.position]
		if ch == '\'' {
			// Doubled quote is an escaped quote.
			if l.peek(1) == '\'' {
				sb.WriteByte('\'')
				l.position += 2
				l.column += 2
				continue
			}
			l.position++
			l.column++
			return Token{
				Type:     TokenString,
				Value:    sb.String(),
				Position: l.position,
				Line:     l.line,
				Column:   startColumn,
			}
		}
		if ch == '\n' {
			return l.errorToken("unterminated string literal")
		}
		sb.WriteByte(ch)
		l.position++
		l.column++
	}

	return l.errorToken("unterminated string literal")
}

func (l *Lexer) readQuotedIdentifier() Token {
	startColumn := l.column
	l.position++ // opening quote
	l.column++

	var sb strings.Builder
	for l.position < len(l.input) {
		ch := l.input[l.position]
		if ch == '"' {
			if l.peek(1) == '"' {
				sb.WriteByte('"')
				l.position += 2
				l.column += 2
				continue
			}
			l.position++
			l.column++
			return Token{
				Type:     TokenIdentifier,
				Value:    sb.String(),
				Position: l.position,
				Line:     l.line,
				Column:   startColumn,
			}
		}
		if ch == '\n' {
			return l.errorToken("unterminated quoted identifier")
		}
		sb.WriteByte(ch)
		l.position++
		l.column++
	}

	return l.errorToken("unterminated quoted identifier")
}

func (l *Lexer) readParameter() Token {
	start := l.position
	startColumn := l.column
	l.position++ // $
	l.column++

	digits := l.position
	for l.position < len(l.input) && isDigit(l.input[l.position]) {
		l.position++
		l.column++
	}

	if l.position == digits {
		return l.errorToken("expected parameter number after '$'")
	}

	return Token{
		Type:     TokenParam,
		Value:    l.input[start:l.position],
		Position: start,
		Line:     l.line,
		Column:   startColumn,
	}
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
