// Package sqlparse provides the minimal SQL tokenization the firebolt
// driver needs: splitting source text into statements and locating `?`
// parameter placeholders. It does not validate or interpret SQL.
package sqlparse

import "strings"

// TokenKind classifies a token produced by Parse.
type TokenKind int

const (
	// Text is a run of plain SQL text.
	Text TokenKind = iota
	// String is a single-quoted string literal, quotes included.
	String
	// Identifier is a double-quoted or backtick-quoted identifier,
	// quotes included.
	Identifier
	// Comment is a -- line comment or a /* */ block comment.
	Comment
	// Placeholder is a single `?` parameter marker.
	Placeholder
)

// Token is a lexical fragment of a statement. Concatenating the Value of
// every token of a statement reproduces its source text.
type Token struct {
	Kind  TokenKind
	Value string
}

// Statement is one statement of the source query.
type Statement struct {
	Tokens []Token
}

// String reassembles the statement's source text.
func (s Statement) String() string {
	var b strings.Builder
	for _, tok := range s.Tokens {
		b.WriteString(tok.Value)
	}
	return b.String()
}

// Placeholders returns the number of parameter placeholders in the
// statement.
func (s Statement) Placeholders() int {
	n := 0
	for _, tok := range s.Tokens {
		if tok.Kind == Placeholder {
			n++
		}
	}
	return n
}

// Parse splits query into statements on top-level semicolons. Semicolons,
// question marks and comment markers inside string literals and quoted
// identifiers are not special. Statements containing nothing but
// whitespace are discarded. An empty query produces no statements.
func Parse(query string) []Statement {
	var (
		statements []Statement
		tokens     []Token
		text       strings.Builder
	)

	flushText := func() {
		if text.Len() > 0 {
			tokens = append(tokens, Token{Kind: Text, Value: text.String()})
			text.Reset()
		}
	}
	flushStatement := func() {
		flushText()
		if stmt := (Statement{Tokens: tokens}); !isBlank(stmt) {
			statements = append(statements, stmt)
		}
		tokens = nil
	}

	i := 0
	for i < len(query) {
		ch := query[i]
		switch {
		case ch == '\'':
			flushText()
			lit := scanQuoted(query[i:], '\'', true)
			tokens = append(tokens, Token{Kind: String, Value: lit})
			i += len(lit)
		case ch == '"':
			flushText()
			lit := scanQuoted(query[i:], '"', false)
			tokens = append(tokens, Token{Kind: Identifier, Value: lit})
			i += len(lit)
		case ch == '`':
			flushText()
			lit := scanQuoted(query[i:], '`', false)
			tokens = append(tokens, Token{Kind: Identifier, Value: lit})
			i += len(lit)
		case ch == '-' && i+1 < len(query) && query[i+1] == '-':
			flushText()
			end := strings.IndexByte(query[i:], '\n')
			if end == -1 {
				end = len(query) - i
			} else {
				end++ // keep the newline inside the comment token
			}
			tokens = append(tokens, Token{Kind: Comment, Value: query[i : i+end]})
			i += end
		case ch == '/' && i+1 < len(query) && query[i+1] == '*':
			flushText()
			end := strings.Index(query[i+2:], "*/")
			if end == -1 {
				end = len(query) - i
			} else {
				end += 4
			}
			tokens = append(tokens, Token{Kind: Comment, Value: query[i : i+end]})
			i += end
		case ch == '?':
			flushText()
			tokens = append(tokens, Token{Kind: Placeholder, Value: "?"})
			i++
		case ch == ';':
			text.WriteByte(';')
			i++
			flushStatement()
		default:
			text.WriteByte(ch)
			i++
		}
	}
	flushStatement()

	return statements
}

// scanQuoted scans a quoted region starting at src[0] == quote, returning
// the region including both quotes. Doubled quotes stay inside the region;
// backslash escapes are honored when allowEscape is set. An unterminated
// region extends to the end of src.
func scanQuoted(src string, quote byte, allowEscape bool) string {
	for i := 1; i < len(src); i++ {
		switch {
		case allowEscape && src[i] == '\\':
			i++
		case src[i] == quote:
			if i+1 < len(src) && src[i+1] == quote {
				i++
				continue
			}
			return src[:i+1]
		}
	}
	return src
}

// isBlank reports whether the statement contains only whitespace and
// semicolon text. The terminating semicolon stays inside the statement
// text, so it cannot make a statement non-blank by itself.
func isBlank(s Statement) bool {
	for _, tok := range s.Tokens {
		if tok.Kind != Text {
			return false
		}
		if strings.Trim(tok.Value, " \t\r\n\v\f;") != "" {
			return false
		}
	}
	return true
}
