package firebolt

import (
	"fmt"
	"strings"

	"github.com/FireboltJeff/firebolt-go/sqlparse"
)

// formatStatement substitutes the statement's placeholders with formatted
// parameter values, in left-to-right source order. Every placeholder
// consumes exactly one parameter. A trailing semicolon is stripped from
// the final text.
func formatStatement(stmt sqlparse.Statement, parameters []any) (string, error) {
	var b strings.Builder
	used := 0
	for _, tok := range stmt.Tokens {
		if tok.Kind == sqlparse.Placeholder {
			if used >= len(parameters) {
				return "", &DataError{Message: fmt.Sprintf(
					"not enough parameters provided for substitution: given %d, found one more",
					len(parameters))}
			}
			formatted, err := FormatValue(parameters[used])
			if err != nil {
				return "", err
			}
			b.WriteString(formatted)
			used++
			continue
		}
		b.WriteString(tok.Value)
	}

	if used < len(parameters) {
		return "", &DataError{Message: fmt.Sprintf(
			"too many parameters provided for substitution: given %d, used only %d",
			len(parameters), used)}
	}

	return trimStatement(b.String()), nil
}

// trimStatement removes surrounding whitespace and a single trailing
// semicolon from a statement's text.
func trimStatement(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, ";")
	return strings.TrimRight(text, " \t\r\n")
}

// splitFormatSQL splits a query into separate statements and, when
// parameter sets are provided, substitutes placeholders into the single
// statement once per parameter set. Substituting parameters into a
// multi-statement query is not supported.
func splitFormatSQL(query string, parameterSets [][]any) ([]string, error) {
	statements := sqlparse.Parse(query)
	if len(statements) == 0 {
		return []string{query}, nil
	}

	if len(parameterSets) > 0 {
		if len(statements) > 1 {
			return nil, &NotSupportedError{Message: "formatting multistatement queries is not supported"}
		}
		formatted := make([]string, 0, len(parameterSets))
		for _, parameters := range parameterSets {
			text, err := formatStatement(statements[0], parameters)
			if err != nil {
				return nil, err
			}
			formatted = append(formatted, text)
		}
		return formatted, nil
	}

	texts := make([]string, 0, len(statements))
	for _, stmt := range statements {
		texts = append(texts, trimStatement(stmt.String()))
	}
	return texts, nil
}
