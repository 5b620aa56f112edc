package compiler

import (
	"strings"
)

// textSpan is one fragment of a text run after substitution splitting.
// A literal span carries template text verbatim; an expression span carries
// the raw expression source with the delimiters removed.
type textSpan struct {
	Text string
	Expr bool
	Line int
}

// isNameChar reports whether c may appear in a bare $name substitution.
func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '.'
}

// splitExpressions splits a raw text run into literal and expression spans.
// Both the $name and ${expr} substitution forms are recognized; $$ escapes
// a literal dollar sign. Expression text is carried verbatim, trimmed of
// surrounding whitespace only. Braces nest inside ${...}; a span without
// its closing brace is a compile error.
func splitExpressions(text string, line int) ([]textSpan, error) {
	var spans []textSpan
	var literal strings.Builder
	currentLine := line
	literalLine := line

	// A literal span reports the line its first character sits on.
	write := func(c byte) {
		if literal.Len() == 0 {
			literalLine = currentLine
		}
		literal.WriteByte(c)
	}

	flush := func() {
		if literal.Len() > 0 {
			spans = append(spans, textSpan{Text: literal.String(), Line: literalLine})
			literal.Reset()
		}
	}

	i := 0
	for i < len(text) {
		c := text[i]
		if c == '\n' {
			write(c)
			currentLine++
			i++
			continue
		}
		if c != '$' || i+1 >= len(text) {
			write(c)
			i++
			continue
		}

		next := text[i+1]
		switch {
		case next == '$':
			write('$')
			i += 2

		case next == '{':
			spanLine := currentLine
			depth := 1
			j := i + 2
			for j < len(text) && depth > 0 {
				switch text[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				j++
			}
			if depth > 0 {
				return nil, NewDirectiveError(
					ErrUnbalancedExpressionDelimiter,
					"missing closing brace of ${...} expression", spanLine)
			}
			expr := strings.TrimSpace(text[i+2 : j-1])
			if expr == "" {
				return nil, NewDirectiveError(
					ErrUnbalancedExpressionDelimiter,
					"empty template expression", spanLine)
			}
			flush()
			spans = append(spans, textSpan{Text: expr, Expr: true, Line: spanLine})
			currentLine += strings.Count(text[i:j], "\n")
			i = j

		case isNameChar(next):
			j := i + 1
			for j < len(text) && isNameChar(text[j]) {
				j++
			}
			flush()
			spans = append(spans, textSpan{Text: text[i+1 : j], Expr: true, Line: currentLine})
			i = j

		default:
			write(c)
			i++
		}
	}
	flush()

	return spans, nil
}

// containsExpression reports whether a raw text run holds at least one
// substitution span. Used to decide whether attribute values are
// compile-time constants.
func containsExpression(text string) bool {
	spans, err := splitExpressions(text, 1)
	if err != nil {
		return true
	}
	for _, span := range spans {
		if span.Expr {
			return true
		}
	}
	return false
}

// parseBooleanExpression folds trivially constant conditions. It returns
// (true, false, expr) triplets folded into a small result type: verdict is
// 1 for always true, 0 for always false and -1 for a runtime expression.
// An empty expression yields the given default verdict.
func parseBooleanExpression(expression string, emptyVerdict int) (verdict int, runtime string) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return emptyVerdict, ""
	}

	switch strings.ToLower(expression) {
	case "true":
		return 1, ""
	case "false":
		return 0, ""
	}

	allDigits := true
	for i := 0; i < len(expression); i++ {
		if expression[i] < '0' || expression[i] > '9' {
			allDigits = false
			break
		}
	}
	if allDigits {
		for i := 0; i < len(expression); i++ {
			if expression[i] != '0' {
				return 1, ""
			}
		}
		return 0, ""
	}

	return -1, expression
}
