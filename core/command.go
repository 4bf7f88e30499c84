package core

import (
	"fmt"
	"strings"
)

// QuoteError reports an unterminated quote in a native command line.
// Position is 1-based.
type QuoteError struct {
	Quote    rune
	Position int
}

func (e *QuoteError) Error() string {
	kind := "single"
	if e.Quote == '"' {
		kind = "double"
	}
	return fmt.Sprintf("syntax error: unmatched %s quote at: %d", kind, e.Position)
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n'
}

// SplitCommand splits a native command line into fields.
// Single and double quotes group words, backslash escapes the next char.
// A closing quote must end the field.
func SplitCommand(line string) ([]string, error) {
	var (
		fields  []string
		word    strings.Builder
		hasWord bool
		quote   rune
		quoteAt int
		escaped bool
	)

	flush := func() {
		if hasWord {
			fields = append(fields, word.String())
		}
		word.Reset()
		hasWord = false
	}

	for i, r := range line {
		switch {
		case escaped:
			word.WriteRune(r)
			hasWord = true
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			if i+1 < len(line) && !isBlank(line[i+1]) {
				return nil, &QuoteError{Quote: r, Position: i + 1}
			}
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote, quoteAt = r, i+1
			hasWord = true
		case quote == 0 && r < 0x80 && isBlank(byte(r)):
			flush()
		default:
			word.WriteRune(r)
			hasWord = true
		}
	}

	if quote != 0 {
		return nil, &QuoteError{Quote: quote, Position: quoteAt}
	}
	flush()

	return fields, nil
}
