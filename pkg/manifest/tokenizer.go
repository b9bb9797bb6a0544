package manifest

import (
	"strings"
	"unicode"
)

// Tokenize splits an instruction line into words using shell-style quoting
// that tolerates Windows paths:
//
//   - whitespace separates words
//   - a quote at the start of a word, or right after a closed quoted
//     segment, opens a quoted segment; its quotes are removed
//   - quotes inside a bare word are literal, so observed_event('m1') stays
//     one unchanged word
//   - backslashes are literal
//   - an unterminated quote runs to the end of the line
func Tokenize(line string) []string {
	tokens := []string{}
	var (
		cur        strings.Builder
		inWord     bool
		quote      rune
		afterQuote bool
	)

	flush := func() {
		if inWord {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
		inWord = false
		afterQuote = false
	}

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				afterQuote = true
				continue
			}
			cur.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		case (r == '"' || r == '\'') && (!inWord || afterQuote):
			quote = r
			inWord = true
		default:
			cur.WriteRune(r)
			inWord = true
			afterQuote = false
		}
	}
	flush()
	return tokens
}

// parseBullet returns the tokens of a bullet line, or false when the line is
// not a bullet.
func parseBullet(line string) (Instruction, bool) {
	stripped := strings.TrimSpace(line)
	if !strings.HasPrefix(stripped, "-") {
		return nil, false
	}
	content := strings.TrimSpace(stripped[1:])
	if content == "" {
		return Instruction{}, true
	}
	return Instruction(Tokenize(content)), true
}
