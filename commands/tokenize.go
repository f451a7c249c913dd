package commands

import (
	"regexp"
	"strings"
)

// a quoted run in one of three styles, or any run of non-space characters
var tokenPattern = regexp.MustCompile("\"([^\"]*)\"|'([^']*)'|`([^`]*)`|[^\\s\\p{Zs}]+")

// Tokenize splits text into whitespace-separated tokens. Double, single and
// backtick quotes delimit whole tokens and are stripped; quotes inside an
// unquoted token are kept as-is.
func Tokenize(text string) []string {
	matches := tokenPattern.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tok := text[m[0]:m[1]]
		for g := 1; g <= 3; g++ {
			if m[2*g] >= 0 {
				tok = text[m[2*g]:m[2*g+1]]
				break
			}
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Parse tokenizes a command body and lower-cases the command name. ok is
// false when the body holds no tokens.
func Parse(body string) (name string, args []string, ok bool) {
	tokens := Tokenize(body)
	if len(tokens) == 0 {
		return "", nil, false
	}
	return strings.ToLower(tokens[0]), tokens[1:], true
}
