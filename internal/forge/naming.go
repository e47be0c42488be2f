package forge

import (
	"strings"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "of": true, "for": true,
	"and": true, "or": true, "that": true, "this": true, "with": true,
	"from": true, "on": true, "in": true, "is": true, "it": true,
}

// deriveName turns free-text capability description into a snake_case
// tool name: lowercase, stop-words stripped, max 4 significant words,
// with a "_tool" suffix.
func deriveName(capability string) string {
	fields := strings.FieldsFunc(strings.ToLower(capability), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	words := make([]string, 0, 4)
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		words = append(words, f)
		if len(words) == 4 {
			break
		}
	}
	if len(words) == 0 {
		words = []string{"generated"}
	}
	return strings.Join(words, "_") + "_tool"
}
