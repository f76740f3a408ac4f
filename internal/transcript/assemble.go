// Package transcript joins recognizer segments into display text.
package transcript

import "strings"

// Options controls normalization.
type Options struct {
	// CapitalizeSentences uppercases sentence starts and the pronoun "i"; use it when the
	// recognizer returns unpunctuated lowercase text.
	CapitalizeSentences bool
}

// Assemble joins segments with single spaces and collapses internal whitespace.
func Assemble(segments []string, opts Options) string {
	if len(segments) == 0 {
		return ""
	}

	normalized := strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
	if normalized == "" {
		return ""
	}
	if opts.CapitalizeSentences {
		normalized = capitalizeSentences(normalized)
	}
	return normalized
}
