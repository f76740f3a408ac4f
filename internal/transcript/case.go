package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

var pronounIPattern = regexp.MustCompile(`\bi(['’](?:m|d|ll|ve|re|s))?\b`)

// abbreviations ending in a period that do not close a sentence.
var abbreviations = map[string]struct{}{
	"e.g.": {}, "i.e.": {}, "etc.": {}, "vs.": {}, "mr.": {}, "mrs.": {}, "ms.": {}, "dr.": {}, "st.": {},
}

func capitalizeSentences(text string) string {
	words := strings.Split(text, " ")
	start := true
	for i, word := range words {
		if start {
			words[i] = upperFirstLetter(word)
		}
		start = endsSentence(word)
	}
	return pronounIPattern.ReplaceAllStringFunc(strings.Join(words, " "), func(match string) string {
		return "I" + match[1:]
	})
}

func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, `"')]’”`)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '!', '?':
		return true
	case '.':
		_, abbr := abbreviations[strings.ToLower(trimmed)]
		return !abbr
	default:
		return false
	}
}

func upperFirstLetter(word string) string {
	for i, r := range word {
		if unicode.IsLetter(r) {
			return word[:i] + string(unicode.ToUpper(r)) + word[i+len(string(r)):]
		}
		if unicode.IsDigit(r) {
			return word
		}
	}
	return word
}
