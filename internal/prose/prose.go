// Package prose splits chapter narrative into passages and sentences for
// pattern-based thread extraction.
package prose

import (
	"strings"
	"unicode"
)

const (
	// DefaultExcerptSize is the target length of an extracted excerpt.
	DefaultExcerptSize = 120
	// MinExcerptSize is the shortest excerpt worth keeping.
	MinExcerptSize = 12
)

// Sentence is a sentence with its position in the narrative.
type Sentence struct {
	Text      string
	Passage   int
	StartLine int
}

// passage is an intermediate representation of a block of prose.
type passage struct {
	text      string
	startLine int
}

// Sentences splits narrative into sentences. Empty input returns nil.
func Sentences(text string) []Sentence {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []Sentence
	for i, p := range splitPassages(text) {
		for _, s := range splitSentences(p.text) {
			out = append(out, Sentence{Text: s, Passage: i, StartLine: p.startLine})
		}
	}
	return out
}

// splitPassages splits text on heading lines and blank lines.
func splitPassages(text string) []passage {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var passages []passage
	var current []string
	startLine := 1

	flush := func(next int) {
		t := strings.TrimSpace(strings.Join(current, " "))
		if t != "" {
			passages = append(passages, passage{text: t, startLine: startLine})
		}
		current = nil
		startLine = next
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flush(lineNum + 1)
			continue
		}
		// Headings are scene markers, never part of a sentence.
		if strings.HasPrefix(trimmed, "#") {
			flush(lineNum + 1)
			continue
		}
		if len(current) == 0 {
			startLine = lineNum
		}
		current = append(current, trimmed)
	}
	flush(len(lines) + 1)

	return passages
}

// splitSentences breaks a passage on terminal punctuation, keeping closing quotes
// with the sentence they end.
func splitSentences(p string) []string {
	var out []string
	runes := []rune(p)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + 1
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			// Decimal points, ellipses mid-word and similar.
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
		i = end - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', '.', '!', '?':
		return true
	}
	return false
}

// Excerpt returns up to max bytes of s starting at byte offset start, trimmed so
// it neither begins nor ends in the middle of a word.
func Excerpt(s string, start, max int) string {
	if max <= 0 {
		max = DefaultExcerptSize
	}
	if start < 0 || start >= len(s) {
		return ""
	}
	// Back up to the start of the word containing start.
	for start > 0 && !isBoundary(s[start-1]) {
		start--
	}
	end := start + max
	if end >= len(s) {
		end = len(s)
	} else {
		cut := end
		for cut > start && !isBoundary(s[cut]) {
			cut--
		}
		if cut > start {
			end = cut
		}
	}
	return strings.TrimFunc(s[start:end], func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'')
	})
}

func isBoundary(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n'
}
