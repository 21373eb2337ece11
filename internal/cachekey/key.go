// Package cachekey derives deterministic, versioned keys for generation calls.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jpearleverett/story-continuity/internal/model"
)

const (
	// DefaultPath is used when no path label survives sanitizing.
	DefaultPath = "ROOT"

	choiceHashLen = 12
	beatSigLen    = 8
	emptyHash     = "none"
)

var (
	nonAlnum       = regexp.MustCompile(`[^A-Za-z0-9]`)
	pathLabelWords = []string{"Super-Path", "super-path", "Path", "path"}
)

// Input is the full set of values a key depends on.
type Input struct {
	Chapter        int
	Subchapter     int
	Path           string
	Choices        []model.Choice
	StaticVersion  int
	ChapterVersion int
	// BeatCategories are the example categories for the chapter's beat type.
	BeatCategories []string
}

// Derive builds the cache key. Identical inputs always yield the same key and
// changing any one of them changes it. Only choices made in chapters before
// in.Chapter contribute.
func Derive(in Input) string {
	return fmt.Sprintf("story-v%d.%d-%s-%s-%s-%s",
		in.StaticVersion,
		in.ChapterVersion,
		model.CaseNumber(in.Chapter, in.Subchapter),
		SanitizePath(in.Path),
		ChoiceHash(in.Choices, in.Chapter),
		BeatSignature(in.BeatCategories),
	)
}

// PriorChoices returns the choices made strictly before chapter, sorted by case.
func PriorChoices(choices []model.Choice, chapter int) []model.Choice {
	var out []model.Choice
	for _, c := range choices {
		ch, _ := c.Position()
		if ch > 0 && ch < chapter {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, si := out[i].Position()
		cj, sj := out[j].Position()
		if ci != cj {
			return ci < cj
		}
		return si < sj
	})
	return out
}

// ChoiceHash hashes the sorted case:option list of choices before chapter.
func ChoiceHash(choices []model.Choice, chapter int) string {
	prior := PriorChoices(choices, chapter)
	if len(prior) == 0 {
		return emptyHash
	}
	parts := make([]string, 0, len(prior))
	for _, c := range prior {
		ch, sub := c.Position()
		parts = append(parts, model.CaseNumber(ch, sub)+":"+strings.ToUpper(strings.TrimSpace(c.OptionKey)))
	}
	sort.Strings(parts)
	return shortHash(strings.Join(parts, ","), choiceHashLen)
}

// BeatSignature hashes the sorted example categories.
func BeatSignature(categories []string) string {
	if len(categories) == 0 {
		return emptyHash
	}
	sorted := append([]string(nil), categories...)
	sort.Strings(sorted)
	return shortHash(strings.Join(sorted, ","), beatSigLen)
}

// SanitizePath reduces a path label such as "Super-Path A-F-L" or
// "Aggressive Ally" to an uppercase alphanumeric token. Every word of the
// label is kept so distinct labels stay distinct.
func SanitizePath(label string) string {
	token := label
	for _, w := range pathLabelWords {
		token = strings.ReplaceAll(token, w, "")
	}
	if cleaned := strings.ToUpper(nonAlnum.ReplaceAllString(token, "")); cleaned != "" {
		return cleaned
	}
	return DefaultPath
}

func shortHash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}
