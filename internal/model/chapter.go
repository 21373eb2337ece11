package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SubchaptersPerChapter is the number of cases (A, B, C) in each chapter.
const SubchaptersPerChapter = 3

// Chapter is one generated (or authored) piece of story content.
type Chapter struct {
	Chapter        int    `json:"chapter"`
	Subchapter     int    `json:"subchapter"`
	PathKey        string `json:"pathKey,omitempty"`
	Title          string `json:"title,omitempty"`
	BridgeText     string `json:"bridgeText,omitempty"`
	Narrative      string `json:"narrative"`
	ChapterSummary string `json:"chapterSummary,omitempty"`

	// Threads is nil when the content carries no structured annotations
	// (legacy content) and non-nil, possibly empty, when it does.
	Threads []ThreadAnnotation `json:"narrativeThreads"`
}

// Structured reports whether the chapter carries structured thread annotations.
func (c Chapter) Structured() bool { return c.Threads != nil }

// CaseNumber returns the case label, e.g. "003B".
func (c Chapter) CaseNumber() string { return CaseNumber(c.Chapter, c.Subchapter) }

// Before orders chapters by (chapter, subchapter).
func (c Chapter) Before(o Chapter) bool {
	if c.Chapter != o.Chapter {
		return c.Chapter < o.Chapter
	}
	return c.Subchapter < o.Subchapter
}

// SubchapterLetter maps 1..3 to A..C; anything else is rendered numerically.
func SubchapterLetter(sub int) string {
	if sub >= 1 && sub <= SubchaptersPerChapter {
		return string(rune('A' + sub - 1))
	}
	return strconv.Itoa(sub)
}

// CaseNumber formats a chapter/subchapter pair as a case label.
func CaseNumber(chapter, sub int) string {
	return fmt.Sprintf("%03d%s", chapter, SubchapterLetter(sub))
}

// ParseCaseNumber parses labels like "003B" into (3, 2).
func ParseCaseNumber(s string) (int, int, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if len(s) < 2 {
		return 0, 0, fmt.Errorf("invalid case number %q", s)
	}
	letter := s[len(s)-1]
	if letter < 'A' || letter > 'Z' {
		return 0, 0, fmt.Errorf("invalid case number %q", s)
	}
	ch, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || ch <= 0 {
		return 0, 0, fmt.Errorf("invalid case number %q", s)
	}
	return ch, int(letter-'A') + 1, nil
}

// NextCase returns the case that follows (chapter, sub).
func NextCase(chapter, sub int) (int, int) {
	if chapter <= 0 {
		return 1, 1
	}
	if sub >= SubchaptersPerChapter {
		return chapter + 1, 1
	}
	return chapter, sub + 1
}

// Choice is a decision the player made at the end of a case.
type Choice struct {
	CaseNumber string      `json:"caseNumber"`
	OptionKey  string      `json:"optionKey"`
	Weights    *ScoreDelta `json:"weights,omitempty"`
}

// Position returns the chapter and subchapter the choice was made in.
// Unparseable case numbers yield (0, 0).
func (c Choice) Position() (int, int) {
	ch, sub, err := ParseCaseNumber(c.CaseNumber)
	if err != nil {
		return 0, 0
	}
	return ch, sub
}

// ScoreDelta is the contribution of one choice to the personality scores.
type ScoreDelta struct {
	Aggressive int `json:"aggressive"`
	Methodical int `json:"methodical"`
}

// Delta returns the explicit weights or the default scoring for the option key:
// option A leans methodical, option B leans aggressive.
func (c Choice) Delta() ScoreDelta {
	if c.Weights != nil {
		return *c.Weights
	}
	switch strings.ToUpper(strings.TrimSpace(c.OptionKey)) {
	case "A":
		return ScoreDelta{Methodical: 10}
	case "B":
		return ScoreDelta{Aggressive: 10}
	default:
		return ScoreDelta{Aggressive: 5, Methodical: 5}
	}
}
