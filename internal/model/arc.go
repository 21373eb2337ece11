package model

import "time"

// RiskTolerance is the coarse behavioral class derived from the personality scores.
type RiskTolerance string

const (
	RiskLow      RiskTolerance = "low"
	RiskModerate RiskTolerance = "moderate"
	RiskHigh     RiskTolerance = "high"
)

// Rank orders risk tolerances from cautious to risk-seeking.
func (r RiskTolerance) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskHigh:
		return 2
	default:
		return 1
	}
}

// Scores are running personality totals.
type Scores struct {
	Aggressive int `json:"aggressive"`
	Methodical int `json:"methodical"`
}

// PersonalityProfile is derived from the choice history; it is never stored on its own.
type PersonalityProfile struct {
	Scores        Scores        `json:"scores"`
	RiskTolerance RiskTolerance `json:"riskTolerance"`
	ChoiceCount   int           `json:"choiceCount"`
}

// PersonalitySnapshot is the profile captured when an arc was (re)built.
type PersonalitySnapshot struct {
	RiskTolerance         RiskTolerance `json:"riskTolerance"`
	Scores                Scores        `json:"scores"`
	ChoiceCountAtSnapshot int           `json:"choiceCountAtSnapshot"`
}

// Snapshot captures the profile for storage on an arc.
func (p PersonalityProfile) Snapshot() PersonalitySnapshot {
	return PersonalitySnapshot{
		RiskTolerance:         p.RiskTolerance,
		Scores:                p.Scores,
		ChoiceCountAtSnapshot: p.ChoiceCount,
	}
}

// ChapterArc is the plan for a single chapter.
type ChapterArc struct {
	Chapter         int    `json:"chapter"`
	Phase           string `json:"phase"`
	BeatType        string `json:"beatType"`
	TensionLevel    int    `json:"tensionLevel"`
	PrimaryFocus    string `json:"primaryFocus"`
	EndingHook      string `json:"endingHook"`
	PersonalStakes  string `json:"personalStakes"`
	EmotionalAnchor string `json:"emotionalAnchor"`
}

// StoryArc is the full 12-chapter plan for one behavioral class.
type StoryArc struct {
	Key                 string              `json:"key"`
	Theme               string              `json:"theme"`
	ChapterArcs         []ChapterArc        `json:"chapterArcs"`
	PersonalitySnapshot PersonalitySnapshot `json:"personalitySnapshot"`
	AdaptedFromChapter  *int                `json:"adaptedFromChapter,omitempty"`
	PreviousKey         string              `json:"previousKey,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
}

// ChapterArc returns the plan for the given chapter, if present.
func (a *StoryArc) ChapterArc(chapter int) (ChapterArc, bool) {
	if a == nil {
		return ChapterArc{}, false
	}
	for _, ca := range a.ChapterArcs {
		if ca.Chapter == chapter {
			return ca, true
		}
	}
	return ChapterArc{}, false
}

// Clone returns a deep copy of the arc.
func (a *StoryArc) Clone() *StoryArc {
	if a == nil {
		return nil
	}
	out := *a
	out.ChapterArcs = append([]ChapterArc(nil), a.ChapterArcs...)
	if a.AdaptedFromChapter != nil {
		c := *a.AdaptedFromChapter
		out.AdaptedFromChapter = &c
	}
	return &out
}

// ArcRecord is a persisted version of an arc.
type ArcRecord struct {
	ID          string     `json:"id"`
	NS          string     `json:"ns"`
	Key         string     `json:"key"`
	Version     int        `json:"version"`
	Supersedes  string     `json:"supersedes,omitempty"`
	PreviousKey string     `json:"previous_key,omitempty"`
	Risk        string     `json:"risk"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	Arc         StoryArc   `json:"arc"`
}
