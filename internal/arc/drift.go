package arc

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/jpearleverett/story-continuity/internal/model"
)

const (
	// DefaultMinNewChoices is the number of choices since the snapshot required before adapting.
	DefaultMinNewChoices = 2
	// DefaultMagnitudeThreshold is the drift magnitude that triggers adaptation without a class change.
	DefaultMagnitudeThreshold = 25

	minTension = 1
	maxTension = 10
)

// DriftConfig holds the tunable drift thresholds.
type DriftConfig struct {
	MinNewChoices      int `yaml:"min_new_choices" json:"minNewChoices"`
	MagnitudeThreshold int `yaml:"magnitude_threshold" json:"magnitudeThreshold"`
}

// DefaultDriftConfig returns the default thresholds.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{
		MinNewChoices:      DefaultMinNewChoices,
		MagnitudeThreshold: DefaultMagnitudeThreshold,
	}
}

// Drift describes how far the current profile has moved from an arc's snapshot.
type Drift struct {
	Magnitude       int                 `json:"magnitude"`
	CategoryChanged bool                `json:"categoryChanged"`
	NewChoices      int                 `json:"newChoices"`
	ShouldAdapt     bool                `json:"shouldAdapt"`
	From            model.RiskTolerance `json:"from"`
	To              model.RiskTolerance `json:"to"`
	// Direction is +1 toward risk, -1 toward caution, 0 when undetermined.
	Direction int `json:"direction"`
}

// Detect compares a profile against the snapshot an arc was built from.
func Detect(snap model.PersonalitySnapshot, p model.PersonalityProfile, cfg DriftConfig) Drift {
	if cfg.MinNewChoices <= 0 {
		cfg.MinNewChoices = DefaultMinNewChoices
	}
	if cfg.MagnitudeThreshold <= 0 {
		cfg.MagnitudeThreshold = DefaultMagnitudeThreshold
	}

	dAgg := p.Scores.Aggressive - snap.Scores.Aggressive
	dMeth := p.Scores.Methodical - snap.Scores.Methodical
	shift := dAgg - dMeth

	d := Drift{
		Magnitude:       abs(shift),
		CategoryChanged: p.RiskTolerance != snap.RiskTolerance,
		NewChoices:      p.ChoiceCount - snap.ChoiceCountAtSnapshot,
		From:            snap.RiskTolerance,
		To:              p.RiskTolerance,
	}
	d.ShouldAdapt = d.NewChoices >= cfg.MinNewChoices &&
		(d.CategoryChanged || d.Magnitude > cfg.MagnitudeThreshold)

	switch {
	case p.RiskTolerance.Rank() > snap.RiskTolerance.Rank():
		d.Direction = 1
	case p.RiskTolerance.Rank() < snap.RiskTolerance.Rank():
		d.Direction = -1
	case shift > 0:
		d.Direction = 1
	case shift < 0:
		d.Direction = -1
	}
	return d
}

// rewriter substitutes theme keywords in a single pass so a replacement is
// never itself rewritten by a later rule.
type rewriter struct {
	re    *regexp.Regexp
	rules []rule
}

type rule struct {
	exact *regexp.Regexp
	with  string
}

func newRewriter(pairs ...[2]string) rewriter {
	var alts []string
	var rules []rule
	for _, p := range pairs {
		alts = append(alts, p[0])
		rules = append(rules, rule{exact: regexp.MustCompile(`(?i)^` + p[0] + `$`), with: p[1]})
	}
	return rewriter{re: regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`), rules: rules}
}

func (rw rewriter) rewrite(s string) string {
	return rw.re.ReplaceAllStringFunc(s, func(m string) string {
		for _, r := range rw.rules {
			if r.exact.MatchString(m) {
				return matchCase(m, r.with)
			}
		}
		return m
	})
}

var towardRisk = newRewriter(
	[2]string{`investigate carefully`, "act decisively"},
	[2]string{`gather evidence`, "force the issue"},
	[2]string{`weigh instinct against evidence`, "trust instinct over evidence"},
	[2]string{`wait`, "strike"},
	[2]string{`patience`, "urgency"},
	[2]string{`cautious`, "bold"},
)

var towardCaution = newRewriter(
	[2]string{`act decisively`, "investigate carefully"},
	[2]string{`force the issue`, "gather evidence"},
	[2]string{`trust instinct over evidence`, "weigh instinct against evidence"},
	[2]string{`weigh instinct against evidence`, "let the evidence lead"},
	[2]string{`strike`, "wait"},
	[2]string{`urgency`, "patience"},
	[2]string{`bold`, "cautious"},
)

// Adapt returns a copy of a adjusted to the profile. Chapters before
// currentChapter are copied unchanged; later ones get their tension nudged one
// step in the direction of the drift and their guidance rewritten.
func Adapt(a *model.StoryArc, p model.PersonalityProfile, d Drift, currentChapter int, now time.Time) *model.StoryArc {
	out := a.Clone()
	rw := towardRisk
	if d.Direction < 0 {
		rw = towardCaution
	}
	for i, ca := range out.ChapterArcs {
		if ca.Chapter < currentChapter {
			continue
		}
		if d.Direction != 0 {
			ca.TensionLevel = clamp(ca.TensionLevel+d.Direction, minTension, maxTension)
			ca.PrimaryFocus = rw.rewrite(ca.PrimaryFocus)
			ca.EndingHook = rw.rewrite(ca.EndingHook)
			ca.PersonalStakes = rw.rewrite(ca.PersonalStakes)
			ca.EmotionalAnchor = rw.rewrite(ca.EmotionalAnchor)
		}
		out.ChapterArcs[i] = ca
	}

	from := currentChapter
	out.AdaptedFromChapter = &from
	out.PreviousKey = a.Key
	out.Key = KeyFor(p.RiskTolerance)
	out.Theme = Theme(p.RiskTolerance)
	out.PersonalitySnapshot = p.Snapshot()
	out.CreatedAt = now.UTC()
	return out
}

func matchCase(orig, repl string) string {
	if orig == "" || repl == "" {
		return repl
	}
	if unicode.IsUpper(rune(orig[0])) {
		return strings.ToUpper(repl[:1]) + repl[1:]
	}
	return repl
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
