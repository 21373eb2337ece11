// Package arc plans the 12-chapter story arc and adapts its unplayed portion
// when the player's behavioral profile drifts.
package arc

import (
	"strings"

	"github.com/jpearleverett/story-continuity/internal/model"
)

// RiskThreshold is the score delta at which a profile leaves the moderate class.
const RiskThreshold = 20

// keyPrefix names behavioral arc keys, e.g. SUPERPATH_HIGH.
const keyPrefix = "SUPERPATH_"

// BuildProfile sums choice weights into a personality profile.
func BuildProfile(choices []model.Choice) model.PersonalityProfile {
	var p model.PersonalityProfile
	for _, c := range choices {
		d := c.Delta()
		p.Scores.Aggressive += d.Aggressive
		p.Scores.Methodical += d.Methodical
	}
	p.ChoiceCount = len(choices)
	p.RiskTolerance = RiskFor(p.Scores)
	return p
}

// RiskFor classifies scores by the aggressive minus methodical delta.
func RiskFor(s model.Scores) model.RiskTolerance {
	delta := s.Aggressive - s.Methodical
	switch {
	case delta >= RiskThreshold:
		return model.RiskHigh
	case delta <= -RiskThreshold:
		return model.RiskLow
	default:
		return model.RiskModerate
	}
}

// KeyFor returns the behavioral arc key for a risk tolerance.
func KeyFor(r model.RiskTolerance) string {
	if r == "" {
		r = model.RiskModerate
	}
	return keyPrefix + strings.ToUpper(string(r))
}
