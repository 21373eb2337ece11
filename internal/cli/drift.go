package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpearleverett/story-continuity/internal/arc"
)

func init() {
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare the current play style with the session arc's snapshot",
		Run:   runDrift,
	}

	addSessionFlag(cmd)

	RootCmd.AddCommand(cmd)
}

type driftView struct {
	ArcKey  string    `json:"arcKey"`
	Current string    `json:"currentKey"`
	Drift   arc.Drift `json:"drift"`
}

func runDrift(cmd *cobra.Command, args []string) {
	sess := loadSession(cmd)
	if sess.Arc == nil {
		exitErr("drift", fmt.Errorf("session %s has no arc yet", sess.ID))
	}

	profile := arc.BuildProfile(sess.Choices)
	v := driftView{
		ArcKey:  sess.Arc.Key,
		Current: arc.KeyFor(profile.RiskTolerance),
		Drift:   arc.Detect(sess.Arc.PersonalitySnapshot, profile, cfg.Arc.Drift),
	}

	if formatFlag == "text" {
		d := v.Drift
		fmt.Printf("%s -> %s  magnitude=%d new_choices=%d adapt=%t\n",
			d.From, d.To, d.Magnitude, d.NewChoices, d.ShouldAdapt)
		return
	}
	printJSON(v)
}
