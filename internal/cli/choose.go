package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jpearleverett/story-continuity/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "choose",
		Short: "Record the player's decision for the latest case",
		Long: `Record the option picked at the end of the latest case. Option A scores
methodical and option B aggressive unless explicit weights are given.`,
		Run: runChoose,
	}

	addSessionFlag(cmd)
	cmd.Flags().StringP("option", "o", "", "Option key, e.g. A or B (required)")
	cmd.Flags().Int("aggressive", 0, "Explicit aggressive weight")
	cmd.Flags().Int("methodical", 0, "Explicit methodical weight")

	cmd.MarkFlagRequired("option")

	RootCmd.AddCommand(cmd)
}

func runChoose(cmd *cobra.Command, args []string) {
	option, _ := cmd.Flags().GetString("option")

	var weights *model.ScoreDelta
	if cmd.Flags().Changed("aggressive") || cmd.Flags().Changed("methodical") {
		agg, _ := cmd.Flags().GetInt("aggressive")
		meth, _ := cmd.Flags().GetInt("methodical")
		weights = &model.ScoreDelta{Aggressive: agg, Methodical: meth}
	}

	s := loadSession(cmd)
	c, err := s.Choose(option, weights)
	if err != nil {
		exitErr("choose", err)
	}
	s.UpdatedAt = time.Now().UTC()
	if err := sessionStore().Save(s); err != nil {
		exitErr("save session", err)
	}
	logger.Info("choice recorded", zapSession(s.ID))

	printJSON(c)
}
