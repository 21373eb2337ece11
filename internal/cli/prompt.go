package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Show the prompt the next generation would send",
		Run:   runPrompt,
	}

	addSessionFlag(cmd)
	cmd.Flags().Int("budget", 0, "Token budget override")
	cmd.Flags().Bool("system", false, "Print the stable story bible prefix instead (text format)")

	RootCmd.AddCommand(cmd)
}

func runPrompt(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	system, _ := cmd.Flags().GetBool("system")
	if budget > 0 {
		cfg.Prompt.TokenBudget = budget
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	sess := loadSession(cmd)
	prep := newEngine(cmd, s, false).Prepare(cmd.Context(), sess)

	if formatFlag == "text" {
		if system {
			fmt.Println(prep.Prefix.Text)
			return
		}
		fmt.Println(prep.Prompt.Text)
		return
	}
	printJSON(prep)
}
