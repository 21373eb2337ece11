package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpearleverett/story-continuity/internal/session"
)

func init() {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new story session",
		Run:   runNew,
	}

	cmd.Flags().StringP("path", "p", "", "Fixed path label for keys, e.g. \"Super-Path AF\" (default: derived from play style)")

	RootCmd.AddCommand(cmd)
}

func runNew(cmd *cobra.Command, args []string) {
	path, _ := cmd.Flags().GetString("path")

	s := session.New(time.Now())
	s.PathOverride = path
	if err := sessionStore().Save(s); err != nil {
		exitErr("save session", err)
	}
	logger.Info("session created", zapSession(s.ID))

	if formatFlag == "text" {
		fmt.Println(s.ID)
		return
	}
	printJSON(s)
}
