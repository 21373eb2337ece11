package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Show resolved and failed threads kept for callbacks",
		Run:   runArchive,
	}

	addSessionFlag(cmd)

	RootCmd.AddCommand(cmd)
}

func runArchive(cmd *cobra.Command, args []string) {
	sess := loadSession(cmd)
	ch, _ := sess.Next()
	state := newEngine(cmd, nil, false).Threads(sess, ch)

	if formatFlag == "text" {
		for _, a := range state.Archive.Entries {
			fmt.Printf("  [%s %s ch%d-%d] %s\n", a.Type, a.Status, a.OriginChapter, a.ResolvedChapter, a.Description)
		}
		return
	}
	printJSON(state.Archive)
}
