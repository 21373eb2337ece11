package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, most recent first",
		Run:   runSessionsList,
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored session",
		Run:   runSessionsShow,
	}
	addSessionFlag(showCmd)

	rmCmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete a session file (arc records are kept; see rm)",
		Run:   runSessionsRm,
	}
	addSessionFlag(rmCmd)

	sessionsCmd.AddCommand(listCmd, showCmd, rmCmd)
	RootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) {
	rows, err := sessionStore().List()
	if err != nil {
		exitErr("list sessions", err)
	}

	if formatFlag == "text" {
		for _, r := range rows {
			fmt.Printf("%s  %-5s  choices=%d  arc=%s\n", r.ID, r.LastCase, r.Choices, r.ArcKey)
		}
		return
	}
	printJSON(rows)
}

func runSessionsShow(cmd *cobra.Command, args []string) {
	printJSON(loadSession(cmd))
}

func runSessionsRm(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("session")
	if err := sessionStore().Remove(id); err != nil {
		exitErr("rm session", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"session":%q}`+"\n", id)
}
