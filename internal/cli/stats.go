package cli

import (
	"github.com/spf13/cobra"

	"github.com/jpearleverett/story-continuity/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show arc database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsView struct {
	Arcs     *store.Stats `json:"arcs"`
	Sessions int          `json:"sessions"`
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), getDBPath())
	if err != nil {
		exitErr("stats", err)
	}
	sessions, err := sessionStore().List()
	if err != nil {
		exitErr("list sessions", err)
	}

	printJSON(statsView{Arcs: stats, Sessions: len(sessions)})
}
