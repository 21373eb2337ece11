package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpearleverett/story-continuity/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored arcs (latest version of each key)",
		Run:   runList,
	}

	cmd.Flags().StringP("session", "s", "", "Filter by session")
	cmd.Flags().String("risk", "", "Filter by risk tolerance: low, moderate, high")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("keys-only", false, "Only output session/key pairs")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	ns, _ := cmd.Flags().GetString("session")
	risk, _ := cmd.Flags().GetString("risk")
	limit, _ := cmd.Flags().GetInt("limit")
	keysOnly, _ := cmd.Flags().GetBool("keys-only")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	recs, err := s.List(cmd.Context(), store.ListParams{
		NS:    ns,
		Risk:  strings.ToLower(risk),
		Limit: limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	if keysOnly {
		for _, r := range recs {
			fmt.Printf("%s/%s\n", r.NS, r.Key)
		}
		return
	}
	printJSON(recs)
}
