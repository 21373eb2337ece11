package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Record a relation between two stored arcs",
		Run:   runLink,
	}

	addSessionFlag(cmd)
	cmd.Flags().String("from", "", "Source arc key (required)")
	cmd.Flags().String("to", "", "Target arc key (required)")
	cmd.Flags().StringP("rel", "r", "replaces", "Relation: adapted_to, replaces")

	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	RootCmd.AddCommand(cmd)
}

func runLink(cmd *cobra.Command, args []string) {
	ns, _ := cmd.Flags().GetString("session")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	rel, _ := cmd.Flags().GetString("rel")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.LinkArcs(cmd.Context(), ns, from, to, rel); err != nil {
		exitErr("link", err)
	}

	links, err := s.Lineage(cmd.Context(), ns, to)
	if err != nil {
		exitErr("lineage", err)
	}
	printJSON(links)
}
