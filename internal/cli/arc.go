package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	arcCmd := &cobra.Command{
		Use:   "arc",
		Short: "Story arc planning",
	}

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve the arc for the next case without committing it",
		Run:   runArcPlan,
	}
	addSessionFlag(planCmd)
	planCmd.Flags().Bool("persist", false, "Store the arc if it is new or adapted")

	lineageCmd := &cobra.Command{
		Use:   "lineage",
		Short: "Show the adaptation links touching an arc key",
		Run:   runArcLineage,
	}
	addSessionFlag(lineageCmd)
	lineageCmd.Flags().StringP("key", "k", "", "Arc key, e.g. SUPERPATH_LOW (required)")
	lineageCmd.MarkFlagRequired("key")

	arcCmd.AddCommand(planCmd, lineageCmd)
	RootCmd.AddCommand(arcCmd)
}

func runArcPlan(cmd *cobra.Command, args []string) {
	persist, _ := cmd.Flags().GetBool("persist")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	sess := loadSession(cmd)
	eng := newEngine(cmd, s, false)
	ch, _ := sess.Next()
	res := eng.Plan(cmd.Context(), sess, ch)

	if persist && res.NeedsPersist {
		sess.Arc = res.Arc
		if err := eng.Persist(cmd.Context(), sess, res); err != nil {
			exitErr("persist arc", err)
		}
		if err := sessionStore().Save(sess); err != nil {
			exitErr("save session", err)
		}
	}

	if formatFlag == "text" {
		a := res.Arc
		fmt.Printf("%s (%s)\n%s\n\n", a.Key, res.Source, a.Theme)
		for _, ca := range a.ChapterArcs {
			marker := " "
			if ca.Chapter == ch {
				marker = ">"
			}
			fmt.Printf("%s %2d  %-16s %-15s t=%-2d %s\n", marker, ca.Chapter, ca.Phase, ca.BeatType, ca.TensionLevel, ca.PrimaryFocus)
		}
		return
	}
	printJSON(res)
}

func runArcLineage(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("session")
	key, _ := cmd.Flags().GetString("key")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	links, err := s.Lineage(cmd.Context(), id, key)
	if err != nil {
		exitErr("lineage", err)
	}
	printJSON(links)
}
