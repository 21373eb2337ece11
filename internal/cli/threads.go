package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jpearleverett/story-continuity/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Show the tracked narrative threads",
		Long: `Rebuild thread state from the session's chapters. By default the state is
computed for the next case; use --chapter to inspect an earlier point.`,
		Run: runThreads,
	}

	addSessionFlag(cmd)
	cmd.Flags().Int("chapter", 0, "Chapter to evaluate at (default: next case)")
	cmd.Flags().Bool("mandatory", false, "Only list threads that must be addressed")

	RootCmd.AddCommand(cmd)
}

type threadsView struct {
	Chapter   int            `json:"chapter"`
	Mandatory []model.Thread `json:"mandatory"`
	Optional  []model.Thread `json:"optional,omitempty"`
	Deferred  []model.Thread `json:"deferred,omitempty"`
	Closed    []model.Thread `json:"autoResolved,omitempty"`
	Resolved  []string       `json:"resolved,omitempty"`
}

func runThreads(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")
	onlyMandatory, _ := cmd.Flags().GetBool("mandatory")

	sess := loadSession(cmd)
	if chapter <= 0 {
		chapter, _ = sess.Next()
	}
	state := newEngine(cmd, nil, false).Threads(sess, chapter)

	v := threadsView{
		Chapter:   chapter,
		Mandatory: state.Mandatory(chapter),
	}
	if !onlyMandatory {
		v.Optional = state.Optional(chapter)
		v.Deferred = state.Deferred
		v.Closed = state.AutoResolved
		for id := range state.Resolved {
			v.Resolved = append(v.Resolved, id)
		}
	}
	if v.Mandatory == nil {
		v.Mandatory = []model.Thread{}
	}

	if formatFlag == "text" {
		printThreads("MANDATORY", v.Mandatory, chapter)
		printThreads("OPTIONAL", v.Optional, chapter)
		printThreads("DEFERRED", v.Deferred, chapter)
		return
	}
	sort.Strings(v.Resolved)
	printJSON(v)
}

func printThreads(title string, threads []model.Thread, chapter int) {
	if len(threads) == 0 {
		return
	}
	fmt.Printf("%s (%d)\n", title, len(threads))
	for _, t := range threads {
		flag := ""
		if t.Overdue(chapter) {
			flag = " OVERDUE"
		}
		fmt.Printf("  [%s/%s%s] %s\n", t.Type, t.Urgency, flag, t.Description)
	}
}
