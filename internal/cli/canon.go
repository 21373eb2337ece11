package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpearleverett/story-continuity/internal/model"
	"github.com/jpearleverett/story-continuity/internal/thread"
)

func init() {
	cmd := &cobra.Command{
		Use:   "canon <description> [other-description]",
		Short: "Show the canonical identity of a thread description",
		Long: `Canonicalize a thread description into its identity (type, participants,
action, location, time). With a second description, also report how similar
the two threads are and whether they would be merged.`,
		Args: cobra.RangeArgs(1, 2),
		Run:  runCanon,
	}

	cmd.Flags().StringP("type", "t", string(model.ThreadInvestigation), "Thread type")
	cmd.Flags().String("characters", "", "Comma-separated characters")

	RootCmd.AddCommand(cmd)
}

type canonView struct {
	ID         string          `json:"normalizedId"`
	Identity   thread.Identity `json:"identity"`
	Other      string          `json:"otherId,omitempty"`
	Similarity *float64        `json:"similarity,omitempty"`
	Merge      *bool           `json:"merge,omitempty"`
}

func runCanon(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")
	charsStr, _ := cmd.Flags().GetString("characters")

	tt := model.ThreadType(strings.ToLower(typ))
	if !model.ValidThreadTypes[tt] {
		exitErr("canon", fmt.Errorf("invalid thread type %q", typ))
	}
	var chars []string
	for _, c := range strings.Split(charsStr, ",") {
		if c = strings.TrimSpace(c); c != "" {
			chars = append(chars, c)
		}
	}

	canon := thread.NewCanonicalizer()
	a := model.Thread{Type: tt, Description: args[0], Characters: model.CanonicalCharacters(chars)}
	id := canon.Identify(a.Type, a.Description, a.Characters)
	v := canonView{ID: id.ID(), Identity: id}

	if len(args) == 2 {
		b := model.Thread{Type: tt, Description: args[1], Characters: a.Characters}
		sim := canon.Similarity(a, b)
		threshold := cfg.Threads.SimilarityThreshold
		if threshold <= 0 {
			threshold = thread.DefaultSimilarityThreshold
		}
		merge := canon.NormalizedID(a) == canon.NormalizedID(b) || sim >= threshold
		v.Other = canon.NormalizedID(b)
		v.Similarity = &sim
		v.Merge = &merge
	}

	if formatFlag == "text" {
		fmt.Println(v.ID)
		if v.Similarity != nil {
			fmt.Printf("%s\nsimilarity=%.2f merge=%t\n", v.Other, *v.Similarity, *v.Merge)
		}
		return
	}
	printJSON(v)
}
