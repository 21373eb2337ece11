package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpearleverett/story-continuity/internal/arc"
	"github.com/jpearleverett/story-continuity/internal/cachekey"
	"github.com/jpearleverett/story-continuity/internal/model"
	"github.com/jpearleverett/story-continuity/internal/session"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cachekey",
		Short: "Derive the generation cache key for a case",
		Long: `Derive the cache key for the session's next case, or for an explicit
position with --case, --path and --choices (e.g. "001A:A,001B:B").`,
		Run: runCacheKey,
	}

	cmd.Flags().StringP("session", "s", "", "Session id")
	cmd.Flags().String("case", "", "Case number, e.g. 004B")
	cmd.Flags().StringP("path", "p", "", "Path label")
	cmd.Flags().String("choices", "", "Comma-separated case:option pairs")
	cmd.Flags().String("beat", "", "Beat type override")

	RootCmd.AddCommand(cmd)
}

type keyView struct {
	Key           string `json:"key"`
	Case          string `json:"case"`
	Path          string `json:"path"`
	ChoiceHash    string `json:"choiceHash"`
	BeatType      string `json:"beatType"`
	BeatSignature string `json:"beatSignature"`
}

func runCacheKey(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("session")
	caseNum, _ := cmd.Flags().GetString("case")
	path, _ := cmd.Flags().GetString("path")
	choicesStr, _ := cmd.Flags().GetString("choices")
	beat, _ := cmd.Flags().GetString("beat")

	var in cachekey.Input
	if id != "" {
		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()

		sess := loadSession(cmd)
		eng := newEngine(cmd, s, false)
		ch, sub := sess.Next()
		plan := eng.Plan(cmd.Context(), sess, ch)
		if beat == "" {
			beat = arc.BeatFor(ch)
			if ca, ok := plan.Arc.ChapterArc(ch); ok && ca.BeatType != "" {
				beat = ca.BeatType
			}
		}
		in = cachekey.Input{
			Chapter:    ch,
			Subchapter: sub,
			Path:       session.PathFor(sess, plan.Profile),
			Choices:    sess.Choices,
		}
	} else {
		if caseNum == "" {
			exitErr("cachekey", fmt.Errorf("either --session or --case is required"))
		}
		ch, sub, err := model.ParseCaseNumber(caseNum)
		if err != nil {
			exitErr("parse case", err)
		}
		choices, err := parseChoices(choicesStr)
		if err != nil {
			exitErr("parse choices", err)
		}
		if beat == "" {
			beat = arc.BeatFor(ch)
		}
		in = cachekey.Input{Chapter: ch, Subchapter: sub, Path: path, Choices: choices}
	}
	in.StaticVersion = cfg.Cache.StaticVersion
	in.ChapterVersion = cfg.Cache.ChapterVersion
	in.BeatCategories = arc.ExampleCategories(beat)

	v := keyView{
		Key:           cachekey.Derive(in),
		Case:          model.CaseNumber(in.Chapter, in.Subchapter),
		Path:          cachekey.SanitizePath(in.Path),
		ChoiceHash:    cachekey.ChoiceHash(in.Choices, in.Chapter),
		BeatType:      beat,
		BeatSignature: cachekey.BeatSignature(in.BeatCategories),
	}
	if formatFlag == "text" {
		fmt.Println(v.Key)
		return
	}
	printJSON(v)
}

func parseChoices(s string) ([]model.Choice, error) {
	var out []model.Choice
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		caseNum, option, ok := strings.Cut(part, ":")
		if !ok || option == "" {
			return nil, fmt.Errorf("invalid choice %q (want case:option)", part)
		}
		if _, _, err := model.ParseCaseNumber(caseNum); err != nil {
			return nil, err
		}
		out = append(out, model.Choice{CaseNumber: strings.ToUpper(caseNum), OptionKey: strings.ToUpper(option)})
	}
	return out, nil
}
