package prompt

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jpearleverett/story-continuity/internal/arc"
	"github.com/jpearleverett/story-continuity/internal/model"
	"github.com/jpearleverett/story-continuity/internal/prose"
	"github.com/jpearleverett/story-continuity/internal/thread"
)

// DefaultBudget is the token budget for the dynamic section.
const DefaultBudget = 6000

// minExcerpt is the smallest remaining budget, in chars, worth excerpting into.
const minExcerpt = 100

// Input is everything the dynamic section is built from.
type Input struct {
	Chapter     int
	Subchapter  int
	Arc         *model.StoryArc
	Threads     thread.State
	Choices     []model.Choice
	LastSummary string
	Budget      int // tokens; rough proxy of 4 chars per token
}

// Item is one packed unit of optional context.
type Item struct {
	Section string  `json:"section"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Excerpt bool    `json:"excerpt,omitempty"`
	// Group is the thread type for optional threads.
	Group   string  `json:"group,omitempty"`
}

// Result is an assembled dynamic section.
type Result struct {
	Text      string            `json:"text"`
	Guidance  *model.ChapterArc `json:"guidance,omitempty"`
	Mandatory []model.Thread    `json:"mandatory"`
	Items     []Item            `json:"items"`
	Dropped   int               `json:"dropped"`
	Budget    int               `json:"budget"`
	Used      int               `json:"used"`
}

const (
	sectionOptional = "OPTIONAL THREADS (weave in where natural)"
	sectionArchive  = "RESOLVED THREADS (callbacks only, do not reopen)"
	sectionChoices  = "PLAYER CHOICES SO FAR"
	sectionPrevious = "PREVIOUSLY"
)

var sectionOrder = []string{sectionPrevious, sectionOptional, sectionArchive, sectionChoices}

// Build renders the dynamic section. Case header, arc guidance and mandatory
// threads are always included; optional context is scored and greedily packed
// into what remains of the budget.
func Build(in Input) Result {
	budget := in.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	charBudget := budget * 4

	var b strings.Builder
	fmt.Fprintf(&b, "## CASE %s\n\n", model.CaseNumber(in.Chapter, in.Subchapter))

	res := Result{Budget: budget, Items: []Item{}}
	if ca, ok := in.Arc.ChapterArc(in.Chapter); ok {
		res.Guidance = &ca
		writeGuidance(&b, ca, in.Arc.Theme)
	}

	res.Mandatory = in.Threads.Mandatory(in.Chapter)
	b.WriteString("## MANDATORY THREADS (address every one in this chapter)\n")
	if len(res.Mandatory) == 0 {
		b.WriteString("None.\n")
	}
	writeGrouped(&b, res.Mandatory, in.Chapter)
	b.WriteString("\n")

	used := b.Len()
	candidates := candidates(in)
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	for i, c := range candidates {
		remaining := charBudget - used
		if len(c.Content) <= remaining {
			res.Items = append(res.Items, c)
			used += len(c.Content)
			continue
		}
		res.Dropped = len(candidates) - i
		if remaining >= minExcerpt {
			c.Content = prose.Excerpt(c.Content, 0, remaining-3) + "..."
			c.Excerpt = true
			res.Items = append(res.Items, c)
			used += len(c.Content)
			res.Dropped--
		}
		break
	}

	for _, section := range sectionOrder {
		var items []Item
		for _, it := range res.Items {
			if it.Section == section {
				items = append(items, it)
			}
		}
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", section)
		writeItems(&b, items)
		b.WriteString("\n")
	}

	b.WriteString("## OUTPUT\nReport every thread you touch in narrativeThreads. ")
	b.WriteString("Mark a mandatory thread resolved only if the chapter shows it resolved.\n")

	res.Text = b.String()
	res.Used = used / 4
	return res
}

func writeGuidance(b *strings.Builder, ca model.ChapterArc, theme string) {
	fmt.Fprintf(b, "## ARC GUIDANCE (chapter %d of %d, %s, tension %d/10)\n",
		ca.Chapter, arc.TotalChapters, strings.ReplaceAll(ca.BeatType, "_", " "), ca.TensionLevel)
	fmt.Fprintf(b, "Phase: %s\n", ca.Phase)
	fmt.Fprintf(b, "Focus: %s\n", ca.PrimaryFocus)
	fmt.Fprintf(b, "Ending hook: %s\n", ca.EndingHook)
	fmt.Fprintf(b, "Personal stakes: %s\n", ca.PersonalStakes)
	fmt.Fprintf(b, "Emotional anchor: %s\n", ca.EmotionalAnchor)
	if theme != "" {
		fmt.Fprintf(b, "Theme: %s\n", theme)
	}
	b.WriteString("\n")
}

// writeGrouped writes threads grouped by type, groups in order of first appearance.
func writeGrouped(b *strings.Builder, threads []model.Thread, chapter int) {
	var order []model.ThreadType
	groups := map[model.ThreadType][]model.Thread{}
	for _, t := range threads {
		if _, ok := groups[t.Type]; !ok {
			order = append(order, t.Type)
		}
		groups[t.Type] = append(groups[t.Type], t)
	}
	for _, typ := range order {
		fmt.Fprintf(b, "### %s\n", typ)
		for _, t := range groups[typ] {
			b.WriteString(threadLine(t, chapter))
			b.WriteString("\n")
		}
	}
}

// writeItems writes packed items in score order. Items carrying a group are
// gathered under a header per group, groups in order of first appearance.
func writeItems(b *strings.Builder, items []Item) {
	var order []string
	groups := map[string][]Item{}
	for _, it := range items {
		if _, ok := groups[it.Group]; !ok {
			order = append(order, it.Group)
		}
		groups[it.Group] = append(groups[it.Group], it)
	}
	for _, g := range order {
		if g != "" {
			fmt.Fprintf(b, "### %s\n", g)
		}
		for _, it := range groups[g] {
			b.WriteString(it.Content)
			b.WriteString("\n")
		}
	}
}

func threadLine(t model.Thread, chapter int) string {
	tags := []string{string(t.Urgency)}
	if t.DueChapter != nil {
		tags = append(tags, fmt.Sprintf("due ch %d", *t.DueChapter))
	}
	if t.Overdue(chapter) {
		tags = append(tags, "OVERDUE")
	}
	line := fmt.Sprintf("- [%s] %s", strings.Join(tags, ", "), t.Description)
	if len(t.Characters) > 0 {
		line += " (" + strings.Join(t.Characters, ", ") + ")"
	}
	return line
}

// candidates scores the optional context. Optional threads outrank the
// previous summary, which outranks archive callbacks and choice history.
func candidates(in Input) []Item {
	var out []Item
	if s := strings.TrimSpace(in.LastSummary); s != "" {
		out = append(out, Item{Section: sectionPrevious, Content: s, Score: 0.85})
	}

	for i, t := range in.Threads.Optional(in.Chapter) {
		base := 0.9
		if t.Urgency == model.UrgencyBackground {
			base = 0.6
		}
		out = append(out, Item{
			Section: sectionOptional,
			Content: threadLine(t, in.Chapter),
			Score:   round(base - 0.005*float64(i)),
			Group:   string(t.Type),
		})
	}

	for _, e := range in.Threads.Archive.Entries {
		age := float64(in.Chapter - e.ResolvedChapter)
		out = append(out, Item{
			Section: sectionArchive,
			Content: fmt.Sprintf("- %s %s in ch %d: %s", e.Type, e.Status, e.ResolvedChapter, e.Description),
			Score:   round(0.5 * math.Exp(-0.2*max(age, 0))),
		})
	}

	if len(in.Choices) > 0 {
		var parts []string
		for _, c := range in.Choices {
			ch, _ := c.Position()
			if ch >= in.Chapter || ch == 0 {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s:%s", c.CaseNumber, strings.ToUpper(c.OptionKey)))
		}
		if len(parts) > 0 {
			out = append(out, Item{Section: sectionChoices, Content: strings.Join(parts, ", "), Score: 0.3})
		}
	}
	return out
}

func round(f float64) float64 { return math.Round(f*1000) / 1000 }
