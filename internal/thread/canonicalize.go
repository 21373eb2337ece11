// Package thread extracts, deduplicates, caps and archives narrative threads.
package thread

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jpearleverett/story-continuity/internal/model"
)

// Similarity weights. They sum to 1.0.
const (
	WeightType         = 0.30
	WeightParticipants = 0.35
	WeightActions      = 0.25
	WeightLocation     = 0.10
)

const (
	idSeparator          = "|"
	participantSeparator = "+"
	slugWords            = 3
)

// Canonicalizer maps threads onto a canonical identity. Implementations can be
// swapped for a proper entity/intent extractor without touching dedup, cap or
// archive logic.
type Canonicalizer interface {
	// NormalizedID returns the fingerprint used as the dedup/merge key.
	NormalizedID(t model.Thread) string
	// Similarity scores two threads in [0, 1].
	Similarity(a, b model.Thread) float64
}

// Identity is the canonical decomposition of a thread.
type Identity struct {
	Type         model.ThreadType `json:"type"`
	Participants []string         `json:"participants,omitempty"`
	Action       string           `json:"action,omitempty"`
	Actions      []string         `json:"actions,omitempty"`
	Location     string           `json:"location,omitempty"`
	Locations    []string         `json:"locations,omitempty"`
	TimeBucket   string           `json:"timeBucket,omitempty"`
	Slug         string           `json:"slug,omitempty"`
}

// ID joins the identity segments. Empty segments are omitted.
func (id Identity) ID() string {
	parts := []string{string(id.Type)}
	if len(id.Participants) > 0 {
		parts = append(parts, strings.Join(id.Participants, participantSeparator))
	}
	for _, s := range []string{id.Action, id.Location, id.TimeBucket, id.Slug} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, idSeparator)
}

// synonymGroup maps a set of phrases onto the group's first member.
type synonymGroup []string

// Action groups, highest priority first.
var actionGroups = []synonymGroup{
	{"meet", "see", "visit", "rendezvous", "join"},
	{"find", "locate", "track", "search", "hunt", "uncover"},
	{"investigate", "examine", "probe", "analyze", "check", "inspect"},
	{"confront", "challenge", "accuse", "interrogate"},
	{"protect", "guard", "save", "rescue", "defend"},
	{"deliver", "bring", "give", "return", "drop"},
	{"call", "phone", "message", "telephone"},
	{"tell", "reveal", "confess", "warn", "inform"},
	{"expose", "publish", "leak"},
	{"kill", "murder", "shoot", "eliminate"},
	{"escape", "flee", "hide", "vanish"},
	{"pay", "owe", "repay", "bribe"},
}

// Location groups in priority order. Multi-word phrases are matched on the
// normalized text.
var locationGroups = []synonymGroup{
	{"docks", "dock", "harbor", "harbour", "pier", "waterfront", "wharf"},
	{"precinct", "police station", "station house", "headquarters"},
	{"office", "agency"},
	{"warehouse", "depot"},
	{"bar", "tavern", "saloon", "speakeasy", "lounge", "nightclub"},
	{"apartment", "tenement", "loft"},
	{"church", "chapel", "cathedral"},
	{"cemetery", "graveyard"},
	{"courthouse", "courtroom"},
	{"hospital", "clinic"},
	{"morgue"},
	{"penthouse"},
	{"alley", "alleyway"},
	{"diner", "cafe", "coffee shop"},
	{"library", "archives"},
	{"bridge"},
}

// Time buckets, checked in order; the first match wins.
var timeBuckets = []synonymGroup{
	{"tomorrow"},
	{"morning", "dawn", "sunrise", "breakfast"},
	{"noon", "midday", "lunch", "afternoon"},
	{"evening", "dusk", "sunset", "dinner"},
	{"night", "tonight", "midnight"},
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "of": true, "and": true, "or": true,
	"at": true, "in": true, "on": true, "for": true, "with": true, "by": true, "about": true,
	"from": true, "into": true, "his": true, "her": true, "their": true, "him": true,
	"them": true, "he": true, "she": true, "they": true, "is": true, "was": true, "be": true,
	"has": true, "had": true, "have": true, "that": true, "this": true, "down": true, "up": true,
	"will": true, "would": true, "must": true, "needs": true, "need": true, "it": true,
}

var wordRe = regexp.MustCompile(`[a-z0-9']+`)

// TableCanonicalizer is the table-driven Canonicalizer.
type TableCanonicalizer struct {
	actions   map[string]int // word -> group index
	locations map[string]int
}

// NewCanonicalizer builds the default table-driven canonicalizer.
func NewCanonicalizer() *TableCanonicalizer {
	c := &TableCanonicalizer{
		actions:   map[string]int{},
		locations: map[string]int{},
	}
	for i, g := range actionGroups {
		for _, w := range g {
			c.actions[w] = i
		}
	}
	for i, g := range locationGroups {
		for _, w := range g {
			c.locations[w] = i
		}
	}
	return c
}

// NormalizedID implements Canonicalizer.
func (c *TableCanonicalizer) NormalizedID(t model.Thread) string {
	return c.Identify(t.Type, t.Description, t.Characters).ID()
}

// Identify decomposes a thread description into its canonical identity.
func (c *TableCanonicalizer) Identify(typ model.ThreadType, description string, characters []string) Identity {
	words := tokenize(description)
	id := Identity{
		Type:         typ,
		Participants: participants(characters, words),
	}

	actionIdx := map[int]bool{}
	for _, w := range words {
		if i, ok := c.lookupAction(w); ok {
			actionIdx[i] = true
		}
	}
	id.Actions = groupHeads(actionGroups, actionIdx)
	if len(id.Actions) > 0 {
		id.Action = id.Actions[0]
	}

	locIdx := c.matchLocations(words)
	id.Locations = groupHeads(locationGroups, locIdx)
	if len(id.Locations) > 0 {
		id.Location = id.Locations[0]
	}

	id.TimeBucket = bucketTime(words)

	if len(id.Participants) == 0 && id.Action == "" && id.Location == "" {
		id.Slug = slug(words)
	}
	return id
}

// Similarity implements Canonicalizer. Categories without data on both sides
// are left out of the denominator; when only the type is comparable the raw
// type weight is returned.
func (c *TableCanonicalizer) Similarity(a, b model.Thread) float64 {
	ia := c.Identify(a.Type, a.Description, a.Characters)
	ib := c.Identify(b.Type, b.Description, b.Characters)

	score, total := 0.0, WeightType
	if ia.Type == ib.Type {
		score += WeightType
	}
	if len(ia.Participants) > 0 && len(ib.Participants) > 0 {
		total += WeightParticipants
		score += WeightParticipants * jaccard(ia.Participants, ib.Participants)
	}
	if len(ia.Actions) > 0 && len(ib.Actions) > 0 {
		total += WeightActions
		score += WeightActions * jaccard(ia.Actions, ib.Actions)
	}
	if len(ia.Locations) > 0 && len(ib.Locations) > 0 {
		total += WeightLocation
		if jaccard(ia.Locations, ib.Locations) > 0 {
			score += WeightLocation
		}
	}
	if total == WeightType {
		// A shared type alone is not evidence of the same thread.
		return score
	}
	return score / total
}

func (c *TableCanonicalizer) lookupAction(word string) (int, bool) {
	for _, cand := range stems(word) {
		if i, ok := c.actions[cand]; ok {
			return i, true
		}
	}
	return 0, false
}

func (c *TableCanonicalizer) matchLocations(words []string) map[int]bool {
	found := map[int]bool{}
	joined := " " + strings.Join(words, " ") + " "
	for phrase, i := range c.locations {
		if strings.Contains(phrase, " ") {
			if strings.Contains(joined, " "+phrase+" ") {
				found[i] = true
			}
			continue
		}
		for _, w := range words {
			if w == phrase || w == phrase+"s" {
				found[i] = true
				break
			}
		}
	}
	return found
}

func tokenize(s string) []string {
	words := wordRe.FindAllString(strings.ToLower(s), -1)
	for i, w := range words {
		words[i] = strings.TrimSuffix(strings.Trim(w, "'"), "'s")
	}
	return words
}

func participants(characters []string, words []string) []string {
	set := map[string]bool{}
	for _, c := range model.CanonicalCharacters(characters) {
		if isProtagonist(c) {
			set[c] = true
		}
	}
	for _, w := range words {
		if c, ok := model.Protagonists[w]; ok {
			set[c] = true
		}
	}
	return sortedKeys(set)
}

func isProtagonist(name string) bool {
	for _, c := range model.Protagonists {
		if c == name {
			return true
		}
	}
	return false
}

// stems returns lookup candidates for a word: the word itself followed by
// simple suffix-stripped forms.
func stems(w string) []string {
	out := []string{w}
	add := func(s string) {
		if len(s) >= 2 {
			out = append(out, s)
		}
	}
	for _, suffix := range []string{"ing", "ed"} {
		if strings.HasSuffix(w, suffix) && len(w) > len(suffix)+2 {
			base := strings.TrimSuffix(w, suffix)
			add(base)
			add(base + "e")
			if n := len(base); n >= 2 && base[n-1] == base[n-2] {
				add(base[:n-1])
			}
		}
	}
	if strings.HasSuffix(w, "es") && len(w) > 4 {
		add(strings.TrimSuffix(w, "es"))
	}
	if strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3 {
		add(strings.TrimSuffix(w, "s"))
	}
	return out
}

func bucketTime(words []string) string {
	set := map[string]bool{}
	for _, w := range words {
		set[w] = true
	}
	for _, g := range timeBuckets {
		for _, w := range g {
			if set[w] {
				return g[0]
			}
		}
	}
	return ""
}

func slug(words []string) string {
	var kept []string
	for _, w := range words {
		if stopWords[w] || len(w) < 3 {
			continue
		}
		kept = append(kept, w)
		if len(kept) == slugWords {
			break
		}
	}
	return strings.Join(kept, "-")
}

func groupHeads(groups []synonymGroup, idx map[int]bool) []string {
	var order []int
	for i := range idx {
		order = append(order, i)
	}
	sort.Ints(order)
	out := make([]string, 0, len(order))
	for _, i := range order {
		out = append(out, groups[i][0])
	}
	return out
}

func jaccard(a, b []string) float64 {
	set := map[string]bool{}
	for _, x := range a {
		set[x] = true
	}
	inter, union := 0, len(set)
	seen := map[string]bool{}
	for _, y := range b {
		if seen[y] {
			continue
		}
		seen[y] = true
		if set[y] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
