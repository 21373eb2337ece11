package thread

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jpearleverett/story-continuity/internal/model"
	"github.com/jpearleverett/story-continuity/internal/prose"
)

// DefaultRecentLimit is how many of the most recent threads leave extraction.
const DefaultRecentLimit = 20

// pattern is one fallback rule: prose matching re yields a thread of typ.
type pattern struct {
	typ     model.ThreadType
	urgency model.Urgency
	re      *regexp.Regexp
}

var fallbackPatterns = []pattern{
	{model.ThreadAppointment, model.UrgencyNormal, regexp.MustCompile(`(?i)\b(agreed to meet|promised to (?:meet|be at|see)|arranged to meet|set up a meeting|will meet (?:him|her|them|us|me) at)\b`)},
	{model.ThreadInvestigation, model.UrgencyNormal, regexp.MustCompile(`(?i)\b(needs? to (?:find|check|look into|track down)|started digging|looking into|tracking down|had to find out)\b`)},
	{model.ThreadRevelation, model.UrgencyBackground, regexp.MustCompile(`(?i)\b(discovered that|realized that|learned that|found out that|the truth about)\b`)},
	{model.ThreadThreat, model.UrgencyCritical, regexp.MustCompile(`(?i)\b(threatened|or else|would kill|coming for (?:him|her|them|you|me))\b`)},
	{model.ThreadRelationship, model.UrgencyBackground, regexp.MustCompile(`(?i)\b(trust(?:ed)? (?:him|her|each other)|betrayed|owes? (?:him|her|me|you) one)\b`)},
	{model.ThreadPhysicalState, model.UrgencyBackground, regexp.MustCompile(`(?i)\b(wounded|bleeding|broken (?:rib|ribs|arm|hand|nose)|limping|concussion)\b`)},
	{model.ThreadPromise, model.UrgencyNormal, regexp.MustCompile(`(?i)\b(promised (?:him|her|them|you|me|to)|swore (?:to|that)|vowed|gave (?:his|her|my) word)\b`)},
}

// ExtractResult is the output of Extract.
type ExtractResult struct {
	// Threads are chronological by origin, capped to the most recent entries.
	Threads []model.Thread `json:"threads"`
	// Resolved holds the normalized ids known to be resolved or failed.
	Resolved map[string]bool `json:"resolved"`
	// Dropped counts annotations rejected at the boundary.
	Dropped int `json:"dropped"`
}

// Extractor turns chapter history into thread records.
type Extractor struct {
	Canon  Canonicalizer
	Recent int
	Logger *zap.Logger
}

// NewExtractor returns an extractor with default limits.
func NewExtractor(canon Canonicalizer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{Canon: canon, Recent: DefaultRecentLimit, Logger: logger}
}

// Extract builds threads from chapters, preferring structured annotations and
// falling back to prose patterns for chapters that carry none.
func (e *Extractor) Extract(chapters []model.Chapter) ExtractResult {
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ordered := append([]model.Chapter(nil), chapters...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	res := ExtractResult{Resolved: map[string]bool{}}
	latest := map[string]model.Thread{}
	var order []string

	for _, ch := range ordered {
		if !ch.Structured() {
			continue
		}
		for _, a := range ch.Threads {
			t, err := a.Thread(ch.Chapter, ch.Subchapter)
			if err != nil {
				res.Dropped++
				log.Debug("drop thread annotation",
					zap.String("case", ch.CaseNumber()), zap.Error(err))
				continue
			}
			t.NormalizedID = e.Canon.NormalizedID(t)
			if res.Resolved[t.NormalizedID] && t.Active() {
				// Terminal status is sticky.
				continue
			}
			if t.Status.Terminal() {
				res.Resolved[t.NormalizedID] = true
			}
			if _, ok := latest[t.NormalizedID]; !ok {
				order = append(order, t.NormalizedID)
			}
			latest[t.NormalizedID] = t
		}
	}

	threads := make([]model.Thread, 0, len(order))
	for _, id := range order {
		threads = append(threads, latest[id])
	}

	seenRaw := map[string]bool{}
	for _, ch := range ordered {
		if ch.Structured() {
			continue
		}
		for _, t := range e.fallback(ch, seenRaw) {
			if res.Resolved[t.NormalizedID] {
				log.Debug("suppress resolved thread", zap.String("id", t.NormalizedID),
					zap.String("case", ch.CaseNumber()))
				continue
			}
			if _, tracked := latest[t.NormalizedID]; tracked {
				continue
			}
			threads = append(threads, t)
		}
	}

	sort.SliceStable(threads, func(i, j int) bool { return threads[i].Before(threads[j]) })
	limit := e.Recent
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if len(threads) > limit {
		threads = threads[len(threads)-limit:]
	}
	res.Threads = threads
	return res
}

// fallback scans prose for thread patterns. seen dedupes raw type:excerpt keys
// across the whole fallback pass.
func (e *Extractor) fallback(ch model.Chapter, seen map[string]bool) []model.Thread {
	var out []model.Thread
	for _, s := range prose.Sentences(ch.Narrative) {
		for _, p := range fallbackPatterns {
			loc := p.re.FindStringIndex(s.Text)
			if loc == nil {
				continue
			}
			start := 0
			if len(s.Text) > prose.DefaultExcerptSize {
				start = max(0, loc[0]-prose.DefaultExcerptSize/3)
			}
			excerpt := prose.Excerpt(s.Text, start, prose.DefaultExcerptSize)
			if len(excerpt) < prose.MinExcerptSize {
				continue
			}
			raw := string(p.typ) + ":" + strings.ToLower(excerpt)
			if seen[raw] {
				continue
			}
			seen[raw] = true

			t := model.Thread{
				Type:             p.typ,
				Description:      excerpt,
				Status:           model.StatusActive,
				Urgency:          p.urgency,
				Characters:       mentionedProtagonists(excerpt),
				OriginChapter:    ch.Chapter,
				OriginSubchapter: ch.Subchapter,
				Source:           model.SourceFallback,
			}
			t.NormalizedID = e.Canon.NormalizedID(t)
			out = append(out, t)
		}
	}
	return out
}

func mentionedProtagonists(text string) []string {
	set := map[string]bool{}
	for _, w := range tokenize(text) {
		if c, ok := model.Protagonists[w]; ok {
			set[c] = true
		}
	}
	return sortedKeys(set)
}
