package thread

import (
	"fmt"
	"testing"

	"github.com/jpearleverett/story-continuity/internal/model"
)

func str(s string) *string { return &s }

func annotation(typ, desc, status, urgency string) model.ThreadAnnotation {
	a := model.ThreadAnnotation{Type: str(typ), Description: str(desc)}
	if status != "" {
		a.Status = str(status)
	}
	if urgency != "" {
		a.Urgency = str(urgency)
	}
	return a
}

func structured(ch, sub int, threads ...model.ThreadAnnotation) model.Chapter {
	if threads == nil {
		threads = []model.ThreadAnnotation{}
	}
	return model.Chapter{Chapter: ch, Subchapter: sub, Narrative: "...", Threads: threads}
}

func legacy(ch, sub int, narrative string) model.Chapter {
	return model.Chapter{Chapter: ch, Subchapter: sub, Narrative: narrative}
}

func TestExtract_LatestAnnotationWins(t *testing.T) {
	e := NewExtractor(NewCanonicalizer(), nil)
	res := e.Extract([]model.Chapter{
		structured(2, 1, annotation("appointment", "Jack must meet Silas at the docks", "resolved", "")),
		structured(1, 1, annotation("appointment", "Jack must meet Silas at the docks", "active", "critical")),
	})

	if len(res.Threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(res.Threads))
	}
	got := res.Threads[0]
	if got.Status != model.StatusResolved || got.OriginChapter != 2 {
		t.Errorf("expected resolved thread from chapter 2, got %+v", got)
	}
	if got.ResolvedChapter == nil || *got.ResolvedChapter != 2 {
		t.Errorf("expected resolved chapter 2, got %v", got.ResolvedChapter)
	}
	if !res.Resolved[got.NormalizedID] {
		t.Errorf("expected %q in resolved set", got.NormalizedID)
	}
}

func TestExtract_TerminalStatusIsSticky(t *testing.T) {
	e := NewExtractor(NewCanonicalizer(), nil)
	res := e.Extract([]model.Chapter{
		structured(1, 1, annotation("promise", "Jack swore to protect Sarah", "failed", "")),
		structured(2, 1, annotation("promise", "Jack swore to protect Sarah", "active", "")),
	})
	if len(res.Threads) != 1 || res.Threads[0].Status != model.StatusFailed {
		t.Errorf("expected the failed thread to stand, got %+v", res.Threads)
	}
}

func TestExtract_DropsMalformedAnnotations(t *testing.T) {
	e := NewExtractor(NewCanonicalizer(), nil)
	res := e.Extract([]model.Chapter{
		structured(1, 1,
			model.ThreadAnnotation{Type: str("threat")},
			model.ThreadAnnotation{Description: str("no type")},
			annotation("gossip", "unknown type", "", ""),
			annotation("threat", "Moretti is coming for Jack", "", "critical"),
		),
	})
	if res.Dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", res.Dropped)
	}
	if len(res.Threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(res.Threads))
	}
	if res.Threads[0].Source != model.SourceProvider {
		t.Errorf("expected provider source, got %s", res.Threads[0].Source)
	}
}

func TestExtract_FallbackPatterns(t *testing.T) {
	e := NewExtractor(NewCanonicalizer(), nil)
	res := e.Extract([]model.Chapter{
		legacy(1, 2, "Sarah swore to find the shooter. Jack was bleeding badly.\n\nThe rain kept on."),
	})
	if len(res.Threads) != 2 {
		t.Fatalf("expected 2 threads, got %d: %+v", len(res.Threads), res.Threads)
	}
	if res.Threads[0].Type != model.ThreadPromise || res.Threads[1].Type != model.ThreadPhysicalState {
		t.Errorf("unexpected types %s, %s", res.Threads[0].Type, res.Threads[1].Type)
	}
	for _, th := range res.Threads {
		if th.Source != model.SourceFallback {
			t.Errorf("expected fallback source, got %s", th.Source)
		}
		if th.OriginChapter != 1 || th.OriginSubchapter != 2 {
			t.Errorf("unexpected origin %d.%d", th.OriginChapter, th.OriginSubchapter)
		}
	}
	if got := res.Threads[0].Characters; len(got) != 1 || got[0] != "sarah" {
		t.Errorf("expected sarah as participant, got %v", got)
	}
}

func TestExtract_FallbackDedupesRawMatches(t *testing.T) {
	e := NewExtractor(NewCanonicalizer(), nil)
	text := "Jack agreed to meet Silas at the docks."
	res := e.Extract([]model.Chapter{legacy(1, 1, text), legacy(1, 2, text)})
	if len(res.Threads) != 1 {
		t.Errorf("expected 1 thread, got %d", len(res.Threads))
	}
}

func TestExtract_NoResurrection(t *testing.T) {
	e := NewExtractor(NewCanonicalizer(), nil)
	res := e.Extract([]model.Chapter{
		structured(1, 1, annotation("appointment", "Jack agreed to meet Silas at the docks", "resolved", "")),
		legacy(2, 1, "Jack agreed to meet Silas at the docks. The rain kept falling."),
		legacy(3, 1, "Later, Jack agreed to meet Silas at the docks again."),
	})

	for id := range res.Resolved {
		for _, th := range res.Threads {
			if th.NormalizedID == id && th.Active() {
				t.Errorf("resolved thread %q resurrected from chapter %d", id, th.OriginChapter)
			}
		}
	}
	if len(res.Threads) != 1 {
		t.Errorf("expected only the resolved thread, got %+v", res.Threads)
	}
}

func TestExtract_CapsToMostRecent(t *testing.T) {
	e := NewExtractor(NewCanonicalizer(), nil)
	var chapters []model.Chapter
	for i := 1; i <= 25; i++ {
		chapters = append(chapters, structured(i, 1,
			annotation("revelation", fmt.Sprintf("ledger page%02d", i), "", "background")))
	}
	res := e.Extract(chapters)
	if len(res.Threads) != DefaultRecentLimit {
		t.Fatalf("expected %d threads, got %d", DefaultRecentLimit, len(res.Threads))
	}
	if res.Threads[0].OriginChapter != 6 || res.Threads[len(res.Threads)-1].OriginChapter != 25 {
		t.Errorf("expected chapters 6..25, got %d..%d",
			res.Threads[0].OriginChapter, res.Threads[len(res.Threads)-1].OriginChapter)
	}
}
