package thread

import (
	"fmt"
	"testing"

	"github.com/jpearleverett/story-continuity/internal/model"
)

func TestTrackerRefresh(t *testing.T) {
	tr := NewTracker(NewCanonicalizer(), nil)
	tr.Extractor.Recent = 40

	var anns []model.ThreadAnnotation
	for i := 0; i < 25; i++ {
		anns = append(anns, annotation("relationship", fmt.Sprintf("rumor%02d about Moretti", i), "", "background"))
	}
	chapters := []model.Chapter{
		structured(1, 1, anns...),
		structured(1, 2,
			annotation("threat", "Moretti is coming for Jack", "", "critical"),
			annotation("investigation", "examine the ledger at the library", "resolved", ""),
		),
	}

	st := tr.Refresh(chapters, Archive{}, 2)
	if len(st.Active) != DefaultMaxActive {
		t.Errorf("expected %d active, got %d", DefaultMaxActive, len(st.Active))
	}
	if len(st.AutoResolved) != 6 {
		t.Errorf("expected 6 auto-resolved, got %d", len(st.AutoResolved))
	}
	// 6 auto-closed plus the resolved investigation.
	if len(st.Archive.Entries) != 7 {
		t.Errorf("expected 7 archived, got %d", len(st.Archive.Entries))
	}
	mandatory := st.Mandatory(2)
	if len(mandatory) != 1 || mandatory[0].Type != model.ThreadThreat {
		t.Errorf("expected the threat to be mandatory, got %+v", mandatory)
	}
	if got := len(st.Optional(2)); got != DefaultMaxActive-1 {
		t.Errorf("expected %d optional, got %d", DefaultMaxActive-1, got)
	}
}

func TestTrackerUncovered(t *testing.T) {
	canon := NewCanonicalizer()
	tr := NewTracker(canon, nil)

	meet := model.Thread{Type: model.ThreadAppointment, Description: "Jack agreed to meet Sarah at the docks tonight",
		Status: model.StatusActive, Urgency: model.UrgencyCritical}
	meet.NormalizedID = canon.NormalizedID(meet)
	threat := model.Thread{Type: model.ThreadThreat, Description: "Silas is coming for Sarah",
		Status: model.StatusActive, Urgency: model.UrgencyCritical}
	threat.NormalizedID = canon.NormalizedID(threat)

	ch := structured(4, 1, annotation("appointment", "Jack meets Sarah at the docks tonight", "resolved", "critical"))
	got := tr.Uncovered([]model.Thread{meet, threat}, ch)
	if len(got) != 1 || got[0].Type != model.ThreadThreat {
		t.Errorf("expected only the threat uncovered, got %+v", got)
	}

	if got := tr.Uncovered(nil, ch); got != nil {
		t.Errorf("nothing mandatory, nothing uncovered: %+v", got)
	}
}

func TestTrackerRefresh_AutoClosedStayClosed(t *testing.T) {
	tr := NewTracker(NewCanonicalizer(), nil)
	tr.Extractor.Recent = 40
	tr.Capper.MaxActive = 15

	var anns []model.ThreadAnnotation
	for i := 0; i < 20; i++ {
		anns = append(anns, annotation("relationship", fmt.Sprintf("rumor%02d about Moretti", i), "", "background"))
	}
	chapters := []model.Chapter{structured(1, 1, anns...)}

	first := tr.Refresh(chapters, Archive{}, 1)
	if len(first.Active) != 15 || len(first.AutoResolved) != 5 {
		t.Fatalf("expected 15 active and 5 auto-resolved, got %d and %d", len(first.Active), len(first.AutoResolved))
	}
	if len(first.Archive.Closed) != 5 {
		t.Fatalf("expected 5 auto-closed ids recorded, got %v", first.Archive.Closed)
	}

	// Resolving five kept threads frees room under the cap.
	var done []model.ThreadAnnotation
	for _, th := range first.Active[:5] {
		done = append(done, annotation("relationship", th.Description, "resolved", "background"))
	}
	chapters = append(chapters, structured(2, 1, done...))

	second := tr.Refresh(chapters, first.Archive, 3)
	if len(second.Active) != 10 {
		t.Errorf("expected 10 active, got %d", len(second.Active))
	}
	closedIDs := second.Archive.ClosedSet()
	for _, th := range second.Active {
		if closedIDs[th.NormalizedID] {
			t.Errorf("auto-closed thread %q is active again", th.Description)
		}
	}
	for _, th := range first.AutoResolved {
		if !second.Resolved[th.NormalizedID] {
			t.Errorf("auto-closed thread %q not reported resolved", th.Description)
		}
	}

	// The ids outlive the archive entries.
	tr.Archiver.Retention = 1
	third := tr.Refresh(chapters, second.Archive, 9)
	if len(third.Archive.Entries) != 0 {
		t.Errorf("expected entries aged out, got %d", len(third.Archive.Entries))
	}
	if len(third.Active) != 10 || len(third.Archive.Closed) != 5 {
		t.Errorf("expected 10 active and 5 closed ids, got %d and %d", len(third.Active), len(third.Archive.Closed))
	}
}
