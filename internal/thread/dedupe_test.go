package thread

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jpearleverett/story-continuity/internal/model"
)

func thread(typ model.ThreadType, desc string, urgency model.Urgency, ch int) model.Thread {
	return model.Thread{
		Type:          typ,
		Description:   desc,
		Status:        model.StatusActive,
		Urgency:       urgency,
		OriginChapter: ch,
		Source:        model.SourceProvider,
	}
}

func TestDedupe_DocksScenario(t *testing.T) {
	d := NewDeduplicator(NewCanonicalizer())
	got := d.Dedupe([]model.Thread{
		thread(model.ThreadAppointment, "meet contact at the docks at midnight", model.UrgencyCritical, 3),
		thread(model.ThreadAppointment, "meeting the contact down at the docks tonight", model.UrgencyNormal, 4),
	})
	if len(got) != 1 {
		t.Fatalf("expected 1 thread, got %d: %+v", len(got), got)
	}
	if got[0].Urgency != model.UrgencyCritical {
		t.Errorf("expected critical, got %s", got[0].Urgency)
	}
	if got[0].OriginChapter != 4 {
		t.Errorf("expected chapter 4, got %d", got[0].OriginChapter)
	}
}

func TestDedupe_ExactKeepsDueChapter(t *testing.T) {
	d := NewDeduplicator(NewCanonicalizer())
	due := 5
	first := thread(model.ThreadPromise, "Jack swore to protect Sarah", model.UrgencyNormal, 2)
	first.DueChapter = &due
	got := d.Dedupe([]model.Thread{first, thread(model.ThreadPromise, "Jack swore to protect Sarah", model.UrgencyNormal, 3)})
	if len(got) != 1 || got[0].DueChapter == nil || *got[0].DueChapter != 5 {
		t.Errorf("expected merged thread to keep due chapter 5, got %+v", got)
	}
}

func TestDedupe_FuzzyPass(t *testing.T) {
	d := NewDeduplicator(NewCanonicalizer())
	in := []model.Thread{
		thread(model.ThreadAppointment, "Jack meets Silas at the docks tonight", model.UrgencyNormal, 1),
		thread(model.ThreadThreat, "Moretti threatened Sarah at the precinct", model.UrgencyCritical, 1),
		thread(model.ThreadAppointment, "Jack meets Silas at the pier", model.UrgencyCritical, 2),
		thread(model.ThreadInvestigation, "examine the ledger at the library", model.UrgencyBackground, 2),
	}
	got := d.Dedupe(in)
	if len(got) != 3 {
		t.Fatalf("expected 3 threads, got %d: %+v", len(got), got)
	}
	for _, th := range got {
		if th.Type == model.ThreadAppointment && th.Urgency != model.UrgencyCritical {
			t.Errorf("expected the critical appointment to survive, got %+v", th)
		}
	}
}

func TestDedupe_FuzzyTieKeepsEarlier(t *testing.T) {
	d := NewDeduplicator(NewCanonicalizer())
	in := []model.Thread{
		thread(model.ThreadAppointment, "Jack meets Silas at the docks tonight", model.UrgencyNormal, 1),
		thread(model.ThreadThreat, "Moretti threatened Sarah at the precinct", model.UrgencyCritical, 1),
		thread(model.ThreadAppointment, "Jack meets Silas at the pier", model.UrgencyNormal, 2),
		thread(model.ThreadInvestigation, "examine the ledger at the library", model.UrgencyBackground, 2),
	}
	got := d.Dedupe(in)
	if len(got) != 3 {
		t.Fatalf("expected 3 threads, got %d", len(got))
	}
	if got[0].Description != "Jack meets Silas at the docks tonight" {
		t.Errorf("expected earlier appointment to survive, got %q", got[0].Description)
	}
}

func TestDedupe_TypeOnlyMatchKeepsBoth(t *testing.T) {
	d := NewDeduplicator(NewCanonicalizer())
	in := []model.Thread{
		thread(model.ThreadRelationship, "a quiet grudge lingers", model.UrgencyBackground, 1),
		thread(model.ThreadRelationship, "the old wound festers", model.UrgencyBackground, 2),
		thread(model.ThreadThreat, "Moretti threatened Sarah at the precinct", model.UrgencyCritical, 1),
		thread(model.ThreadInvestigation, "examine the ledger at the library", model.UrgencyBackground, 2),
	}
	if sim := d.Canon.Similarity(in[0], in[1]); sim != WeightType {
		t.Fatalf("expected raw type weight %v, got %v", WeightType, sim)
	}
	if got := d.Dedupe(in); len(got) != 4 {
		t.Errorf("a shared type alone must not merge threads, got %d", len(got))
	}
}

func TestDedupe_SkipsFuzzyForSmallSets(t *testing.T) {
	d := NewDeduplicator(NewCanonicalizer())
	in := []model.Thread{
		thread(model.ThreadAppointment, "Jack meets Silas at the docks tonight", model.UrgencyNormal, 1),
		thread(model.ThreadAppointment, "Jack meets Silas at the pier", model.UrgencyNormal, 2),
		thread(model.ThreadThreat, "Moretti threatened Sarah", model.UrgencyCritical, 2),
	}
	if got := d.Dedupe(in); len(got) != 3 {
		t.Errorf("expected all 3 threads kept, got %d", len(got))
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	d := NewDeduplicator(NewCanonicalizer())
	in := []model.Thread{
		thread(model.ThreadAppointment, "meet contact at the docks at midnight", model.UrgencyCritical, 3),
		thread(model.ThreadAppointment, "meeting the contact down at the docks tonight", model.UrgencyNormal, 4),
		thread(model.ThreadAppointment, "Jack meets Silas at the docks tonight", model.UrgencyNormal, 1),
		thread(model.ThreadAppointment, "Jack meets Silas at the pier", model.UrgencyCritical, 2),
		thread(model.ThreadThreat, "Moretti threatened Sarah at the precinct", model.UrgencyCritical, 1),
		thread(model.ThreadInvestigation, "examine the ledger at the library", model.UrgencyBackground, 2),
		thread(model.ThreadRelationship, "Sarah no longer trusts Jack", model.UrgencyBackground, 5),
	}
	once := d.Dedupe(in)
	twice := d.Dedupe(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second pass changed the set (-once +twice):\n%s", diff)
	}
}
