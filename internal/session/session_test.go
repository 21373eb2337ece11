package session

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jpearleverett/story-continuity/internal/model"
	"github.com/jpearleverett/story-continuity/internal/thread"
)

var t0 = time.Date(2026, 10, 1, 20, 0, 0, 0, time.UTC)

func played(cases ...string) []model.Chapter {
	var out []model.Chapter
	for _, c := range cases {
		ch, sub, err := model.ParseCaseNumber(c)
		if err != nil {
			panic(err)
		}
		out = append(out, model.Chapter{Chapter: ch, Subchapter: sub, Narrative: "A quiet night on the waterfront."})
	}
	return out
}

func TestNext(t *testing.T) {
	s := New(t0)
	if ch, sub := s.Next(); ch != 1 || sub != 1 {
		t.Errorf("fresh session starts at 001A, got %d/%d", ch, sub)
	}
	s.Chapters = played("001A", "001B", "001C")
	if ch, sub := s.Next(); ch != 2 || sub != 1 {
		t.Errorf("expected 002A, got %d/%d", ch, sub)
	}
}

func TestChoose(t *testing.T) {
	s := New(t0)
	if _, err := s.Choose("A", nil); err == nil {
		t.Error("cannot choose before playing a case")
	}
	s.Chapters = played("001A")

	c, err := s.Choose(" b ", nil)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if c.CaseNumber != "001A" || c.OptionKey != "B" {
		t.Errorf("unexpected choice %+v", c)
	}
	if _, err := s.Choose("A", nil); err == nil {
		t.Error("a case can only be decided once")
	}
}

func TestClone_Independent(t *testing.T) {
	s := New(t0)
	s.Chapters = played("001A")
	s.Chapters[0].Threads = []model.ThreadAnnotation{{}}
	s.Choices = []model.Choice{{CaseNumber: "001A", OptionKey: "A"}}
	s.Archive = thread.Archive{Entries: []thread.ArchivedThread{{Description: "x"}}}
	s.Arc = &model.StoryArc{Key: "SUPERPATH_LOW", ChapterArcs: []model.ChapterArc{{Chapter: 1, TensionLevel: 3}}}

	c := s.Clone()
	if diff := cmp.Diff(s, c); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}
	c.Chapters[0].Threads[0].DueChapter = new(int)
	c.Choices[0].OptionKey = "B"
	c.Archive.Entries[0].Description = "y"
	c.Arc.ChapterArcs[0].TensionLevel = 9

	if s.Chapters[0].Threads[0].DueChapter != nil || s.Choices[0].OptionKey != "A" ||
		s.Archive.Entries[0].Description != "x" || s.Arc.ChapterArcs[0].TensionLevel != 3 {
		t.Error("mutating the clone changed the original")
	}
}

func TestFileStore(t *testing.T) {
	fs := NewFileStore(t.TempDir())

	a := New(t0)
	a.Chapters = played("001A", "001B")
	a.Arc = &model.StoryArc{Key: "SUPERPATH_LOW"}
	b := New(t0.Add(time.Hour))

	for _, s := range []*Session{a, b} {
		if err := fs.Save(s); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := fs.Load(a.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}

	list, err := fs.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if list[1].LastCase != "001B" || list[1].ArcKey != "SUPERPATH_LOW" {
		t.Errorf("unexpected summary %+v", list[1])
	}

	if err := fs.Remove(a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := fs.Load(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := fs.Remove(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestFileStore_ListMissingDir(t *testing.T) {
	list, err := NewFileStore(t.TempDir() + "/nope").List()
	if err != nil || len(list) != 0 {
		t.Errorf("missing dir lists empty: %v %v", list, err)
	}
}

func TestFileStore_KeepsAnnotationPresence(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	s := New(t0)
	s.Chapters = []model.Chapter{
		{Chapter: 1, Subchapter: 1, Narrative: "Jack agreed to meet the informant at the warehouse.",
			Threads: []model.ThreadAnnotation{}},
		{Chapter: 1, Subchapter: 2, Narrative: "Sarah promised to check the harbor logs."},
	}
	if err := fs.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := fs.Load(s.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Chapters[0].Structured() {
		t.Error("annotated chapter with no threads reloaded as unannotated")
	}
	if got.Chapters[1].Structured() {
		t.Error("unannotated chapter reloaded as annotated")
	}

	tr := thread.NewTracker(thread.NewCanonicalizer(), nil)
	before := tr.Refresh(s.Chapters, thread.Archive{}, 2)
	after := tr.Refresh(got.Chapters, got.Archive, 2)
	if diff := cmp.Diff(before.Active, after.Active); diff != "" {
		t.Errorf("thread state changed across save/load (-before +after):\n%s", diff)
	}
	for _, th := range after.Active {
		if th.Type == model.ThreadAppointment {
			t.Errorf("fallback ran on an annotated chapter: %+v", th)
		}
	}
}
