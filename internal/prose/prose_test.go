package prose

import (
	"strings"
	"testing"
)

func TestSentences_EmptyInput(t *testing.T) {
	if got := Sentences("   "); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSentences_SplitsOnPunctuation(t *testing.T) {
	text := `Rain hammered the glass. Sarah didn't look up! "Are you coming?" she asked.`
	got := Sentences(text)
	if len(got) != 4 {
		t.Fatalf("expected 4 sentences, got %d: %v", len(got), got)
	}
	if got[2].Text != `"Are you coming?"` {
		t.Errorf("unexpected third sentence %q", got[2].Text)
	}
}

func TestSentences_PassagesAndHeadings(t *testing.T) {
	text := "# Case 003A\n\nJack agreed to meet Silas.\nHe lit a cigarette.\n\nThe docks were empty."
	got := Sentences(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 sentences, got %d", len(got))
	}
	if got[0].Passage != 0 || got[2].Passage != 1 {
		t.Errorf("unexpected passage numbering: %+v", got)
	}
	for _, s := range got {
		if strings.Contains(s.Text, "#") {
			t.Errorf("heading leaked into sentence %q", s.Text)
		}
	}
	if got[2].StartLine != 6 {
		t.Errorf("expected third sentence on line 6, got %d", got[2].StartLine)
	}
}

func TestSentences_DecimalIsNotABoundary(t *testing.T) {
	got := Sentences("The safe held 2.5 million dollars. Nobody asked why.")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(got), got)
	}
}

func TestExcerpt_TrimsToWordBoundaries(t *testing.T) {
	s := "Jack agreed to meet the informant at the docks before midnight tonight."
	start := strings.Index(s, "eed to") // mid-word
	got := Excerpt(s, start, 30)
	if !strings.HasPrefix(got, "agreed") {
		t.Errorf("expected excerpt to start on a word, got %q", got)
	}
	if len(got) > 30 {
		t.Errorf("expected at most 30 bytes, got %d", len(got))
	}
	if strings.HasSuffix(got, " ") || strings.HasSuffix(got, "th") {
		t.Errorf("expected excerpt to end on a whole word, got %q", got)
	}
}

func TestExcerpt_OutOfRange(t *testing.T) {
	if got := Excerpt("short", 10, 20); got != "" {
		t.Errorf("expected empty excerpt, got %q", got)
	}
}
