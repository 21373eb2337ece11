package thread

import (
	"testing"

	"github.com/jpearleverett/story-continuity/internal/model"
)

func TestNormalizedID(t *testing.T) {
	c := NewCanonicalizer()
	tests := []struct {
		name       string
		typ        model.ThreadType
		desc       string
		characters []string
		want       string
	}{
		{"docks at midnight", model.ThreadAppointment, "meet contact at the docks at midnight", nil, "appointment|meet|docks|night"},
		{"docks paraphrase", model.ThreadAppointment, "meeting the contact down at the docks tonight", nil, "appointment|meet|docks|night"},
		{"protagonists sorted", model.ThreadPromise, "Sarah promised Jack she would visit the warehouse", nil, "promise|jack+sarah|meet|warehouse"},
		{"surname and characters", model.ThreadThreat, "Someone is hunting Halloway near the pier", []string{"Sarah Reeves"}, "threat|jack+sarah|find|docks"},
		{"synonym location", model.ThreadAppointment, "rendezvous at the wharf at dawn", nil, "appointment|meet|docks|morning"},
		{"tomorrow wins over night", model.ThreadAppointment, "see Silas tomorrow night", nil, "appointment|meet|tomorrow"},
		{"slug fallback", model.ThreadRevelation, "The ledger's missing pages", nil, "revelation|ledger-missing-pages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.NormalizedID(model.Thread{Type: tt.typ, Description: tt.desc, Characters: tt.characters})
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIdentify_StemsVerbs(t *testing.T) {
	c := NewCanonicalizer()
	tests := []struct {
		desc string
		want string
	}{
		{"tracking the shooter", "find"},
		{"examined the body", "investigate"},
		{"hiding from the mob", "escape"},
		{"Jack meets the informant", "meet"},
		{"searches the records", "find"},
	}
	for _, tt := range tests {
		id := c.Identify(model.ThreadInvestigation, tt.desc, nil)
		if id.Action != tt.want {
			t.Errorf("%q: expected action %q, got %q", tt.desc, tt.want, id.Action)
		}
	}
}

func TestIdentify_HighestPriorityAction(t *testing.T) {
	c := NewCanonicalizer()
	id := c.Identify(model.ThreadAppointment, "call Sarah and then meet her at the diner", nil)
	if id.Action != "meet" {
		t.Errorf("expected meet to outrank call, got %q", id.Action)
	}
	if len(id.Actions) != 2 {
		t.Errorf("expected both actions recorded, got %v", id.Actions)
	}
}

func TestSimilarity(t *testing.T) {
	c := NewCanonicalizer()
	a := model.Thread{Type: model.ThreadAppointment, Description: "Jack meets Silas at the docks"}
	b := model.Thread{Type: model.ThreadAppointment, Description: "meet at the pier"}

	// b has no participants, so that category is left out.
	if got := c.Similarity(a, b); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := c.Similarity(a, a); got != 1 {
		t.Errorf("expected self-similarity 1, got %v", got)
	}

	other := model.Thread{Type: model.ThreadThreat, Description: "ledger pages"}
	plain := model.Thread{Type: model.ThreadAppointment, Description: "ledger pages"}
	if got := c.Similarity(other, plain); got != 0 {
		t.Errorf("expected 0 for different type and no other data, got %v", got)
	}

	if got := c.Similarity(plain, plain); got != WeightType {
		t.Errorf("expected type-only similarity %v, got %v", WeightType, got)
	}

	d := model.Thread{Type: model.ThreadAppointment, Description: "Sarah calls the precinct"}
	got := c.Similarity(a, d)
	// type matches, participants disjoint, actions disjoint, locations disjoint.
	want := WeightType / (WeightType + WeightParticipants + WeightActions + WeightLocation)
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected %v, got %v", want, got)
	}
}
