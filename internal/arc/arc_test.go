package arc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jpearleverett/story-continuity/internal/model"
	"github.com/jpearleverett/story-continuity/internal/store"
)

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func choices(keys string) []model.Choice {
	var out []model.Choice
	ch, sub := 1, 1
	for _, k := range keys {
		out = append(out, model.Choice{CaseNumber: model.CaseNumber(ch, sub), OptionKey: string(k)})
		ch, sub = model.NextCase(ch, sub)
	}
	return out
}

type memStore struct {
	arcs   map[string]model.StoryArc
	links  []string
	getErr error
	putErr error
}

func newMemStore() *memStore { return &memStore{arcs: map[string]model.StoryArc{}} }

func (m *memStore) GetArc(_ context.Context, ns, key string) (*model.ArcRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.arcs[ns+"/"+key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &model.ArcRecord{NS: ns, Key: key, Version: 1, Arc: a}, nil
}

func (m *memStore) PutArc(_ context.Context, ns string, a *model.StoryArc) (*model.ArcRecord, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.arcs[ns+"/"+a.Key] = *a.Clone()
	return &model.ArcRecord{NS: ns, Key: a.Key, Version: 1, Arc: *a}, nil
}

func (m *memStore) LinkArcs(_ context.Context, ns, from, to, rel string) error {
	m.links = append(m.links, ns+":"+from+"->"+to+":"+rel)
	return nil
}

func TestBuildProfile(t *testing.T) {
	tests := []struct {
		keys string
		want model.RiskTolerance
		agg  int
		meth int
	}{
		{"", model.RiskModerate, 0, 0},
		{"AA", model.RiskLow, 0, 20},
		{"BBA", model.RiskModerate, 20, 10},
		{"BBC", model.RiskHigh, 25, 5},
	}
	for _, tt := range tests {
		p := BuildProfile(choices(tt.keys))
		if p.RiskTolerance != tt.want || p.Scores.Aggressive != tt.agg || p.Scores.Methodical != tt.meth {
			t.Errorf("%q: expected %s %d/%d, got %+v", tt.keys, tt.want, tt.agg, tt.meth, p)
		}
		if p.ChoiceCount != len(tt.keys) {
			t.Errorf("%q: expected %d choices, got %d", tt.keys, len(tt.keys), p.ChoiceCount)
		}
	}
}

func TestBuildProfile_ExplicitWeights(t *testing.T) {
	p := BuildProfile([]model.Choice{{CaseNumber: "001A", OptionKey: "A", Weights: &model.ScoreDelta{Aggressive: 30}}})
	if p.Scores.Aggressive != 30 || p.RiskTolerance != model.RiskHigh {
		t.Errorf("expected explicit weights to apply, got %+v", p)
	}
}

func TestSynthesize(t *testing.T) {
	p := BuildProfile(choices("AAA"))
	a := Synthesize(p, fixedNow)
	if a.Key != "SUPERPATH_LOW" {
		t.Errorf("expected SUPERPATH_LOW, got %s", a.Key)
	}
	if len(a.ChapterArcs) != TotalChapters {
		t.Fatalf("expected %d chapters, got %d", TotalChapters, len(a.ChapterArcs))
	}
	wantTension := []int{3, 4, 5, 5, 6, 7, 7, 8, 8, 9, 10, 6}
	for i, ca := range a.ChapterArcs {
		if ca.Chapter != i+1 || ca.TensionLevel != wantTension[i] {
			t.Errorf("chapter %d: unexpected arc %+v", i+1, ca)
		}
		if !strings.HasSuffix(ca.PrimaryFocus, approaches[model.RiskLow]) {
			t.Errorf("chapter %d: expected low-risk approach in %q", i+1, ca.PrimaryFocus)
		}
	}
	if diff := cmp.Diff(a, Synthesize(p, fixedNow)); diff != "" {
		t.Errorf("synthesis is not deterministic:\n%s", diff)
	}
}

func TestDetect_DriftScenario(t *testing.T) {
	snap := model.PersonalitySnapshot{
		RiskTolerance:         RiskFor(model.Scores{Aggressive: 10, Methodical: 40}),
		Scores:                model.Scores{Aggressive: 10, Methodical: 40},
		ChoiceCountAtSnapshot: 5,
	}
	now := model.PersonalityProfile{
		Scores:        model.Scores{Aggressive: 50, Methodical: 42},
		RiskTolerance: RiskFor(model.Scores{Aggressive: 50, Methodical: 42}),
		ChoiceCount:   8,
	}
	d := Detect(snap, now, DefaultDriftConfig())
	if d.Magnitude != 38 {
		t.Errorf("expected magnitude 38, got %d", d.Magnitude)
	}
	if !d.CategoryChanged {
		t.Error("expected category change")
	}
	if !d.ShouldAdapt {
		t.Error("expected shouldAdapt")
	}
	if d.Direction != 1 {
		t.Errorf("expected drift toward risk, got %d", d.Direction)
	}
}

func TestDetect_Thresholds(t *testing.T) {
	snap := model.PersonalitySnapshot{
		RiskTolerance:         model.RiskModerate,
		Scores:                model.Scores{Aggressive: 100, Methodical: 119},
		ChoiceCountAtSnapshot: 2,
	}
	tests := []struct {
		name   string
		scores model.Scores
		count  int
		want   bool
	}{
		{"single outlier choice", model.Scores{Aggressive: 140, Methodical: 119}, 3, false},
		{"small shift", model.Scores{Aggressive: 115, Methodical: 119}, 5, false},
		{"exactly threshold same class", model.Scores{Aggressive: 125, Methodical: 119}, 5, false},
		{"above threshold same class", model.Scores{Aggressive: 126, Methodical: 119}, 5, true},
		{"class change", model.Scores{Aggressive: 100, Methodical: 140}, 4, true},
	}
	for _, tt := range tests {
		p := model.PersonalityProfile{Scores: tt.scores, RiskTolerance: RiskFor(tt.scores), ChoiceCount: tt.count}
		if got := Detect(snap, p, DefaultDriftConfig()).ShouldAdapt; got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestAdapt_PlayedChaptersUntouched(t *testing.T) {
	before := Synthesize(BuildProfile(choices("AAAAA")), fixedNow)
	original := before.Clone()
	p := BuildProfile(choices("AAAAABBBBBBB"))
	d := Detect(before.PersonalitySnapshot, p, DefaultDriftConfig())

	for current := 1; current <= TotalChapters+1; current++ {
		after := Adapt(before, p, d, current, fixedNow)
		if diff := cmp.Diff(before.ChapterArcs[:current-1], after.ChapterArcs[:current-1]); diff != "" {
			t.Errorf("adapting at chapter %d changed played chapters:\n%s", current, diff)
		}
		if *after.AdaptedFromChapter != current {
			t.Errorf("expected adaptedFromChapter %d, got %d", current, *after.AdaptedFromChapter)
		}
	}
	if diff := cmp.Diff(original, before); diff != "" {
		t.Errorf("Adapt modified its input:\n%s", diff)
	}
}

func TestAdapt_RewritesFuture(t *testing.T) {
	before := Synthesize(BuildProfile(choices("AAAAA")), fixedNow)
	p := BuildProfile(choices("AAAAABBBBBBB"))
	d := Detect(before.PersonalitySnapshot, p, DefaultDriftConfig())
	after := Adapt(before, p, d, 5, fixedNow)

	if after.Key != "SUPERPATH_HIGH" || after.PreviousKey != "SUPERPATH_LOW" {
		t.Errorf("unexpected keys %s <- %s", after.Key, after.PreviousKey)
	}
	if after.PersonalitySnapshot.ChoiceCountAtSnapshot != 12 {
		t.Errorf("expected snapshot updated, got %+v", after.PersonalitySnapshot)
	}
	ch5, _ := after.ChapterArc(5)
	if ch5.TensionLevel != 7 {
		t.Errorf("expected tension 7, got %d", ch5.TensionLevel)
	}
	if !strings.Contains(ch5.PrimaryFocus, "act decisively and force the issue before moving") {
		t.Errorf("expected rewritten focus, got %q", ch5.PrimaryFocus)
	}
	ch7, _ := after.ChapterArc(7)
	if ch7.EmotionalAnchor != "A bold search of a dead friend's storage unit" {
		t.Errorf("unexpected anchor %q", ch7.EmotionalAnchor)
	}
	ch11, _ := after.ChapterArc(11)
	if ch11.TensionLevel != 10 {
		t.Errorf("expected tension clamped at 10, got %d", ch11.TensionLevel)
	}
}

func TestAdapt_TowardCaution(t *testing.T) {
	before := Synthesize(BuildProfile(choices("BBBBB")), fixedNow)
	p := BuildProfile(choices("BBBBBAAAAAAA"))
	d := Detect(before.PersonalitySnapshot, p, DefaultDriftConfig())
	after := Adapt(before, p, d, 1, fixedNow)

	ch1, _ := after.ChapterArc(1)
	if ch1.TensionLevel != 2 {
		t.Errorf("expected tension 2, got %d", ch1.TensionLevel)
	}
	if !strings.HasSuffix(ch1.PrimaryFocus, "investigate carefully before the trail goes cold") {
		t.Errorf("unexpected focus %q", ch1.PrimaryFocus)
	}
}

func TestPlanner_SynthesizesWithoutStore(t *testing.T) {
	p := NewPlanner(nil, DefaultDriftConfig(), nil)
	p.Now = func() time.Time { return fixedNow }
	res := p.Plan(context.Background(), "s1", nil, nil, 1)
	if res.Source != SourceSynthesized || !res.NeedsPersist {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Arc.Key != "SUPERPATH_MODERATE" {
		t.Errorf("expected moderate key, got %s", res.Arc.Key)
	}
	if err := p.Persist(context.Background(), "s1", res); err != nil {
		t.Errorf("persist without store should be a no-op, got %v", err)
	}
}

func TestPlanner_ResolutionOrder(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	p := NewPlanner(st, DefaultDriftConfig(), nil)
	p.Now = func() time.Time { return fixedNow }
	hist := choices("AAA")

	first := p.Plan(ctx, "s1", nil, hist, 2)
	if first.Source != SourceSynthesized {
		t.Fatalf("expected synthesized, got %s", first.Source)
	}
	if err := p.Persist(ctx, "s1", first); err != nil {
		t.Fatalf("persist: %v", err)
	}

	fromStore := p.Plan(ctx, "s1", nil, hist, 2)
	if fromStore.Source != SourceStore || fromStore.NeedsPersist {
		t.Errorf("expected store hit, got %+v", fromStore)
	}

	fromMemory := p.Plan(ctx, "s1", first.Arc, hist, 2)
	if fromMemory.Source != SourceMemory || fromMemory.Arc != first.Arc {
		t.Errorf("expected in-memory arc, got %s", fromMemory.Source)
	}

	other := p.Plan(ctx, "s2", nil, hist, 2)
	if other.Source != SourceSynthesized {
		t.Errorf("expected sessions to be isolated, got %s", other.Source)
	}
}

func TestPlanner_StoreErrorDegrades(t *testing.T) {
	st := newMemStore()
	st.getErr = errors.New("disk on fire")
	p := NewPlanner(st, DefaultDriftConfig(), nil)
	res := p.Plan(context.Background(), "s1", nil, choices("B"), 1)
	if res.Source != SourceSynthesized || res.Arc == nil {
		t.Errorf("expected synthesized fallback, got %+v", res)
	}
}

func TestPlanner_AdaptsOnDrift(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	p := NewPlanner(st, DefaultDriftConfig(), nil)
	p.Now = func() time.Time { return fixedNow }

	base := p.Plan(ctx, "s1", nil, choices("AAAAA"), 2)
	res := p.Plan(ctx, "s1", base.Arc, choices("AAAAABBBBB"), 4)
	if res.Source != SourceAdapted || !res.NeedsPersist {
		t.Fatalf("expected adaptation, got %+v", res)
	}
	if diff := cmp.Diff(base.Arc.ChapterArcs[:3], res.Arc.ChapterArcs[:3]); diff != "" {
		t.Errorf("played chapters changed:\n%s", diff)
	}
	if err := p.Persist(ctx, "s1", res); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if _, ok := st.arcs["s1/SUPERPATH_MODERATE"]; !ok {
		t.Error("expected adapted arc persisted under its new key")
	}
	if len(st.links) != 1 || st.links[0] != "s1:SUPERPATH_LOW->SUPERPATH_MODERATE:adapted_to" {
		t.Errorf("unexpected lineage %v", st.links)
	}
}

func TestPlanner_KeyChangeWithoutDriftReplans(t *testing.T) {
	p := NewPlanner(nil, DefaultDriftConfig(), nil)
	p.Now = func() time.Time { return fixedNow }
	base := p.Plan(context.Background(), "s1", nil, choices("AA"), 1)
	// One more choice flips the class but is not enough evidence to adapt.
	res := p.Plan(context.Background(), "s1", base.Arc, choices("AAB"), 2)
	if res.Source != SourceSynthesized || res.Arc.Key != "SUPERPATH_MODERATE" || !res.NeedsPersist {
		t.Errorf("expected a fresh moderate arc, got %s %s", res.Source, res.Arc.Key)
	}
	if res.Drift != nil {
		t.Errorf("a synthesized arc carries no drift, got %+v", res.Drift)
	}
}

func TestPlanner_KeyChangeUsesPersistedArc(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	p := NewPlanner(st, DefaultDriftConfig(), nil)
	p.Now = func() time.Time { return fixedNow }

	bold := 30
	risky := []model.Choice{{CaseNumber: "001A", OptionKey: "B", Weights: &model.ScoreDelta{Aggressive: bold}}}
	high := p.Plan(ctx, "s1", nil, risky, 2)
	if err := p.Persist(ctx, "s1", high); err != nil {
		t.Fatalf("persist: %v", err)
	}

	moderate := Synthesize(BuildProfile(nil), fixedNow)
	res := p.Plan(ctx, "s1", moderate, risky, 2)
	if res.Source != SourceStore || res.Arc.Key != "SUPERPATH_HIGH" {
		t.Errorf("expected the persisted high arc, got %s %s", res.Source, res.Arc.Key)
	}

	same := p.Plan(ctx, "s1", moderate, nil, 2)
	if same.Source != SourceMemory || same.Arc != moderate {
		t.Errorf("matching key should keep the in-memory arc, got %s", same.Source)
	}
}

func TestPlanner_PersistFailureKeepsArc(t *testing.T) {
	st := newMemStore()
	st.putErr = errors.New("read-only")
	p := NewPlanner(st, DefaultDriftConfig(), nil)
	res := p.Plan(context.Background(), "s1", nil, nil, 1)
	if err := p.Persist(context.Background(), "s1", res); err == nil {
		t.Error("expected persist error")
	}
	if res.Arc == nil || len(res.Arc.ChapterArcs) != TotalChapters {
		t.Error("expected the synthesized arc to remain usable")
	}
}

func TestBeatAndCategories(t *testing.T) {
	if BeatFor(3) != BeatChase || BeatFor(0) != BeatColdOpen || BeatFor(99) != BeatDenouement {
		t.Errorf("unexpected beats %s %s %s", BeatFor(3), BeatFor(0), BeatFor(99))
	}
	cats := ExampleCategories(BeatChase)
	cats[0] = "mutated"
	if ExampleCategories(BeatChase)[0] != "action" {
		t.Error("ExampleCategories must return a copy")
	}
}
