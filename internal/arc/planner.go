package arc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jpearleverett/story-continuity/internal/model"
	"github.com/jpearleverett/story-continuity/internal/store"
)

// RelAdaptedTo links an arc key to the key it was adapted into.
const RelAdaptedTo = "adapted_to"

// Source records how a plan was obtained.
type Source string

const (
	SourceMemory      Source = "memory"
	SourceStore       Source = "store"
	SourceSynthesized Source = "synthesized"
	SourceAdapted     Source = "adapted"
)

// ArcStore persists arcs per session namespace.
type ArcStore interface {
	GetArc(ctx context.Context, ns, key string) (*model.ArcRecord, error)
	PutArc(ctx context.Context, ns string, a *model.StoryArc) (*model.ArcRecord, error)
	LinkArcs(ctx context.Context, ns, fromKey, toKey, rel string) error
}

// PlanResult is the arc chosen for the next chapter.
type PlanResult struct {
	Arc     *model.StoryArc          `json:"arc"`
	Source  Source                   `json:"source"`
	Profile model.PersonalityProfile `json:"profile"`
	Drift   *Drift                   `json:"drift,omitempty"`
	// NeedsPersist is set when the arc is new or adapted and not yet stored.
	NeedsPersist bool `json:"needsPersist"`
}

// Planner resolves the story arc for a session.
type Planner struct {
	Store  ArcStore
	Drift  DriftConfig
	Logger *zap.Logger
	Now    func() time.Time
}

// NewPlanner creates a planner. st may be nil, in which case arcs live only in memory.
func NewPlanner(st ArcStore, cfg DriftConfig, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{Store: st, Drift: cfg, Logger: logger, Now: time.Now}
}

// Plan returns the arc for the given choice history. Resolution order: the
// in-memory arc when its key matches the profile, then the persisted arc for
// the behavioral key, then a freshly synthesized one. Drift against the
// resolved arc's snapshot triggers an adaptation of chapters at or after
// currentChapter. Plan never persists; call Persist once the result should be
// committed.
func (p *Planner) Plan(ctx context.Context, ns string, current *model.StoryArc, choices []model.Choice, currentChapter int) PlanResult {
	profile := BuildProfile(choices)
	key := KeyFor(profile.RiskTolerance)

	if current != nil {
		res := p.checkDrift(current, profile, currentChapter, SourceMemory)
		if res.Source == SourceAdapted || current.Key == key {
			return res
		}
		p.Logger.Debug("in-memory arc key differs from profile",
			zap.String("ns", ns), zap.String("arc", current.Key), zap.String("key", key))
	}

	if p.Store != nil {
		rec, err := p.Store.GetArc(ctx, ns, key)
		switch {
		case err == nil:
			return p.checkDrift(&rec.Arc, profile, currentChapter, SourceStore)
		case errors.Is(err, store.ErrNotFound):
			p.Logger.Debug("no persisted arc", zap.String("ns", ns), zap.String("key", key))
		default:
			p.Logger.Warn("load arc failed; synthesizing", zap.String("ns", ns),
				zap.String("key", key), zap.Error(err))
		}
	}

	return PlanResult{
		Arc:          Synthesize(profile, p.now()),
		Source:       SourceSynthesized,
		Profile:      profile,
		NeedsPersist: true,
	}
}

func (p *Planner) checkDrift(a *model.StoryArc, profile model.PersonalityProfile, currentChapter int, src Source) PlanResult {
	d := Detect(a.PersonalitySnapshot, profile, p.Drift)
	if !d.ShouldAdapt {
		return PlanResult{Arc: a, Source: src, Profile: profile, Drift: &d}
	}
	adapted := Adapt(a, profile, d, currentChapter, p.now())
	p.Logger.Info("arc adapted",
		zap.String("from", adapted.PreviousKey),
		zap.String("to", adapted.Key),
		zap.Int("magnitude", d.Magnitude),
		zap.Bool("category_changed", d.CategoryChanged),
		zap.Int("from_chapter", currentChapter))
	return PlanResult{Arc: adapted, Source: SourceAdapted, Profile: profile, Drift: &d, NeedsPersist: true}
}

// Persist stores a plan that needs it and records adaptation lineage. Failures
// are logged and returned; the in-memory arc remains usable either way.
func (p *Planner) Persist(ctx context.Context, ns string, res PlanResult) error {
	if !res.NeedsPersist || res.Arc == nil || p.Store == nil {
		return nil
	}
	if _, err := p.Store.PutArc(ctx, ns, res.Arc); err != nil {
		p.Logger.Warn("persist arc failed", zap.String("ns", ns),
			zap.String("key", res.Arc.Key), zap.Error(err))
		return fmt.Errorf("persist arc: %w", err)
	}
	if res.Source == SourceAdapted && res.Arc.PreviousKey != "" && res.Arc.PreviousKey != res.Arc.Key {
		if err := p.Store.LinkArcs(ctx, ns, res.Arc.PreviousKey, res.Arc.Key, RelAdaptedTo); err != nil {
			p.Logger.Warn("record arc lineage failed", zap.String("ns", ns), zap.Error(err))
			return fmt.Errorf("link arcs: %w", err)
		}
	}
	return nil
}

func (p *Planner) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Synthesize builds an arc from the static chapter tables and the profile's
// risk theme. The result depends only on the profile and now.
func Synthesize(profile model.PersonalityProfile, now time.Time) *model.StoryArc {
	approach := approaches[profile.RiskTolerance]
	if approach == "" {
		approach = approaches[model.RiskModerate]
	}
	a := &model.StoryArc{
		Key:                 KeyFor(profile.RiskTolerance),
		Theme:               Theme(profile.RiskTolerance),
		PersonalitySnapshot: profile.Snapshot(),
		CreatedAt:           now.UTC(),
	}
	for ch := 1; ch <= TotalChapters; ch++ {
		r := ruleFor(ch)
		a.ChapterArcs = append(a.ChapterArcs, model.ChapterArc{
			Chapter:         ch,
			Phase:           r.phase,
			BeatType:        r.beat,
			TensionLevel:    r.tension,
			PrimaryFocus:    r.focus + "; " + approach,
			EndingHook:      r.hook,
			PersonalStakes:  r.stakes,
			EmotionalAnchor: r.anchor,
		})
	}
	return a
}
