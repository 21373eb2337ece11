package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/jpearleverett/story-continuity/internal/arc"
	"github.com/jpearleverett/story-continuity/internal/cachekey"
	"github.com/jpearleverett/story-continuity/internal/config"
	"github.com/jpearleverett/story-continuity/internal/model"
	"github.com/jpearleverett/story-continuity/internal/prompt"
	"github.com/jpearleverett/story-continuity/internal/provider"
	"github.com/jpearleverett/story-continuity/internal/thread"
)

// Engine advances sessions: it rebuilds thread state, plans the arc, derives
// the cache key, builds the prompt and calls the generator.
type Engine struct {
	cfg     *config.Config
	tracker *thread.Tracker
	planner *arc.Planner
	gen     provider.Generator
	logger  *zap.Logger
	gate    *semaphore.Weighted

	// Now is the engine clock.
	Now func() time.Time
}

// NewEngine wires an engine from configuration. st may be nil for in-memory arcs.
func NewEngine(cfg *config.Config, st arc.ArcStore, gen provider.Generator, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tr := thread.NewTracker(thread.NewCanonicalizer(), logger.Named("threads"))
	if cfg.Threads.RecentLimit > 0 {
		tr.Extractor.Recent = cfg.Threads.RecentLimit
	}
	if cfg.Threads.SimilarityThreshold > 0 {
		tr.Dedup.Threshold = cfg.Threads.SimilarityThreshold
	}
	if cfg.Threads.MaxActive > 0 {
		tr.Capper.MaxActive = cfg.Threads.MaxActive
	}
	if cfg.Threads.NormalShare > 0 {
		tr.Capper.NormalShare = cfg.Threads.NormalShare
	}
	if cfg.Archive.Retention > 0 {
		tr.Archiver.Retention = cfg.Archive.Retention
	}
	if cfg.Archive.MaxEntries > 0 {
		tr.Archiver.MaxEntries = cfg.Archive.MaxEntries
	}
	if cfg.Archive.DescLimit > 0 {
		tr.Archiver.DescLimit = cfg.Archive.DescLimit
	}

	e := &Engine{
		cfg:     cfg,
		tracker: tr,
		planner: arc.NewPlanner(st, cfg.Arc.Drift, logger.Named("arc")),
		gen:     gen,
		logger:  logger,
		gate:    semaphore.NewWeighted(1),
		Now:     time.Now,
	}
	e.planner.Now = e.now
	return e
}

// Tracker exposes the thread pipeline.
func (e *Engine) Tracker() *thread.Tracker { return e.tracker }

// Threads rebuilds the thread state as of chapter.
func (e *Engine) Threads(s *Session, chapter int) thread.State {
	return e.tracker.Refresh(s.Chapters, s.Archive, chapter)
}

// Plan resolves the arc for chapter without persisting it.
func (e *Engine) Plan(ctx context.Context, s *Session, chapter int) arc.PlanResult {
	return e.planner.Plan(ctx, s.ID, s.Arc, s.Choices, chapter)
}

// PathFor returns the path label used for keys and chapter records: the
// session override or the profile's risk tolerance.
func PathFor(s *Session, profile model.PersonalityProfile) string {
	if s.PathOverride != "" {
		return cachekey.SanitizePath(s.PathOverride)
	}
	return cachekey.SanitizePath(string(profile.RiskTolerance))
}

// CacheKey derives the generation key for a case under the given arc.
func (e *Engine) CacheKey(s *Session, chapter, sub int, a *model.StoryArc, profile model.PersonalityProfile) string {
	beat := arc.BeatFor(chapter)
	if ca, ok := a.ChapterArc(chapter); ok && ca.BeatType != "" {
		beat = ca.BeatType
	}
	return cachekey.Derive(cachekey.Input{
		Chapter:        chapter,
		Subchapter:     sub,
		Path:           PathFor(s, profile),
		Choices:        s.Choices,
		StaticVersion:  e.cfg.Cache.StaticVersion,
		ChapterVersion: e.cfg.Cache.ChapterVersion,
		BeatCategories: arc.ExampleCategories(beat),
	})
}

// Preparation is everything computed ahead of a generation call.
type Preparation struct {
	Chapter    int            `json:"chapter"`
	Subchapter int            `json:"subchapter"`
	Path       string         `json:"path"`
	CacheKey   string         `json:"cacheKey"`
	Plan       arc.PlanResult `json:"plan"`
	Threads    thread.State   `json:"threads"`
	Prefix     prompt.Prefix  `json:"-"`
	Prompt     prompt.Result  `json:"prompt"`
}

// Prepare computes the next case's key, plan, thread state and prompt. It
// does not modify s.
func (e *Engine) Prepare(ctx context.Context, s *Session) Preparation {
	ch, sub := s.Next()
	plan := e.Plan(ctx, s, ch)
	state := e.Threads(s, ch)

	summary := ""
	if last, ok := s.Last(); ok {
		summary = last.ChapterSummary
	}
	return Preparation{
		Chapter:    ch,
		Subchapter: sub,
		Path:       PathFor(s, plan.Profile),
		CacheKey:   e.CacheKey(s, ch, sub, plan.Arc, plan.Profile),
		Plan:       plan,
		Threads:    state,
		Prefix:     prompt.StablePrefix(e.cfg.Cache.StaticVersion, e.cfg.Cache.ChapterVersion),
		Prompt: prompt.Build(prompt.Input{
			Chapter:     ch,
			Subchapter:  sub,
			Arc:         plan.Arc,
			Threads:     state,
			Choices:     s.Choices,
			LastSummary: summary,
			Budget:      e.cfg.Prompt.TokenBudget,
		}),
	}
}

// Outcome reports a committed generation.
type Outcome struct {
	Chapter   model.Chapter  `json:"chapter"`
	CacheKey  string         `json:"cacheKey"`
	Provider  string         `json:"provider"`
	ArcSource arc.Source     `json:"arcSource"`
	Drift     *arc.Drift     `json:"drift,omitempty"`
	Uncovered []model.Thread `json:"uncovered,omitempty"`
	Threads   thread.State   `json:"threads"`
}

// GenerateNext generates the next case and commits it to s. Generation for
// the engine is serialized. Every change is staged on a copy of s and
// committed only after the provider succeeds; on error s is untouched.
func (e *Engine) GenerateNext(ctx context.Context, s *Session) (*Outcome, error) {
	if e.gen == nil {
		return nil, fmt.Errorf("generate: no provider configured")
	}
	if err := e.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("generate: wait for gate: %w", err)
	}
	defer e.gate.Release(1)

	staged := s.Clone()
	prep := e.Prepare(ctx, staged)
	log := e.logger.With(zap.String("session", s.ID), zap.String("key", prep.CacheKey))

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.GetProviderTimeout())
	defer cancel()

	resp, err := e.gen.Generate(callCtx, provider.Request{
		CacheKey:   prep.CacheKey,
		PrefixID:   prep.Prefix.ID,
		System:     prep.Prefix.Text,
		Prompt:     prep.Prompt.Text,
		Chapter:    prep.Chapter,
		Subchapter: prep.Subchapter,
		PathKey:    prep.Path,
		Guidance:   prep.Prompt.Guidance,
		Mandatory:  prep.Prompt.Mandatory,
	})
	if err != nil {
		log.Warn("generation failed; nothing committed", zap.Error(err))
		return nil, fmt.Errorf("generate %s: %w", model.CaseNumber(prep.Chapter, prep.Subchapter), err)
	}

	chapter := resp.Chapter
	chapter.Chapter, chapter.Subchapter, chapter.PathKey = prep.Chapter, prep.Subchapter, prep.Path
	staged.Chapters = append(staged.Chapters, chapter)

	uncovered := e.tracker.Uncovered(prep.Prompt.Mandatory, chapter)
	for _, t := range uncovered {
		log.Warn("mandatory thread not addressed",
			zap.String("id", t.NormalizedID),
			zap.String("urgency", string(t.Urgency)),
			zap.Bool("overdue", t.Overdue(prep.Chapter)))
	}

	// The new chapter is now part of history: sweep at its chapter.
	after := e.Threads(staged, prep.Chapter)
	staged.Archive = after.Archive
	staged.Arc = prep.Plan.Arc
	staged.UpdatedAt = e.now().UTC()

	// Persistence failure is logged by the planner; the in-memory arc stands.
	_ = e.planner.Persist(ctx, s.ID, prep.Plan)

	*s = *staged
	log.Info("chapter committed",
		zap.String("case", chapter.CaseNumber()),
		zap.String("provider", resp.Provider),
		zap.Bool("cached_prefix", resp.CachedPrefix),
		zap.String("arc_source", string(prep.Plan.Source)),
		zap.Int("active_threads", len(after.Active)),
		zap.Int("uncovered", len(uncovered)))

	return &Outcome{
		Chapter:   chapter,
		CacheKey:  prep.CacheKey,
		Provider:  resp.Provider,
		ArcSource: prep.Plan.Source,
		Drift:     prep.Plan.Drift,
		Uncovered: uncovered,
		Threads:   after,
	}, nil
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Persist stores a plan for s outside of a generation call.
func (e *Engine) Persist(ctx context.Context, s *Session, res arc.PlanResult) error {
	return e.planner.Persist(ctx, s.ID, res)
}
