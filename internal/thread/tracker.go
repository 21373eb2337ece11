package thread

import (
	"go.uber.org/zap"

	"github.com/jpearleverett/story-continuity/internal/model"
)

// State is the thread picture at a point in the story.
type State struct {
	Active       []model.Thread  `json:"active"`
	Deferred     []model.Thread  `json:"deferred,omitempty"`
	AutoResolved []model.Thread  `json:"autoResolved,omitempty"`
	Resolved     map[string]bool `json:"resolved"`
	Archive      Archive         `json:"archive"`
}

// Mandatory returns the active threads that must be addressed next.
func (s State) Mandatory(currentChapter int) []model.Thread {
	var out []model.Thread
	for _, t := range Rank(s.Active, currentChapter) {
		if Mandatory(t, currentChapter) {
			out = append(out, t)
		}
	}
	return out
}

// Optional returns the active threads that are not mandatory.
func (s State) Optional(currentChapter int) []model.Thread {
	var out []model.Thread
	for _, t := range Rank(s.Active, currentChapter) {
		if !Mandatory(t, currentChapter) {
			out = append(out, t)
		}
	}
	return out
}

// Tracker runs the full thread pipeline: extract, dedupe, cap, archive.
type Tracker struct {
	Extractor *Extractor
	Dedup     *Deduplicator
	Capper    *Capper
	Archiver  *Archiver
	Logger    *zap.Logger
}

// NewTracker wires a tracker around canon with default limits.
func NewTracker(canon Canonicalizer, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		Extractor: NewExtractor(canon, logger),
		Dedup:     NewDeduplicator(canon),
		Capper:    NewCapper(),
		Archiver:  NewArchiver(),
		Logger:    logger,
	}
}

// Refresh rebuilds the thread state by replaying chapters.
func (tr *Tracker) Refresh(chapters []model.Chapter, prev Archive, currentChapter int) State {
	ex := tr.Extractor.Extract(chapters)

	var active, closed []model.Thread
	for _, t := range ex.Threads {
		if t.Active() {
			active = append(active, t)
		} else {
			closed = append(closed, t)
		}
	}

	// Threads the cap closed earlier stay closed, like any terminal status.
	autoClosed := prev.ClosedSet()
	var open []model.Thread
	for _, t := range tr.Dedup.Dedupe(active) {
		if autoClosed[t.NormalizedID] {
			ex.Resolved[t.NormalizedID] = true
			continue
		}
		open = append(open, t)
	}

	capped := tr.Capper.Cap(open, currentChapter)
	for _, t := range capped.AutoResolved {
		tr.Logger.Info("thread auto-closed by cap",
			zap.String("id", t.NormalizedID),
			zap.String("type", string(t.Type)),
			zap.Int("chapter", currentChapter))
	}
	if len(capped.Deferred) > 0 {
		tr.Logger.Debug("threads deferred by cap", zap.Int("count", len(capped.Deferred)))
	}

	closed = append(closed, capped.AutoResolved...)
	_, archive := tr.Archiver.Sweep(closed, prev, currentChapter)

	return State{
		Active:       capped.Active,
		Deferred:     capped.Deferred,
		AutoResolved: capped.AutoResolved,
		Resolved:     ex.Resolved,
		Archive:      archive,
	}
}
