package thread

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jpearleverett/story-continuity/internal/model"
)

const (
	DefaultArchiveRetention   = 6
	DefaultArchiveMaxEntries  = 30
	DefaultArchiveDescLimit   = 80
	MinArchiveDescLimit       = 4
	archiveMaxParticipants    = 3
	archiveTruncationEllipsis = "..."
)

// ArchivedThread is a compressed resolved or failed thread kept for callbacks.
type ArchivedThread struct {
	Type            model.ThreadType   `json:"type"`
	Description     string             `json:"description"`
	Status          model.ThreadStatus `json:"status"`
	Characters      []string           `json:"characters,omitempty"`
	OriginChapter   int                `json:"originChapter"`
	ResolvedChapter int                `json:"resolvedChapter"`
	AutoClosed      bool               `json:"autoClosed,omitempty"`
}

func (a ArchivedThread) key() string {
	return string(a.Type) + ":" + strings.ToLower(a.Description)
}

// Archive is the bounded history of closed threads, oldest first. Closed
// lists the normalized ids of threads auto-closed by the cap; it is never
// trimmed, so those threads stay closed after their entries age out.
type Archive struct {
	Entries []ArchivedThread `json:"entries"`
	Closed  []string         `json:"closed,omitempty"`
}

// ClosedSet returns the auto-closed ids as a set.
func (a Archive) ClosedSet() map[string]bool {
	set := make(map[string]bool, len(a.Closed))
	for _, id := range a.Closed {
		set[id] = true
	}
	return set
}

// Archiver moves terminal threads into the archive.
type Archiver struct {
	Retention  int
	MaxEntries int
	DescLimit  int
}

// NewArchiver returns an archiver with the default bounds.
func NewArchiver() *Archiver {
	return &Archiver{
		Retention:  DefaultArchiveRetention,
		MaxEntries: DefaultArchiveMaxEntries,
		DescLimit:  DefaultArchiveDescLimit,
	}
}

// Sweep splits threads into those still active and those archived, merges the
// archived ones into prev and applies the age window and size cap. prev is not
// modified.
func (a *Archiver) Sweep(threads []model.Thread, prev Archive, currentChapter int) ([]model.Thread, Archive) {
	var active []model.Thread
	entries := append([]ArchivedThread(nil), prev.Entries...)
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.key()] = true
	}

	closedIDs := prev.ClosedSet()
	closed := append([]string(nil), prev.Closed...)

	for _, t := range threads {
		if !t.Status.Terminal() {
			active = append(active, t)
			continue
		}
		if t.AutoClosed && t.NormalizedID != "" && !closedIDs[t.NormalizedID] {
			closedIDs[t.NormalizedID] = true
			closed = append(closed, t.NormalizedID)
		}
		e := a.compress(t, currentChapter)
		if seen[e.key()] {
			continue
		}
		seen[e.key()] = true
		entries = append(entries, e)
	}

	retention := a.Retention
	if retention <= 0 {
		retention = DefaultArchiveRetention
	}
	kept := entries[:0:0]
	for _, e := range entries {
		if currentChapter-e.ResolvedChapter > retention {
			continue
		}
		kept = append(kept, e)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].ResolvedChapter < kept[j].ResolvedChapter })

	limit := a.MaxEntries
	if limit <= 0 {
		limit = DefaultArchiveMaxEntries
	}
	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	sort.Strings(closed)
	return active, Archive{Entries: kept, Closed: closed}
}

func (a *Archiver) compress(t model.Thread, currentChapter int) ArchivedThread {
	resolved := currentChapter
	if t.ResolvedChapter != nil {
		resolved = *t.ResolvedChapter
	}
	chars := t.Characters
	if len(chars) > archiveMaxParticipants {
		chars = chars[:archiveMaxParticipants]
	}
	return ArchivedThread{
		Type:            t.Type,
		Description:     truncate(t.Description, a.DescLimit),
		Status:          t.Status,
		Characters:      append([]string(nil), chars...),
		OriginChapter:   t.OriginChapter,
		ResolvedChapter: resolved,
		AutoClosed:      t.AutoClosed,
	}
}

// truncate cuts s to at most limit bytes on a word boundary, or on a
// character boundary when a single word is longer than the limit.
func truncate(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultArchiveDescLimit
	}
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	if limit <= len(archiveTruncationEllipsis) {
		return s[:runeBoundary(s, limit)]
	}
	cut := limit - len(archiveTruncationEllipsis)
	if i := strings.LastIndexByte(s[:cut+1], ' '); i > 0 {
		cut = i
	} else {
		cut = runeBoundary(s, cut)
	}
	return strings.TrimRight(s[:cut], " ,;:") + archiveTruncationEllipsis
}

// runeBoundary backs n up to the start of the UTF-8 character containing s[n].
func runeBoundary(s string, n int) int {
	for n > 0 && n < len(s) && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
