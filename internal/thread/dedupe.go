package thread

import (
	"sort"

	"github.com/jpearleverett/story-continuity/internal/model"
)

const (
	// DefaultSimilarityThreshold is the fuzzy-merge cutoff.
	DefaultSimilarityThreshold = 0.75
	// fuzzyMinThreads is the count above which the pairwise pass runs.
	fuzzyMinThreads = 3
)

// Deduplicator merges threads that share meaning.
type Deduplicator struct {
	Canon     Canonicalizer
	Threshold float64
}

// NewDeduplicator returns a deduplicator using the default threshold.
func NewDeduplicator(canon Canonicalizer) *Deduplicator {
	return &Deduplicator{Canon: canon, Threshold: DefaultSimilarityThreshold}
}

// Dedupe runs the exact pass then, when more than three threads remain, the
// fuzzy pass. The result is chronological. Running it twice is a no-op.
func (d *Deduplicator) Dedupe(threads []model.Thread) []model.Thread {
	out := d.exact(threads)
	if len(out) > fuzzyMinThreads {
		out = d.fuzzy(out)
	}
	return out
}

// exact groups by normalized id. The later record supersedes the earlier one
// and carries the highest urgency seen in its group.
func (d *Deduplicator) exact(threads []model.Thread) []model.Thread {
	groups := map[string]int{}
	var out []model.Thread
	for _, t := range threads {
		if t.NormalizedID == "" {
			t.NormalizedID = d.Canon.NormalizedID(t)
		}
		i, ok := groups[t.NormalizedID]
		if !ok {
			groups[t.NormalizedID] = len(out)
			out = append(out, t)
			continue
		}
		prev := out[i]
		winner, other := t, prev
		if t.Before(prev) {
			winner, other = prev, t
		}
		if other.Urgency.Rank() > winner.Urgency.Rank() {
			winner.Urgency = other.Urgency
		}
		if winner.DueChapter == nil && other.DueChapter != nil {
			due := *other.DueChapter
			winner.DueChapter = &due
		}
		out[i] = winner
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// fuzzy drops the lower-urgency member of every pair scoring at or above the
// threshold. Equal urgency keeps the one encountered first.
func (d *Deduplicator) fuzzy(threads []model.Thread) []model.Thread {
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	dropped := make([]bool, len(threads))
	for i := 0; i < len(threads); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(threads); j++ {
			if dropped[j] {
				continue
			}
			if d.Canon.Similarity(threads[i], threads[j]) < threshold {
				continue
			}
			if threads[j].Urgency.Rank() > threads[i].Urgency.Rank() {
				dropped[i] = true
				break
			}
			dropped[j] = true
		}
	}
	out := make([]model.Thread, 0, len(threads))
	for i, t := range threads {
		if !dropped[i] {
			out = append(out, t)
		}
	}
	return out
}
