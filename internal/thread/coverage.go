package thread

import "github.com/jpearleverett/story-continuity/internal/model"

// Uncovered returns the mandatory threads that a generated chapter neither
// advances nor closes. A thread counts as covered when the chapter reports a
// thread with the same normalized id or one similar enough to merge with it.
func (tr *Tracker) Uncovered(mandatory []model.Thread, ch model.Chapter) []model.Thread {
	if len(mandatory) == 0 {
		return nil
	}
	reported := tr.Extractor.Extract([]model.Chapter{ch}).Threads

	var out []model.Thread
	for _, m := range mandatory {
		covered := false
		for _, r := range reported {
			if r.NormalizedID == m.NormalizedID ||
				tr.Dedup.Canon.Similarity(m, r) >= tr.Dedup.Threshold {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, m)
		}
	}
	return out
}
