package thread

import (
	"sort"

	"github.com/jpearleverett/story-continuity/internal/model"
)

const (
	// DefaultMaxActive is the default active-thread cap.
	DefaultMaxActive = 20
	// DefaultNormalShare is the share of non-critical capacity reserved for normal threads.
	DefaultNormalShare = 0.6
)

// CapResult is the outcome of capping the active set.
type CapResult struct {
	// Active fits the cap except when critical threads alone exceed it.
	Active []model.Thread `json:"active"`
	// Deferred are normal threads left out of this prompt; they stay active.
	Deferred []model.Thread `json:"deferred,omitempty"`
	// AutoResolved are background threads closed by the cap.
	AutoResolved []model.Thread `json:"autoResolved,omitempty"`
}

// Capper enforces the active-thread cap.
type Capper struct {
	MaxActive   int
	NormalShare float64
}

// NewCapper returns a capper with the default limits.
func NewCapper() *Capper {
	return &Capper{MaxActive: DefaultMaxActive, NormalShare: DefaultNormalShare}
}

// Cap splits active threads into those kept, deferred and auto-resolved.
// Critical threads are always kept. Non-active input is ignored.
func (c *Capper) Cap(threads []model.Thread, currentChapter int) CapResult {
	limit := c.MaxActive
	if limit <= 0 {
		limit = DefaultMaxActive
	}
	share := c.NormalShare
	if share <= 0 || share > 1 {
		share = DefaultNormalShare
	}

	var critical, normal, background []model.Thread
	for _, t := range threads {
		if !t.Active() {
			continue
		}
		switch t.Urgency {
		case model.UrgencyCritical:
			critical = append(critical, t)
		case model.UrgencyBackground:
			background = append(background, t)
		default:
			normal = append(normal, t)
		}
	}
	if len(critical)+len(normal)+len(background) <= limit {
		return CapResult{Active: chronological(critical, normal, background)}
	}

	remaining := max(0, limit-len(critical))
	normalSlots := max(int(float64(remaining)*share), remaining-len(background))
	normalSlots = min(normalSlots, remaining)
	keptNormal, deferred := keepNewest(normal, normalSlots)

	bgSlots := remaining - len(keptNormal)
	keptBackground, overflow := keepNewest(background, bgSlots)

	res := CapResult{
		Active:   chronological(critical, keptNormal, keptBackground),
		Deferred: deferred,
	}
	for _, t := range overflow {
		closed := t.Close(model.StatusResolved, currentChapter, model.ClosedByCap)
		closed.AutoClosed = true
		res.AutoResolved = append(res.AutoResolved, closed)
	}
	return res
}

// keepNewest keeps the n most recent threads; the rest are returned oldest first.
func keepNewest(threads []model.Thread, n int) (kept, rest []model.Thread) {
	sorted := append([]model.Thread(nil), threads...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	if n <= 0 {
		return nil, sorted
	}
	if n >= len(sorted) {
		return sorted, nil
	}
	cut := len(sorted) - n
	return sorted[cut:], sorted[:cut]
}

func chronological(groups ...[]model.Thread) []model.Thread {
	var out []model.Thread
	for _, g := range groups {
		out = append(out, g...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Mandatory reports whether a thread must be addressed in the next chapter.
func Mandatory(t model.Thread, currentChapter int) bool {
	return t.Active() && (t.Urgency == model.UrgencyCritical || t.Overdue(currentChapter))
}

// tier orders threads for presentation; lower is more important.
func tier(t model.Thread, currentChapter int) int {
	overdue := t.Overdue(currentChapter)
	switch {
	case overdue && t.Urgency == model.UrgencyCritical:
		return 0
	case overdue && t.Urgency == model.UrgencyNormal:
		return 1
	case t.Urgency == model.UrgencyCritical:
		return 2
	case t.Urgency == model.UrgencyNormal:
		return 3
	case overdue:
		return 4
	default:
		return 5
	}
}

// Rank returns a copy of threads ordered for presentation: overdue critical,
// overdue normal, critical, normal, background. Newer threads win ties.
func Rank(threads []model.Thread, currentChapter int) []model.Thread {
	out := append([]model.Thread(nil), threads...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := tier(out[i], currentChapter), tier(out[j], currentChapter)
		if ti != tj {
			return ti < tj
		}
		return out[j].Before(out[i])
	})
	return out
}
