package provider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jpearleverett/story-continuity/internal/model"
)

// Offline is a deterministic template generator. It needs no network and
// always addresses the mandatory threads it is given.
type Offline struct{}

// NewOffline creates the offline generator.
func NewOffline() *Offline { return &Offline{} }

func (o *Offline) Name() string { return "offline" }

var openings = []string{
	"Rain worked the gutters along the harbor precinct while Jack Halloway read the file a third time.",
	"The office smelled of cold coffee and old paper when Sarah Reeves pushed the door open.",
	"Fog came off the water thick enough to lose a man in, and Jack had lost better men than himself.",
	"The black envelope sat on the desk like it had always been there.",
}

var closings = []string{
	"Somewhere across the city a phone rang and nobody answered it.",
	"Jack turned off the lamp and sat with the dark for a while.",
	"Sarah said nothing, which was how Jack knew she was worried.",
}

func (o *Offline) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := seedFrom(req.CacheKey)
	var b strings.Builder

	b.WriteString(openings[seed%uint64(len(openings))])
	if g := req.Guidance; g != nil {
		fmt.Fprintf(&b, " %s.", strings.TrimSuffix(g.PrimaryFocus, "."))
		if g.EmotionalAnchor != "" {
			fmt.Fprintf(&b, " %s.", strings.TrimSuffix(g.EmotionalAnchor, "."))
		}
	}
	b.WriteString("\n\n")

	threads := []ThreadOutput{}
	for _, t := range req.Mandatory {
		fmt.Fprintf(&b, "Jack had not forgotten: %s.\n", strings.TrimSuffix(t.Description, "."))
		threads = append(threads, ThreadOutput{
			Type:        string(t.Type),
			Description: t.Description,
			Status:      string(addressed(t)),
			Urgency:     string(t.Urgency),
			Characters:  t.Characters,
		})
	}

	hook := ""
	if g := req.Guidance; g != nil && g.EndingHook != "" {
		hook = strings.TrimSuffix(g.EndingHook, ".")
		fmt.Fprintf(&b, "\n%s.", hook)
		threads = append(threads, ThreadOutput{
			Type:        string(model.ThreadInvestigation),
			Description: "Jack needs to find out why " + lowerFirst(hook),
			Status:      string(model.StatusActive),
			Urgency:     string(model.UrgencyNormal),
			Characters:  []string{"Jack Halloway"},
			DueChapter:  req.Chapter + 1,
		})
	}
	fmt.Fprintf(&b, " %s", closings[(seed>>8)%uint64(len(closings))])

	out := ChapterOutput{
		Title:            titleFor(req),
		BridgeText:       "The case picks up where the last one left off.",
		Narrative:        b.String(),
		ChapterSummary:   summaryFor(req, hook),
		NarrativeThreads: threads,
	}
	return &Response{Chapter: toChapter(req, out), Provider: o.Name()}, nil
}

// addressed reports the status the offline chapter leaves a mandatory thread
// in: appointments and promises are kept, everything else stays open.
func addressed(t model.Thread) model.ThreadStatus {
	switch t.Type {
	case model.ThreadAppointment, model.ThreadPromise:
		return model.StatusResolved
	default:
		return model.StatusActive
	}
}

func titleFor(req Request) string {
	if req.Guidance != nil && req.Guidance.BeatType != "" {
		return fmt.Sprintf("Case %s: %s", model.CaseNumber(req.Chapter, req.Subchapter),
			strings.ReplaceAll(req.Guidance.BeatType, "_", " "))
	}
	return "Case " + model.CaseNumber(req.Chapter, req.Subchapter)
}

func summaryFor(req Request, hook string) string {
	s := fmt.Sprintf("Jack works case %s.", model.CaseNumber(req.Chapter, req.Subchapter))
	if n := len(req.Mandatory); n > 0 {
		s += fmt.Sprintf(" He deals with %d pressing obligations.", n)
	}
	if hook != "" {
		s += " " + hook + "."
	}
	return s
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func seedFrom(s string) uint64 {
	h := sha256.Sum256([]byte(s))
	return binary.LittleEndian.Uint64(h[:8])
}
