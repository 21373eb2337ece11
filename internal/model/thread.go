// Package model defines the core story continuity data types.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ThreadType classifies a narrative thread.
type ThreadType string

const (
	ThreadAppointment   ThreadType = "appointment"
	ThreadRevelation    ThreadType = "revelation"
	ThreadInvestigation ThreadType = "investigation"
	ThreadRelationship  ThreadType = "relationship"
	ThreadPhysicalState ThreadType = "physical_state"
	ThreadPromise       ThreadType = "promise"
	ThreadThreat        ThreadType = "threat"
)

// ThreadStatus is the lifecycle state of a thread. Resolved and failed are terminal.
type ThreadStatus string

const (
	StatusActive   ThreadStatus = "active"
	StatusResolved ThreadStatus = "resolved"
	StatusFailed   ThreadStatus = "failed"
)

// Urgency ranks how strongly a thread must be addressed.
type Urgency string

const (
	UrgencyCritical   Urgency = "critical"
	UrgencyNormal     Urgency = "normal"
	UrgencyBackground Urgency = "background"
)

// Source records where a thread came from.
type Source string

const (
	SourceProvider Source = "provider"
	SourceFallback Source = "fallback"
)

// ValidThreadTypes are the allowed thread types.
var ValidThreadTypes = map[ThreadType]bool{
	ThreadAppointment:   true,
	ThreadRevelation:    true,
	ThreadInvestigation: true,
	ThreadRelationship:  true,
	ThreadPhysicalState: true,
	ThreadPromise:       true,
	ThreadThreat:        true,
}

// ValidStatuses are the allowed thread statuses.
var ValidStatuses = map[ThreadStatus]bool{
	StatusActive:   true,
	StatusResolved: true,
	StatusFailed:   true,
}

// ValidUrgencies are the allowed urgency levels.
var ValidUrgencies = map[Urgency]bool{
	UrgencyCritical:   true,
	UrgencyNormal:     true,
	UrgencyBackground: true,
}

// Rank orders urgencies; higher is more urgent.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 3
	case UrgencyNormal:
		return 2
	case UrgencyBackground:
		return 1
	default:
		return 0
	}
}

// Terminal reports whether the status can no longer change.
func (s ThreadStatus) Terminal() bool {
	return s == StatusResolved || s == StatusFailed
}

// ClosedByCap marks background threads closed by the active-thread cap.
const ClosedByCap = "auto-closed by cap"

// Thread is a tracked narrative obligation or state fact.
type Thread struct {
	Type             ThreadType   `json:"type"`
	Description      string       `json:"description"`
	Status           ThreadStatus `json:"status"`
	Urgency          Urgency      `json:"urgency"`
	Characters       []string     `json:"characters,omitempty"`
	OriginChapter    int          `json:"origin_chapter"`
	OriginSubchapter int          `json:"origin_subchapter"`
	DueChapter       *int         `json:"due_chapter,omitempty"`
	ResolvedChapter  *int         `json:"resolved_chapter,omitempty"`
	NormalizedID     string       `json:"normalized_id"`
	Source           Source       `json:"source"`
	AutoClosed       bool         `json:"auto_closed,omitempty"`
	ClosedReason     string       `json:"closed_reason,omitempty"`
}

// Active reports whether the thread still needs attention.
func (t Thread) Active() bool { return t.Status == StatusActive }

// Overdue reports whether the thread is past its due chapter.
func (t Thread) Overdue(currentChapter int) bool {
	return t.Active() && t.DueChapter != nil && currentChapter > *t.DueChapter
}

// Before orders threads chronologically by origin.
func (t Thread) Before(o Thread) bool {
	if t.OriginChapter != o.OriginChapter {
		return t.OriginChapter < o.OriginChapter
	}
	return t.OriginSubchapter < o.OriginSubchapter
}

// Close transitions an active thread to a terminal status at the given chapter.
func (t Thread) Close(status ThreadStatus, chapter int, reason string) Thread {
	if !status.Terminal() || !t.Active() {
		return t
	}
	t.Status = status
	c := chapter
	t.ResolvedChapter = &c
	t.ClosedReason = reason
	return t
}

// ThreadAnnotation is a thread record as authored by the generation provider.
// Every field is optional on the wire; Thread() enforces what is required.
type ThreadAnnotation struct {
	Type        *string  `json:"type,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Urgency     *string  `json:"urgency,omitempty"`
	Characters  []string `json:"characters,omitempty"`
	DueChapter  *int     `json:"dueChapter,omitempty"`
}

// ErrMissingField is returned for annotations lacking a required field.
var ErrMissingField = errors.New("missing required field")

// Thread validates the annotation and converts it into a provider-sourced thread
// observed at the given position. The normalized id is left for the canonicalizer.
func (a ThreadAnnotation) Thread(chapter, subchapter int) (Thread, error) {
	if a.Type == nil || strings.TrimSpace(*a.Type) == "" {
		return Thread{}, fmt.Errorf("annotation type: %w", ErrMissingField)
	}
	if a.Description == nil || strings.TrimSpace(*a.Description) == "" {
		return Thread{}, fmt.Errorf("annotation description: %w", ErrMissingField)
	}
	typ := ThreadType(strings.ToLower(strings.TrimSpace(*a.Type)))
	if !ValidThreadTypes[typ] {
		return Thread{}, fmt.Errorf("invalid thread type %q", *a.Type)
	}

	status := StatusActive
	if a.Status != nil && *a.Status != "" {
		status = ThreadStatus(strings.ToLower(strings.TrimSpace(*a.Status)))
		if !ValidStatuses[status] {
			return Thread{}, fmt.Errorf("invalid thread status %q", *a.Status)
		}
	}

	urgency := UrgencyNormal
	if a.Urgency != nil && *a.Urgency != "" {
		urgency = Urgency(strings.ToLower(strings.TrimSpace(*a.Urgency)))
		if !ValidUrgencies[urgency] {
			return Thread{}, fmt.Errorf("invalid thread urgency %q", *a.Urgency)
		}
	}

	t := Thread{
		Type:             typ,
		Description:      strings.TrimSpace(*a.Description),
		Status:           status,
		Urgency:          urgency,
		Characters:       CanonicalCharacters(a.Characters),
		OriginChapter:    chapter,
		OriginSubchapter: subchapter,
		Source:           SourceProvider,
	}
	if a.DueChapter != nil && *a.DueChapter > 0 {
		due := *a.DueChapter
		t.DueChapter = &due
	}
	if status.Terminal() {
		c := chapter
		t.ResolvedChapter = &c
	}
	return t, nil
}

// Protagonists maps recognised name tokens to canonical participant names.
var Protagonists = map[string]string{
	"jack":     "jack",
	"halloway": "jack",
	"sarah":    "sarah",
	"reeves":   "sarah",
}

// CanonicalCharacters maps protagonist names onto their canonical form and passes
// everyone else through as trimmed free text. Duplicates are removed, order kept.
func CanonicalCharacters(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, raw := range in {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if c := canonicalProtagonist(name); c != "" {
			name = c
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func canonicalProtagonist(name string) string {
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		tok = strings.TrimSuffix(strings.Trim(tok, ".,;:!?\""), "'s")
		if c, ok := Protagonists[tok]; ok {
			return c
		}
	}
	return ""
}
