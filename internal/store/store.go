// Package store provides the arc storage interface and SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/jpearleverett/story-continuity/internal/model"
)

// ErrNotFound is returned when no live arc matches a lookup.
var ErrNotFound = errors.New("not found")

// GetParams holds parameters for retrieving an arc.
type GetParams struct {
	NS      string
	Key     string
	History bool
	Version int // 0 means latest
}

// ListParams holds parameters for listing arcs.
type ListParams struct {
	NS    string
	Risk  string
	Limit int
}

// RmParams holds parameters for deleting an arc.
type RmParams struct {
	NS          string
	Key         string
	AllVersions bool
	Hard        bool
}

// Store defines the arc storage interface. Namespaces are session ids.
type Store interface {
	// PutArc stores a new version of the arc under its key.
	PutArc(ctx context.Context, ns string, a *model.StoryArc) (*model.ArcRecord, error)

	// GetArc returns the latest live version of the arc for key.
	GetArc(ctx context.Context, ns, key string) (*model.ArcRecord, error)

	// Get returns a single version, or all versions with History=true.
	Get(ctx context.Context, p GetParams) ([]model.ArcRecord, error)

	// List lists the latest version of each arc matching the filters.
	List(ctx context.Context, p ListParams) ([]model.ArcRecord, error)

	// LinkArcs records a relation between the latest versions of two keys.
	LinkArcs(ctx context.Context, ns, fromKey, toKey, rel string) error

	// Rm soft-deletes (or hard-deletes) an arc.
	Rm(ctx context.Context, p RmParams) error

	// Close closes the store.
	Close() error
}
