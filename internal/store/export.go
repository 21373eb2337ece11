package store

import (
	"context"
	"strings"

	"github.com/jpearleverett/story-continuity/internal/model"
)

// ExportAll returns all non-deleted arc versions, optionally filtered by namespace.
func (s *SQLiteStore) ExportAll(ctx context.Context, ns string) ([]model.ArcRecord, error) {
	where := []string{"deleted_at IS NULL"}
	args := []interface{}{}

	if ns != "" {
		where = append(where, "ns = ?")
		args = append(args, ns)
	}

	query := `SELECT ` + arcColumns + ` FROM arcs WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ns, key, version`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.ArcRecord
	for rows.Next() {
		r, err := scanArc(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Import stores arcs from an export as new versions under their namespaces.
func (s *SQLiteStore) Import(ctx context.Context, recs []model.ArcRecord) (int, error) {
	imported := 0
	for _, r := range recs {
		arc := r.Arc
		if arc.Key == "" {
			arc.Key = r.Key
		}
		if _, err := s.PutArc(ctx, r.NS, &arc); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
