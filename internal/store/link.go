package store

import (
	"context"
	"fmt"
	"time"
)

// Link represents a relation between two arc versions.
type Link struct {
	FromID    string `json:"from_id"`
	FromKey   string `json:"from_key"`
	ToID      string `json:"to_id"`
	ToKey     string `json:"to_key"`
	Rel       string `json:"rel"`
	CreatedAt string `json:"created_at"`
}

var validRels = map[string]bool{
	"adapted_to": true,
	"replaces":   true,
}

// LinkArcs records rel between the latest live versions of fromKey and toKey.
func (s *SQLiteStore) LinkArcs(ctx context.Context, ns, fromKey, toKey, rel string) error {
	if !validRels[rel] {
		return fmt.Errorf("invalid relation %q (valid: adapted_to, replaces)", rel)
	}

	fromID, err := s.latestID(ctx, ns, fromKey)
	if err != nil {
		return fmt.Errorf("resolve from: %w", err)
	}
	toID, err := s.latestID(ctx, ns, toKey)
	if err != nil {
		return fmt.Errorf("resolve to: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO arc_links (from_id, to_id, rel, created_at) VALUES (?, ?, ?, ?)`,
		fromID, toID, rel, now)
	return err
}

// Lineage returns every link touching any version of key in ns, oldest first.
func (s *SQLiteStore) Lineage(ctx context.Context, ns, key string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.from_id, f.key, l.to_id, t.key, l.rel, l.created_at
		 FROM arc_links l
		 JOIN arcs f ON f.id = l.from_id
		 JOIN arcs t ON t.id = l.to_id
		 WHERE (f.ns = ? AND f.key = ?) OR (t.ns = ? AND t.key = ?)
		 ORDER BY l.created_at, l.rowid`, ns, key, ns, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.FromID, &l.FromKey, &l.ToID, &l.ToKey, &l.Rel, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
