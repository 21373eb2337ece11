package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string           `json:"db_path"`
	DBSizeBytes int64            `json:"db_size_bytes"`
	TotalArcs   int              `json:"total_arcs"`
	LiveArcs    int              `json:"live_arcs"`
	TotalLinks  int              `json:"total_links"`
	Namespaces  []NamespaceStats `json:"namespaces"`
}

// NamespaceStats holds per-session counts.
type NamespaceStats struct {
	NS       string `json:"ns"`
	Count    int    `json:"count"`
	Keys     int    `json:"keys"`
	LastSeen string `json:"last_seen"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM arcs`).Scan(&st.TotalArcs)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM arcs WHERE deleted_at IS NULL`).Scan(&st.LiveArcs)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM arc_links`).Scan(&st.TotalLinks)

	ns, err := s.ListNamespaces(ctx)
	st.Namespaces = ns
	return st, err
}

// ListNamespaces returns one entry per session that has live arcs, most recent first.
func (s *SQLiteStore) ListNamespaces(ctx context.Context) ([]NamespaceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ns, COUNT(*) AS cnt, COUNT(DISTINCT key) AS keys, MAX(created_at) AS last_seen
		FROM arcs WHERE deleted_at IS NULL
		GROUP BY ns ORDER BY last_seen DESC, ns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NamespaceStats
	for rows.Next() {
		var ns NamespaceStats
		if err := rows.Scan(&ns.NS, &ns.Count, &ns.Keys, &ns.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}
