package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/jpearleverett/story-continuity/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS arcs (
		id           TEXT PRIMARY KEY,
		ns           TEXT NOT NULL,
		key          TEXT NOT NULL,
		content      TEXT NOT NULL,
		risk         TEXT NOT NULL,
		version      INTEGER NOT NULL DEFAULT 1,
		supersedes   TEXT,
		previous_key TEXT,
		adapted_from INTEGER,
		created_at   TEXT NOT NULL,
		deleted_at   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_arcs_ns_key ON arcs(ns, key);
	CREATE INDEX IF NOT EXISTS idx_arcs_ns_risk ON arcs(ns, risk);
	CREATE INDEX IF NOT EXISTS idx_arcs_created ON arcs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_arcs_deleted ON arcs(deleted_at);

	CREATE TABLE IF NOT EXISTS arc_links (
		from_id    TEXT NOT NULL REFERENCES arcs(id),
		to_id      TEXT NOT NULL REFERENCES arcs(id),
		rel        TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, rel)
	);
	CREATE INDEX IF NOT EXISTS idx_arc_links_to ON arc_links(to_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const arcColumns = `id, ns, key, content, risk, version, supersedes, previous_key, created_at, deleted_at`

// PutArc stores a new version of the arc. The previous live version, if any,
// is recorded as superseded.
func (s *SQLiteStore) PutArc(ctx context.Context, ns string, a *model.StoryArc) (*model.ArcRecord, error) {
	if a == nil || a.Key == "" {
		return nil, fmt.Errorf("put arc: missing key")
	}
	content, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode arc: %w", err)
	}

	now := time.Now().UTC()
	id := s.newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prevID string
	var prevVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT id, version FROM arcs
		 WHERE ns = ? AND key = ? AND deleted_at IS NULL
		 ORDER BY version DESC LIMIT 1`, ns, a.Key).Scan(&prevID, &prevVersion)

	version := 1
	var supersedes *string
	if err == nil {
		version = prevVersion + 1
		supersedes = &prevID
	}

	var previousKey *string
	if a.PreviousKey != "" {
		previousKey = &a.PreviousKey
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO arcs (id, ns, key, content, risk, version, supersedes, previous_key, adapted_from, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ns, a.Key, string(content), string(a.PersonalitySnapshot.RiskTolerance),
		version, supersedes, previousKey, a.AdaptedFromChapter, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert arc: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rec := &model.ArcRecord{
		ID:          id,
		NS:          ns,
		Key:         a.Key,
		Version:     version,
		PreviousKey: a.PreviousKey,
		Risk:        string(a.PersonalitySnapshot.RiskTolerance),
		CreatedAt:   now,
		Arc:         *a.Clone(),
	}
	if supersedes != nil {
		rec.Supersedes = *supersedes
	}
	return rec, nil
}

// GetArc returns the latest live version of key, or ErrNotFound.
func (s *SQLiteStore) GetArc(ctx context.Context, ns, key string) (*model.ArcRecord, error) {
	recs, err := s.Get(ctx, GetParams{NS: ns, Key: key})
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

func (s *SQLiteStore) Get(ctx context.Context, p GetParams) ([]model.ArcRecord, error) {
	var query string
	var args []interface{}

	if p.History {
		query = `SELECT ` + arcColumns + ` FROM arcs
				 WHERE ns = ? AND key = ? AND deleted_at IS NULL
				 ORDER BY version DESC`
		args = []interface{}{p.NS, p.Key}
	} else if p.Version > 0 {
		query = `SELECT ` + arcColumns + ` FROM arcs
				 WHERE ns = ? AND key = ? AND version = ? AND deleted_at IS NULL
				 LIMIT 1`
		args = []interface{}{p.NS, p.Key, p.Version}
	} else {
		query = `SELECT ` + arcColumns + ` FROM arcs
				 WHERE ns = ? AND key = ? AND deleted_at IS NULL
				 ORDER BY version DESC LIMIT 1`
		args = []interface{}{p.NS, p.Key}
	}

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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(recs) == 0 {
		return nil, fmt.Errorf("arc %s/%s: %w", p.NS, p.Key, ErrNotFound)
	}
	return recs, nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.ArcRecord, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"a.deleted_at IS NULL"}
	var args []interface{}

	if p.NS != "" {
		where = append(where, "a.ns = ?")
		args = append(args, p.NS)
	}
	if p.Risk != "" {
		where = append(where, "a.risk = ?")
		args = append(args, p.Risk)
	}

	query := fmt.Sprintf(`
		SELECT a.id, a.ns, a.key, a.content, a.risk, a.version, a.supersedes,
		       a.previous_key, a.created_at, a.deleted_at
		FROM arcs a
		INNER JOIN (
			SELECT ns, key, MAX(version) AS max_ver
			FROM arcs WHERE deleted_at IS NULL
			GROUP BY ns, key
		) latest ON a.ns = latest.ns AND a.key = latest.key AND a.version = latest.max_ver
		WHERE %s
		ORDER BY a.created_at DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

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

func (s *SQLiteStore) Rm(ctx context.Context, p RmParams) error {
	if p.Hard {
		if p.AllVersions {
			_, err := s.db.ExecContext(ctx,
				`DELETE FROM arc_links WHERE from_id IN (SELECT id FROM arcs WHERE ns = ? AND key = ?)
				    OR to_id IN (SELECT id FROM arcs WHERE ns = ? AND key = ?)`,
				p.NS, p.Key, p.NS, p.Key)
			if err != nil {
				return err
			}
			_, err = s.db.ExecContext(ctx, `DELETE FROM arcs WHERE ns = ? AND key = ?`, p.NS, p.Key)
			return err
		}
		id, err := s.latestID(ctx, p.NS, p.Key)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM arc_links WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `DELETE FROM arcs WHERE id = ?`, id)
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if p.AllVersions {
		res, err := s.db.ExecContext(ctx,
			`UPDATE arcs SET deleted_at = ? WHERE ns = ? AND key = ? AND deleted_at IS NULL`,
			now, p.NS, p.Key)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("arc %s/%s: %w", p.NS, p.Key, ErrNotFound)
		}
		return nil
	}

	id, err := s.latestID(ctx, p.NS, p.Key)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE arcs SET deleted_at = ? WHERE id = ?`, now, id)
	return err
}

// latestID finds the latest live arc ID for a ns:key pair.
func (s *SQLiteStore) latestID(ctx context.Context, ns, key string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM arcs WHERE ns = ? AND key = ? AND deleted_at IS NULL
		 ORDER BY version DESC LIMIT 1`, ns, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("arc %s/%s: %w", ns, key, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArc(row scanner) (model.ArcRecord, error) {
	var r model.ArcRecord
	var content, createdAt string
	var supersedes, previousKey, deletedAt sql.NullString

	err := row.Scan(
		&r.ID, &r.NS, &r.Key, &content, &r.Risk, &r.Version,
		&supersedes, &previousKey, &createdAt, &deletedAt,
	)
	if err != nil {
		return r, err
	}

	if err := json.Unmarshal([]byte(content), &r.Arc); err != nil {
		return r, fmt.Errorf("decode arc %s: %w", r.ID, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if supersedes.Valid {
		r.Supersedes = supersedes.String
	}
	if previousKey.Valid {
		r.PreviousKey = previousKey.String
	}
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339, deletedAt.String)
		r.DeletedAt = &t
	}
	return r, nil
}
