// Package session holds one player's story state and the engine that advances it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jpearleverett/story-continuity/internal/model"
	"github.com/jpearleverett/story-continuity/internal/thread"
)

// ErrNotFound is returned when a session file does not exist.
var ErrNotFound = errors.New("session not found")

// Session is the explicit context for one story run. Thread state is never
// stored; it is rebuilt by replaying Chapters.
type Session struct {
	ID           string          `json:"id"`
	PathOverride string          `json:"pathOverride,omitempty"`
	Chapters     []model.Chapter `json:"chapters"`
	Choices      []model.Choice  `json:"choices"`
	Arc          *model.StoryArc `json:"arc,omitempty"`
	Archive      thread.Archive  `json:"archive"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// New creates an empty session with a fresh id.
func New(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Chapters:  []model.Chapter{},
		Choices:   []model.Choice{},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// Clone returns a deep copy suitable for staging changes.
func (s *Session) Clone() *Session {
	out := *s
	out.Chapters = make([]model.Chapter, len(s.Chapters))
	for i, ch := range s.Chapters {
		if ch.Threads != nil {
			ch.Threads = append([]model.ThreadAnnotation{}, ch.Threads...)
		}
		out.Chapters[i] = ch
	}
	out.Choices = append([]model.Choice{}, s.Choices...)
	out.Arc = s.Arc.Clone()
	out.Archive.Entries = append([]thread.ArchivedThread(nil), s.Archive.Entries...)
	out.Archive.Closed = append([]string(nil), s.Archive.Closed...)
	return &out
}

// Last returns the most recent chapter, if any.
func (s *Session) Last() (model.Chapter, bool) {
	if len(s.Chapters) == 0 {
		return model.Chapter{}, false
	}
	return s.Chapters[len(s.Chapters)-1], true
}

// Next returns the position of the next case to generate.
func (s *Session) Next() (int, int) {
	last, ok := s.Last()
	if !ok {
		return 1, 1
	}
	return model.NextCase(last.Chapter, last.Subchapter)
}

// Choose records the player's decision at the end of the latest case.
func (s *Session) Choose(optionKey string, weights *model.ScoreDelta) (model.Choice, error) {
	last, ok := s.Last()
	if !ok {
		return model.Choice{}, fmt.Errorf("choose: no case played yet")
	}
	optionKey = strings.ToUpper(strings.TrimSpace(optionKey))
	if optionKey == "" {
		return model.Choice{}, fmt.Errorf("choose: empty option")
	}
	cn := last.CaseNumber()
	for _, c := range s.Choices {
		if c.CaseNumber == cn {
			return model.Choice{}, fmt.Errorf("choose: case %s already decided (%s)", cn, c.OptionKey)
		}
	}
	c := model.Choice{CaseNumber: cn, OptionKey: optionKey, Weights: weights}
	s.Choices = append(s.Choices, c)
	return c, nil
}

// FileStore keeps sessions as JSON files, one per id.
type FileStore struct {
	Dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore { return &FileStore{Dir: dir} }

func (st *FileStore) path(id string) string {
	return filepath.Join(st.Dir, id+".json")
}

// Load reads a session by id.
func (st *FileStore) Load(id string) (*Session, error) {
	data, err := os.ReadFile(st.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

// Save writes the session atomically.
func (st *FileStore) Save(s *Session) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := writeFileAtomic(st.path(s.ID), b, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Remove deletes a session file.
func (st *FileStore) Remove(id string) error {
	err := os.Remove(st.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return err
}

// Summary is a one-line view of a stored session.
type Summary struct {
	ID        string    `json:"id"`
	LastCase  string    `json:"lastCase,omitempty"`
	Choices   int       `json:"choices"`
	ArcKey    string    `json:"arcKey,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// List summarises every stored session, most recently updated first.
func (st *FileStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(st.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := []Summary{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		s, err := st.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		sum := Summary{ID: s.ID, Choices: len(s.Choices), UpdatedAt: s.UpdatedAt}
		if last, ok := s.Last(); ok {
			sum.LastCase = last.CaseNumber()
		}
		if s.Arc != nil {
			sum.ArcKey = s.Arc.Key
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func writeFileAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp_session_*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
