package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/convo-memory/internal/metrics"
	"github.com/rcliao/convo-memory/internal/model"
)

// FileStore keeps the whole collection as one JSON array on disk. Every
// mutation rewrites the file through a temp file and an atomic rename, so a
// reader sees either the old or the new collection, never a partial one.
//
// All mutations go through mu, which makes the read-modify-write of Upsert
// a single critical section within the process.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	ids    *idSource
	logger *zap.Logger
}

// errCorrupt marks a store file that exists but cannot be decoded.
type errCorrupt struct{ err error }

func (e *errCorrupt) Error() string { return "decode store: " + e.err.Error() }
func (e *errCorrupt) Unwrap() error { return e.err }

// NewFileStore opens (or prepares to create) a JSON store at path.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{
		path:   path,
		ids:    newIDSource(),
		logger: logger.Named("filestore"),
	}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() ([]model.Memory, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var mems []model.Memory
	if err := json.Unmarshal(data, &mems); err != nil {
		return nil, &errCorrupt{err: err}
	}
	return mems, nil
}

// loadOrEmpty is the read path: any failure is logged and treated as an
// empty store.
func (s *FileStore) loadOrEmpty() []model.Memory {
	mems, err := s.load()
	if err != nil {
		s.logger.Warn("store unreadable, treating as empty", zap.String("path", s.path), zap.Error(err))
		metrics.FailOpen.WithLabelValues("store_read").Inc()
		return nil
	}
	return mems
}

func (s *FileStore) Upsert(ctx context.Context, userID string, candidates []model.Candidate) (*UpsertResult, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mems, err := s.load()
	var corrupt *errCorrupt
	switch {
	case errors.As(err, &corrupt):
		// Keep the unreadable bytes for recovery instead of overwriting them.
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return nil, &WriteError{Path: s.path, Op: "quarantine", Err: rerr}
		}
		s.logger.Warn("store corrupt, moved aside", zap.String("path", aside), zap.Error(err))
		metrics.FailOpen.WithLabelValues("store_read").Inc()
		mems = nil
	case err != nil:
		return nil, &WriteError{Path: s.path, Op: "read", Err: err}
	}

	seen := make(map[model.DedupKey]bool, len(mems))
	for _, m := range mems {
		seen[m.Key()] = true
	}

	batch, rejected := prepare(userID, candidates)
	res := &UpsertResult{CreatedIDs: []string{}, Rejected: len(rejected), Rejections: rejected}
	for _, p := range batch {
		k := p.mem.Key()
		if seen[k] {
			res.Deduped++
			continue
		}
		seen[k] = true
		p.mem.ID = s.ids.next()
		mems = append(mems, p.mem)
		res.CreatedIDs = append(res.CreatedIDs, p.mem.ID)
	}

	if len(res.CreatedIDs) > 0 {
		if err := s.write(mems); err != nil {
			return nil, err
		}
	}

	metrics.ObserveUpsert(len(res.CreatedIDs), res.Deduped, res.Rejected)
	s.logger.Info("upsert",
		zap.String("user_id", userID),
		zap.Int("created", len(res.CreatedIDs)),
		zap.Int("deduped", res.Deduped),
		zap.Int("rejected", res.Rejected))
	return res, nil
}

// write replaces the store file with mems via temp file + rename.
func (s *FileStore) write(mems []model.Memory) error {
	if mems == nil {
		mems = []model.Memory{}
	}
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return &WriteError{Path: s.path, Op: "create temp", Err: err}
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &WriteError{Path: s.path, Op: op, Err: err}
	}

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(mems); err != nil {
		return fail("encode", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: s.path, Op: "close", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: s.path, Op: "rename", Err: err}
	}
	return nil
}

func (s *FileStore) Read(ctx context.Context, userID, id string) (*model.Memory, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.loadOrEmpty() {
		if m.ID == id && m.UserID == userID {
			c := m.Clone()
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, userID, id)
}

func (s *FileStore) List(ctx context.Context, userID string) ([]model.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Memory
	for _, m := range s.loadOrEmpty() {
		if userID != "" && m.UserID != userID {
			continue
		}
		out = append(out, m.Clone())
	}
	return out, nil
}
