package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rcliao/convo-memory/internal/metrics"
	"github.com/rcliao/convo-memory/internal/model"
)

// SQLiteStore implements Store using SQLite. The dedup key is enforced by a
// unique index and every upsert runs in a single transaction.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	ids    *idSource
	logger *zap.Logger
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		path:   dbPath,
		ids:    newIDSource(),
		logger: logger.Named("sqlite"),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	// Absent owner/cat scope keys are stored as '' so the unique index sees
	// them as equal (NULLs never collide in SQLite unique indexes).
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		user_id     TEXT NOT NULL,
		owner_id    TEXT NOT NULL DEFAULT '',
		cat_id      TEXT NOT NULL DEFAULT '',
		type        TEXT NOT NULL,
		content     TEXT NOT NULL,
		importance  REAL NOT NULL,
		timestamp   TEXT NOT NULL,
		tags        TEXT,
		pii_flags   TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_memories_dedup
		ON memories(user_id, owner_id, cat_id, type, content);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Upsert(ctx context.Context, userID string, candidates []model.Candidate) (*UpsertResult, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch, rejected := prepare(userID, candidates)
	res := &UpsertResult{CreatedIDs: []string{}, Rejected: len(rejected), Rejections: rejected}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &WriteError{Path: s.path, Op: "begin", Err: err}
	}
	defer tx.Rollback()

	for _, p := range batch {
		m := p.mem
		m.ID = s.ids.next()
		tags, _ := json.Marshal(m.Tags)
		pii, _ := json.Marshal(m.PIIFlags)

		r, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO memories (id, user_id, owner_id, cat_id, type, content, importance, timestamp, tags, pii_flags)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.UserID, m.OwnerID, m.CatID, string(m.Type), m.Content, m.Importance, m.Timestamp,
			string(tags), string(pii))
		if err != nil {
			return nil, &WriteError{Path: s.path, Op: "insert", Err: err}
		}
		n, err := r.RowsAffected()
		if err != nil {
			return nil, &WriteError{Path: s.path, Op: "insert", Err: err}
		}
		if n == 0 {
			res.Deduped++
			continue
		}
		res.CreatedIDs = append(res.CreatedIDs, m.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, &WriteError{Path: s.path, Op: "commit", Err: err}
	}

	metrics.ObserveUpsert(len(res.CreatedIDs), res.Deduped, res.Rejected)
	s.logger.Info("upsert",
		zap.String("user_id", userID),
		zap.Int("created", len(res.CreatedIDs)),
		zap.Int("deduped", res.Deduped),
		zap.Int("rejected", res.Rejected))
	return res, nil
}

const selectColumns = `SELECT id, user_id, owner_id, cat_id, type, content, importance, timestamp, tags, pii_flags FROM memories`

func (s *SQLiteStore) Read(ctx context.Context, userID, id string) (*model.Memory, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE user_id = ? AND id = ?`, userID, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, userID, id)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("read failed, treating as empty", zap.Error(err))
		metrics.FailOpen.WithLabelValues("store_read").Inc()
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, userID, id)
	}
	return &m, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectColumns + ` ORDER BY seq`
	var args []interface{}
	if userID != "" {
		query = selectColumns + ` WHERE user_id = ? ORDER BY seq`
		args = append(args, userID)
	}

	mems, err := s.query(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("list failed, treating as empty", zap.Error(err))
		metrics.FailOpen.WithLabelValues("store_read").Inc()
		return nil, nil
	}
	return mems, nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var typ string
	var tagsJSON, piiJSON sql.NullString

	err := row.Scan(
		&m.ID, &m.UserID, &m.OwnerID, &m.CatID, &typ, &m.Content,
		&m.Importance, &m.Timestamp, &tagsJSON, &piiJSON,
	)
	if err != nil {
		return m, err
	}

	m.Type = model.Type(typ)
	m.Tags = []string{}
	m.PIIFlags = []string{}
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	if piiJSON.Valid {
		json.Unmarshal([]byte(piiJSON.String), &m.PIIFlags)
	}

	return m, nil
}
