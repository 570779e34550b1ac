// Package store provides the memory storage interface with JSON-file and
// SQLite implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/convo-memory/internal/model"
)

var (
	// ErrNotFound is returned by Read when no record matches.
	ErrNotFound = errors.New("memory not found")
	// ErrInvalidUserID is returned when an operation has no user scope.
	ErrInvalidUserID = errors.New("user_id is required")
)

// WriteError reports a persistence failure. A failed write is never retried
// or swallowed by the store.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store write (%s %s): %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Rejection records a candidate that failed validation.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// UpsertResult is the outcome of one Upsert call.
type UpsertResult struct {
	CreatedIDs []string    `json:"created_ids"`
	Deduped    int         `json:"deduped_count"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections,omitempty"`
}

// Store defines the memory storage interface.
type Store interface {
	// Upsert validates and stores candidates for a user, skipping any whose
	// dedup key already exists. The whole batch is persisted atomically.
	Upsert(ctx context.Context, userID string, candidates []model.Candidate) (*UpsertResult, error)

	// Read returns one record by id within a user scope, or ErrNotFound.
	Read(ctx context.Context, userID, id string) (*model.Memory, error)

	// List returns copies of the records for a user ("" for all users) in
	// store order. Storage read failures yield an empty list.
	List(ctx context.Context, userID string) ([]model.Memory, error)

	// Path is the location of the persisted collection.
	Path() string

	// Close closes the store.
	Close() error
}

// prepared is a validated candidate waiting for an id.
type prepared struct {
	index int
	mem   model.Memory
}

// prepare validates candidates in order. Empty contents are dropped silently;
// invalid ones become rejections.
func prepare(userID string, candidates []model.Candidate) ([]prepared, []Rejection) {
	var out []prepared
	var rejected []Rejection
	for i, c := range candidates {
		m, ok, err := c.ToMemory(userID)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		if !ok {
			continue
		}
		out = append(out, prepared{index: i, mem: m})
	}
	return out, rejected
}

// idSource hands out ULIDs. Callers hold the store's write lock.
type idSource struct {
	entropy *ulid.MonotonicEntropy
}

func newIDSource() *idSource {
	return &idSource{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (s *idSource) next() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func checkUser(userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	return nil
}
