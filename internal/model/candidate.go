package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrValidation marks a candidate that was rejected before storage.
var ErrValidation = errors.New("invalid candidate")

// Candidate is a memory proposed for storage.
type Candidate struct {
	Content    string   `json:"content"`
	Type       Type     `json:"type"`
	Importance *float64 `json:"importance,omitempty"`
	OwnerID    string   `json:"owner_id,omitempty"`
	CatID      string   `json:"cat_id,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	PIIFlags   []string `json:"pii_flags,omitempty"`
}

// Score returns a pointer to v, for building candidates inline.
func Score(v float64) *float64 { return &v }

// ToMemory validates the candidate and builds the record it would create.
// The returned record has no ID. An empty content after normalization returns
// ok=false with a nil error: such candidates are skipped, not rejected.
func (c Candidate) ToMemory(userID string) (m Memory, ok bool, err error) {
	content := Normalize(c.Content)
	if content == "" {
		return Memory{}, false, nil
	}

	typ := c.Type
	if typ == "" {
		typ = TypeNote
	}
	if !ValidTypes[typ] {
		return Memory{}, false, fmt.Errorf("%w: unknown type %q", ErrValidation, typ)
	}

	importance := ImportanceFor(typ)
	if c.Importance != nil {
		importance = *c.Importance
	}
	if math.IsNaN(importance) || math.IsInf(importance, 0) {
		return Memory{}, false, fmt.Errorf("%w: importance is not a finite number", ErrValidation)
	}
	importance = math.Max(0, math.Min(1, importance))

	ts := c.Timestamp
	if ts == "" {
		ts = Now()
	} else if _, err := ParseTimestamp(ts); err != nil {
		return Memory{}, false, fmt.Errorf("%w: timestamp %q: %v", ErrValidation, ts, err)
	}

	return Memory{
		UserID:     userID,
		OwnerID:    c.OwnerID,
		CatID:      c.CatID,
		Type:       typ,
		Content:    content,
		Importance: importance,
		Timestamp:  ts,
		Tags:       dedupStrings(c.Tags),
		PIIFlags:   dedupStrings(c.PIIFlags),
	}, true, nil
}

// FromMemory turns an exported record back into a candidate.
func FromMemory(m Memory) Candidate {
	return Candidate{
		Content:    m.Content,
		Type:       m.Type,
		Importance: Score(m.Importance),
		OwnerID:    m.OwnerID,
		CatID:      m.CatID,
		Timestamp:  m.Timestamp,
		Tags:       m.Tags,
		PIIFlags:   m.PIIFlags,
	}
}

// DecodeError describes a JSON element that could not be read as a candidate.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("candidate %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return ErrValidation }

// DecodeCandidates reads a JSON array of candidates one element at a time, so
// a malformed element (e.g. a string importance) only rejects that element.
func DecodeCandidates(data []byte) ([]Candidate, []*DecodeError, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse candidates: %w", err)
	}
	var out []Candidate
	var bad []*DecodeError
	for i, r := range raw {
		var c Candidate
		if err := json.Unmarshal(r, &c); err != nil {
			bad = append(bad, &DecodeError{Index: i, Err: err})
			continue
		}
		out = append(out, c)
	}
	return out, bad, nil
}

func dedupStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
