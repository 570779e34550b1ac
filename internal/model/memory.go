// Package model defines the core memory data types.
package model

import (
	"strings"
	"time"
)

// Type is the classification tag of a memory record.
type Type string

const (
	TypeAllergy          Type = "allergy"
	TypeChronic          Type = "chronic"
	TypeContraindication Type = "contraindication"
	TypeMedication       Type = "medication"
	TypeDiet             Type = "diet"
	TypeProfile          Type = "profile"
	TypeFact             Type = "fact"
	TypePreference       Type = "preference"
	TypeTodo             Type = "todo"
	TypeNote             Type = "note"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[Type]bool{
	TypeAllergy:          true,
	TypeChronic:          true,
	TypeContraindication: true,
	TypeMedication:       true,
	TypeDiet:             true,
	TypeProfile:          true,
	TypeFact:             true,
	TypePreference:       true,
	TypeTodo:             true,
	TypeNote:             true,
}

// typeImportance is the priority table used when a candidate carries no importance.
var typeImportance = map[Type]float64{
	TypeContraindication: 0.95,
	TypeAllergy:          0.90,
	TypeMedication:       0.85,
	TypeChronic:          0.80,
	TypeDiet:             0.70,
	TypeProfile:          0.65,
	TypeFact:             0.50,
	TypePreference:       0.45,
	TypeTodo:             0.40,
	TypeNote:             0.40,
}

// DefaultImportance is used for types missing from the priority table.
const DefaultImportance = 0.5

// ImportanceFor returns the priority weight for a type.
func ImportanceFor(t Type) float64 {
	if w, ok := typeImportance[t]; ok {
		return w
	}
	return DefaultImportance
}

// Memory is a stored memory record.
type Memory struct {
	ID         string   `json:"id"`
	UserID     string   `json:"user_id"`
	OwnerID    string   `json:"owner_id,omitempty"`
	CatID      string   `json:"cat_id,omitempty"`
	Type       Type     `json:"type"`
	Content    string   `json:"content"`
	Importance float64  `json:"importance"`
	Timestamp  string   `json:"timestamp"`
	Tags       []string `json:"tags"`
	PIIFlags   []string `json:"pii_flags"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (m Memory) Clone() Memory {
	c := m
	c.Tags = append([]string{}, m.Tags...)
	c.PIIFlags = append([]string{}, m.PIIFlags...)
	return c
}

// DedupKey identifies records that must not coexist in a store.
type DedupKey struct {
	UserID  string
	OwnerID string
	CatID   string
	Type    Type
	Content string
}

// Key returns the record's dedup key. Content is normalized again so records
// written by hand or by older versions still collide with fresh candidates.
func (m Memory) Key() DedupKey {
	return DedupKey{
		UserID:  m.UserID,
		OwnerID: m.OwnerID,
		CatID:   m.CatID,
		Type:    m.Type,
		Content: Normalize(m.Content),
	}
}

// Normalize collapses whitespace, trims and lower-cases content.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Now formats the current time the way record timestamps are stored.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// timestampLayouts are accepted in order. The last one has no zone and is
// read in local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		t, err = time.ParseInLocation(layout, strings.TrimSpace(s), time.Local)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
