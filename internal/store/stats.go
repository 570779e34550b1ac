package store

import (
	"context"
	"os"
	"sort"
)

// Stats holds store statistics.
type Stats struct {
	Path          string         `json:"path"`
	SizeBytes     int64          `json:"size_bytes"`
	TotalMemories int            `json:"total_memories"`
	Users         []UserStats    `json:"users"`
	Types         map[string]int `json:"types"`
}

// UserStats holds per-user counts.
type UserStats struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// ComputeStats returns statistics for a store.
func ComputeStats(ctx context.Context, s Store) (*Stats, error) {
	st := &Stats{Path: s.Path(), Users: []UserStats{}, Types: map[string]int{}}

	if info, err := os.Stat(s.Path()); err == nil {
		st.SizeBytes = info.Size()
	}

	mems, err := s.List(ctx, "")
	if err != nil {
		return st, err
	}
	st.TotalMemories = len(mems)

	perUser := map[string]int{}
	for _, m := range mems {
		perUser[m.UserID]++
		st.Types[string(m.Type)]++
	}
	for u, n := range perUser {
		st.Users = append(st.Users, UserStats{UserID: u, Count: n})
	}
	sort.Slice(st.Users, func(i, j int) bool {
		if st.Users[i].Count != st.Users[j].Count {
			return st.Users[i].Count > st.Users[j].Count
		}
		return st.Users[i].UserID < st.Users[j].UserID
	})

	return st, nil
}
