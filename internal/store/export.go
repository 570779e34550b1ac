package store

import (
	"context"

	"github.com/rcliao/convo-memory/internal/model"
)

// ExportAll returns all records, optionally filtered by user, in store order.
func ExportAll(ctx context.Context, s Store, userID string) ([]model.Memory, error) {
	mems, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if mems == nil {
		mems = []model.Memory{}
	}
	return mems, nil
}

// Import stores records from an export. Records are re-upserted per user in
// their original order, so importing the same export twice only dedups.
func Import(ctx context.Context, s Store, memories []model.Memory) (*UpsertResult, error) {
	total := &UpsertResult{CreatedIDs: []string{}}

	var order []string
	byUser := map[string][]model.Candidate{}
	offsets := map[string][]int{}
	for i, m := range memories {
		if m.UserID == "" {
			total.Rejected++
			total.Rejections = append(total.Rejections, Rejection{Index: i, Reason: ErrInvalidUserID.Error()})
			continue
		}
		if _, ok := byUser[m.UserID]; !ok {
			order = append(order, m.UserID)
		}
		byUser[m.UserID] = append(byUser[m.UserID], model.FromMemory(m))
		offsets[m.UserID] = append(offsets[m.UserID], i)
	}

	for _, user := range order {
		res, err := s.Upsert(ctx, user, byUser[user])
		if err != nil {
			return total, err
		}
		total.CreatedIDs = append(total.CreatedIDs, res.CreatedIDs...)
		total.Deduped += res.Deduped
		total.Rejected += res.Rejected
		for _, r := range res.Rejections {
			r.Index = offsets[user][r.Index]
			total.Rejections = append(total.Rejections, r)
		}
	}
	return total, nil
}
