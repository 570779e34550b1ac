package cli

import (
	"errors"
	"testing"

	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/store"
)

func TestMergeDecodeErrors(t *testing.T) {
	// input: [ok, bad, ok(invalid type), bad]
	res := &store.UpsertResult{
		CreatedIDs: []string{"a"},
		Rejected:   1,
		Rejections: []store.Rejection{{Index: 1, Reason: "unknown type"}},
	}
	bad := []*model.DecodeError{
		{Index: 1, Err: errors.New("importance: string")},
		{Index: 3, Err: errors.New("content: number")},
	}

	mergeDecodeErrors(res, 2, bad)

	if res.Rejected != 3 {
		t.Errorf("expected 3 rejected, got %d", res.Rejected)
	}
	want := []int{1, 2, 3}
	if len(res.Rejections) != len(want) {
		t.Fatalf("expected %d rejections, got %+v", len(want), res.Rejections)
	}
	for i, idx := range want {
		if res.Rejections[i].Index != idx {
			t.Errorf("rejection %d: expected index %d, got %d", i, idx, res.Rejections[i].Index)
		}
	}
	if res.Rejections[1].Reason != "unknown type" {
		t.Errorf("validation rejection should map to input 2, got %+v", res.Rejections[1])
	}
}

func TestMergeDecodeErrorsNoop(t *testing.T) {
	res := &store.UpsertResult{Rejections: []store.Rejection{{Index: 0}}}
	mergeDecodeErrors(res, 1, nil)
	if res.Rejected != 0 || res.Rejections[0].Index != 0 {
		t.Errorf("unexpected change: %+v", res)
	}
}
