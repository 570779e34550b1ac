package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/convo-memory/internal/metrics"
	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "upsert [content]",
		Short: "Store memories with dedup",
		Long: "Store one memory given as a positional arg, or a JSON array of candidates piped via stdin.\n" +
			"Candidates whose scope, type and normalized content already exist are skipped.",
		Run: runUpsert,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().String("type", "", "Type for a positional memory (default: note)")
	cmd.Flags().Float64("importance", -1, "Importance in [0,1] (default: by type)")
	cmd.Flags().String("owner", "", "Owner id")
	cmd.Flags().String("cat", "", "Cat id")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runUpsert(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")

	var (
		cands []model.Candidate
		bad   []*model.DecodeError
	)
	if len(args) > 0 {
		cands = []model.Candidate{positionalCandidate(cmd, strings.Join(args, " "))}
	} else {
		var err error
		cands, bad, err = model.DecodeCandidates(readStdin())
		if err != nil {
			exitErr("upsert", err)
		}
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := s.Upsert(cmd.Context(), userID, cands)
	if err != nil {
		exitErr("upsert", err)
	}

	mergeDecodeErrors(res, len(cands), bad)
	printJSON(res)
}

func positionalCandidate(cmd *cobra.Command, content string) model.Candidate {
	typ, _ := cmd.Flags().GetString("type")
	importance, _ := cmd.Flags().GetFloat64("importance")
	owner, _ := cmd.Flags().GetString("owner")
	cat, _ := cmd.Flags().GetString("cat")
	tagsStr, _ := cmd.Flags().GetString("tags")

	c := model.Candidate{
		Content: content,
		Type:    model.Type(typ),
		OwnerID: owner,
		CatID:   cat,
	}
	if cmd.Flags().Changed("importance") {
		c.Importance = model.Score(importance)
	}
	if tagsStr != "" {
		for _, t := range strings.Split(tagsStr, ",") {
			if t = strings.TrimSpace(t); t != "" {
				c.Tags = append(c.Tags, t)
			}
		}
	}
	return c
}

// mergeDecodeErrors folds elements that failed to decode into the result,
// renumbering rejections to positions in the original input array.
func mergeDecodeErrors(res *store.UpsertResult, decoded int, bad []*model.DecodeError) {
	if len(bad) == 0 {
		return
	}
	badIdx := make(map[int]bool, len(bad))
	for _, b := range bad {
		badIdx[b.Index] = true
	}
	// orig[i] is the input position of the i-th decoded candidate
	orig := make([]int, 0, decoded)
	for i := 0; i < decoded+len(bad); i++ {
		if !badIdx[i] {
			orig = append(orig, i)
		}
	}
	for i, r := range res.Rejections {
		if r.Index < len(orig) {
			res.Rejections[i].Index = orig[r.Index]
		}
	}
	for _, b := range bad {
		res.Rejected++
		res.Rejections = append(res.Rejections, store.Rejection{Index: b.Index, Reason: fmt.Sprintf("decode: %v", b.Err)})
	}
	metrics.ObserveUpsert(0, 0, len(bad))
	sort.Slice(res.Rejections, func(i, j int) bool { return res.Rejections[i].Index < res.Rejections[j].Index })
}
