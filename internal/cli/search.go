package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/recall"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Rank memories against a query",
		Long:  "Filter a user's memories by scope, type and tags, then rank them by token overlap, recency and importance.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().String("owner", "", "Filter by owner id")
	cmd.Flags().String("cat", "", "Filter by cat id")
	cmd.Flags().String("type", "", "Filter by type")
	cmd.Flags().StringSliceP("tags", "t", nil, "Require all of these tags")
	cmd.Flags().IntP("k", "k", 0, "Max results, at least 1 (default: search.default_k)")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	owner, _ := cmd.Flags().GetString("owner")
	cat, _ := cmd.Flags().GetString("cat")
	typ, _ := cmd.Flags().GetString("type")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	k, _ := cmd.Flags().GetInt("k")
	if !cmd.Flags().Changed("k") || k == 0 {
		k = cfg.Search.DefaultK
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := recall.NewEngine(s, logger).Search(cmd.Context(), recall.SearchParams{
		UserID:  userID,
		Query:   strings.Join(args, " "),
		K:       k,
		OwnerID: owner,
		CatID:   cat,
		Filters: recall.Filters{Type: model.Type(typ), Tags: tags},
	})
	if err != nil {
		exitErr("search", err)
	}

	printJSON(res)
}
