package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/convo-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := store.ComputeStats(cmd.Context(), s)
	if err != nil {
		exitErr("stats", err)
	}

	printJSON(stats)
}
