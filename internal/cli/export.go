package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/convo-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export memories as a JSON array. Filter by user with -u.",
		Run:   runExport,
	}

	cmd.Flags().StringP("user", "u", "", "Filter by user id")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	memories, err := store.ExportAll(cmd.Context(), s, userID)
	if err != nil {
		exitErr("export", err)
	}

	printJSON(memories)
}
