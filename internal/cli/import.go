package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories from JSON",
		Long:  "Import memories from stdin. Expects the format produced by export; existing records dedup.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var memories []model.Memory
	if err := json.Unmarshal(readStdin(), &memories); err != nil {
		exitErr("parse json", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := store.Import(cmd.Context(), s, memories)
	if err != nil {
		exitErr("import", err)
	}

	printJSON(res)
}
