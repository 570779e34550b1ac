package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Retrieve a memory by id",
		Run:   runGet,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().String("id", "", "Memory id (required)")

	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("id")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	id, _ := cmd.Flags().GetString("id")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	mem, err := s.Read(cmd.Context(), userID, id)
	if err != nil {
		exitErr("get", err)
	}

	printJSON(mem)
}
