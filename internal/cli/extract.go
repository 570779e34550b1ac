package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/store"
	"github.com/rcliao/convo-memory/internal/window"
)

func init() {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract memories from recent dialogue",
		Long: "Read {\"turns\": [...], \"reply\": \"...\"} from stdin, ask the configured LLM for memorable\n" +
			"one-line facts, classify them and upsert them unless --dry-run is set.",
		Run: runExtract,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().String("owner", "", "Owner id")
	cmd.Flags().String("cat", "", "Cat id")
	cmd.Flags().Bool("dry-run", false, "Print candidates without storing them")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

type extractInput struct {
	Turns []window.Message `json:"turns"`
	Reply string           `json:"reply"`
}

type extractOutput struct {
	Candidates []model.Candidate   `json:"candidates"`
	Result     *store.UpsertResult `json:"result,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	owner, _ := cmd.Flags().GetString("owner")
	cat, _ := cmd.Flags().GetString("cat")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var in extractInput
	if err := json.Unmarshal(readStdin(), &in); err != nil {
		exitErr("parse input", err)
	}

	cands := newExtractor(newCompleter()).Extract(cmd.Context(), in.Turns, in.Reply)
	for i := range cands {
		cands[i].OwnerID = owner
		cands[i].CatID = cat
	}
	out := extractOutput{Candidates: cands}

	if !dryRun && len(cands) > 0 {
		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()

		out.Result, err = s.Upsert(cmd.Context(), userID, cands)
		if err != nil {
			exitErr("upsert", err)
		}
	}

	printJSON(out)
}
