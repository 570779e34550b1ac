package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/convo-memory/internal/turn"
	"github.com/rcliao/convo-memory/internal/window"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [message]",
		Short: "Assemble the prompt context for a new user message",
		Long: "Read the session (summary and turns) as JSON from stdin, compact it if due, gather pinned facts\n" +
			"and retrieved memories, and print the ordered messages plus the updated session.",
		Args: cobra.MinimumNArgs(1),
		Run:  runContext,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().String("owner", "", "Owner id")
	cmd.Flags().String("cat", "", "Cat id")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

type contextOutput struct {
	Messages []window.Message `json:"messages"`
	Session  *turn.Session    `json:"session"`
}

func runContext(cmd *cobra.Command, args []string) {
	sess := readSession(cmd)

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	msgs, err := newPipeline(s).Prepare(cmd.Context(), sess, strings.Join(args, " "))
	if err != nil {
		exitErr("context", err)
	}

	printJSON(contextOutput{Messages: msgs, Session: sess})
}

// readSession decodes a session from stdin (empty input is a new session)
// and applies the scope flags.
func readSession(cmd *cobra.Command) *turn.Session {
	sess := &turn.Session{}
	if data := readStdin(); len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, sess); err != nil {
			exitErr("parse session", err)
		}
	}
	if v, _ := cmd.Flags().GetString("user"); v != "" {
		sess.UserID = v
	}
	if v, _ := cmd.Flags().GetString("owner"); v != "" {
		sess.OwnerID = v
	}
	if v, _ := cmd.Flags().GetString("cat"); v != "" {
		sess.CatID = v
	}
	if sess.Turns == nil {
		sess.Turns = []window.Message{}
	}
	return sess
}
