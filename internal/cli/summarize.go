package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Compact a long session into the rolling summary",
		Long: "Read a session JSON from stdin. If it holds more user turns than window.trigger_turns, older\n" +
			"turns are summarized into the rolling summary. Prints the updated session.",
		Run: runSummarize,
	}

	cmd.Flags().StringP("user", "u", "", "User id")

	RootCmd.AddCommand(cmd)
}

func runSummarize(cmd *cobra.Command, args []string) {
	sess := readSession(cmd)

	sess.Summary, sess.Turns = newWindowManager(newCompleter()).MaybeUpdateSummary(cmd.Context(), sess.Summary, sess.Turns)

	printJSON(sess)
}
