package recall

import "strings"

// RewriteQuery prefixes the rolling summary to the user message so retrieval
// also matches context carried over from compacted turns.
func RewriteQuery(message, summary string) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return message
	}
	return "Summary: " + summary + "\n\nQuestion: " + message
}
