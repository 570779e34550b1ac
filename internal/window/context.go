package window

import "strings"

// Block preambles tell the agent what each system block is for.
const (
	SummaryPreamble   = "The summary below is the key context of the earlier conversation. Take it into account when replying.\n"
	CoreFactsPreamble = "Below are the core facts about this user and their pets. Always consider them first.\n"
	MemoryPreamble    = "The items below are related long-term memories retrieved from past conversations. Refer to them when useful.\n"
)

// BuildContext assembles the prompt in a fixed order: summary block, pinned
// facts block, retrieved memories block, recent user/assistant turns, then
// the new user message. Empty blocks are left out.
func BuildContext(summary string, pinned, retrieved []string, recent []Message, newMessage string) []Message {
	var out []Message

	if summary != "" {
		out = append(out, Message{Role: RoleSystem, Content: SummaryPreamble + summary})
	}
	if block := bullets(pinned); block != "" {
		out = append(out, Message{Role: RoleSystem, Content: CoreFactsPreamble + block})
	}
	if block := bullets(retrieved); block != "" {
		out = append(out, Message{Role: RoleSystem, Content: MemoryPreamble + block})
	}

	for _, t := range recent {
		if t.Role == RoleUser || t.Role == RoleAssistant {
			out = append(out, t)
		}
	}

	return append(out, Message{Role: RoleUser, Content: newMessage})
}

func bullets(items []string) string {
	var lines []string
	for _, it := range items {
		if it == "" {
			continue
		}
		lines = append(lines, "- "+it)
	}
	return strings.Join(lines, "\n")
}
