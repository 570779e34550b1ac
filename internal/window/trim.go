package window

const ellipsis = "…"

// TrimBlock fits texts into a char budget. Each item is first cut to
// perItemChars, then items are taken in order until maxChars is reached; the
// item that crosses the budget is cut to the remainder. Cut items end in an
// ellipsis. A non-positive limit disables that limit.
func TrimBlock(texts []string, maxChars, perItemChars int) []string {
	out := []string{}
	used := 0
	for _, t := range texts {
		if t == "" {
			continue
		}
		if perItemChars > 0 {
			t = cut(t, perItemChars)
		}
		n := len([]rune(t))
		if maxChars <= 0 || used+n <= maxChars {
			out = append(out, t)
			used += n
			continue
		}
		if remaining := maxChars - used; remaining > 1 {
			out = append(out, string([]rune(t)[:remaining-1])+ellipsis)
		}
		break
	}
	return out
}

// cut shortens s to at most n runes, ellipsis included.
func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return ellipsis
	}
	return string(r[:n-1]) + ellipsis
}
