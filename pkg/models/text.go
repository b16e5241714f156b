package models

// Truncate shortens s to at most n runes, appending "..." when it cuts.
// Multi-byte characters are never split.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}
