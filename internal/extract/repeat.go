package extract

import "strings"

// collapseRepeats undoes the mail-client failure mode where the typed
// command is echoed back-to-back verbatim ("cmdcmd" or "cmd cmd"). It scans
// prefix widths smallest first and, when the whole string is that prefix
// repeated end to end, returns a single copy. Strings with no repetition
// come back unchanged.
//
// The final chunk may be cut short, but a short chunk only counts when it
// equals the prefix minus its trailing whitespace. That accepts
// "cmd cmd" (prefix "cmd ", tail "cmd") while refusing to mangle ordinary
// strings like "aba". Quadratic worst case, bounded by MaxCommandLength.
func collapseRepeats(s string) string {
	n := len(s)
	for width := 1; 2*width <= n+1; width++ {
		prefix := s[:width]
		if isRepetitionOf(s, prefix) {
			return strings.TrimRight(prefix, " \t\n")
		}
	}
	return s
}

// isRepetitionOf reports whether s is prefix laid end to end, allowing a
// whitespace-trimmed final chunk.
func isRepetitionOf(s, prefix string) bool {
	width := len(prefix)
	n := len(s)
	if width == 0 || n <= width {
		return false
	}
	for j := width; j < n; j += width {
		if j+width <= n {
			if s[j:j+width] != prefix {
				return false
			}
			continue
		}
		if s[j:] != strings.TrimRight(prefix, " \t\n") {
			return false
		}
	}
	return true
}
