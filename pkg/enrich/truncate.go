package enrich

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// truncateAtLineBoundary keeps at most maxBytes of content, preserving
// valid UTF-8 at a rune boundary and backing off to the previous newline
// when one exists, so a truncated preview never splits mid-line. A
// "[TRUNCATED: ...]" marker is appended after the kept text, so the result
// can be longer than maxBytes.
func truncateAtLineBoundary(content string, maxBytes int) string {
	if maxBytes <= 0 || len(content) <= maxBytes {
		return content
	}

	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	truncated := content[:cut]
	if idx := strings.LastIndex(truncated, "\n"); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + fmt.Sprintf(
		"\n\n[TRUNCATED: preview limit — original size: %s, limit: %s]",
		formatSize(len(content)), formatSize(maxBytes),
	)
}

func formatSize(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := int64(n) / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
