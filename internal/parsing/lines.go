// Package parsing turns OCR text from a receipt into items and a store
// total, and checks the result for inconsistencies.
package parsing

import "strings"

// SplitLines returns the trimmed, non-empty lines of text in document order
func SplitLines(text string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
