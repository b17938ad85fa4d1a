package util

import "strings"

// TrimSpace: trims ASCII and common unicode whitespace.
func TrimSpace(s string) string {
	return strings.TrimSpace(s)
}

// Chunk: splits a slice into fixed-size windows. The last window may be
// shorter. A non-positive size yields a single window.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}
	var chunks [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
