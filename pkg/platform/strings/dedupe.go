// Package strings provides string slice utilities for identifier lists.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and blank entries from values, trimming
// whitespace from each element. Order is preserved and case is significant,
// so "01:01P" and "01:01p" stay distinct.
func DedupeAndTrim(values []string) []string {
	return Union(values)
}

// Union merges several identifier lists into one trimmed, duplicate-free list
// in first-seen order.
//
// Example:
//
//	Union([]string{"01:01P", " 02:01P"}, []string{"02:01P", ""})
//	// Returns: []string{"01:01P", "02:01P"}
func Union(lists ...[]string) []string {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	if total == 0 {
		if len(lists) == 1 {
			return lists[0]
		}
		return nil
	}

	seen := make(map[string]struct{}, total)
	result := make([]string, 0, total)
	for _, l := range lists {
		for _, v := range l {
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				continue
			}
			if _, ok := seen[trimmed]; ok {
				continue
			}
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}
