package service

import "strings"

// Slugify joins parts with spaces, lowercases, and collapses whitespace runs
// into single dashes.
func Slugify(parts ...string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.Join(parts, " "))), "-")
}
