package models

import (
	"slices"
	"strings"
)

// NormaliseTag trims tag, collapses inner whitespace runs to one space and
// lower-cases it.
func NormaliseTag(tag string) string {
	return strings.ToLower(strings.Join(strings.Fields(tag), " "))
}

// HasTag reports whether tags contains tag, ignoring case and whitespace
// runs.
func HasTag(tags []string, tag string) bool {
	t := NormaliseTag(tag)
	for _, existing := range tags {
		if NormaliseTag(existing) == t {
			return true
		}
	}
	return false
}

// NormaliseTags returns tags normalised, without blanks and duplicates, in
// first-appearance order. It returns nil when nothing remains.
func NormaliseTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		out = AddTag(out, t)
	}
	return out
}

// AddTag returns tags with raw appended in normalised form. Blank and
// duplicate tags leave tags unchanged.
func AddTag(tags []string, raw string) []string {
	tag := NormaliseTag(raw)
	if tag == "" || HasTag(tags, tag) {
		return tags
	}
	return append(slices.Clone(tags), tag)
}

// RemoveTag returns tags without any tag equal to tag after normalisation.
func RemoveTag(tags []string, tag string) []string {
	target := NormaliseTag(tag)
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if NormaliseTag(t) != target {
			out = append(out, t)
		}
	}
	return out
}

// AddTagsFromInput adds every comma-separated tag in input.
func AddTagsFromInput(tags []string, input string) []string {
	next := tags
	for _, part := range strings.Split(input, ",") {
		next = AddTag(next, part)
	}
	return next
}
