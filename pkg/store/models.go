package store

import (
	"strings"

	"golang.org/x/text/cases"
)

// Record is a single translation entry.
type Record struct {
	Key     string   `json:"key" yaml:"key"`
	English string   `json:"english" yaml:"english"`
	Arabic  string   `json:"arabic" yaml:"arabic"`
	Tags    []string `json:"tags" yaml:"tags"`
	Version int64    `json:"version" yaml:"version"`
}

// HasTag reports whether tag is one of the record's tags.
func (r Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (r Record) clone() Record {
	r.Tags = append([]string(nil), r.Tags...)
	return r
}

// Snapshot is the on-disk layout of the store.
type Snapshot struct {
	Data []Record `json:"data" yaml:"data"`
}

// NormalizeTags trims tags, drops empty ones and removes duplicates,
// keeping the first occurrence of each.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// UnionTags appends the tags of extra missing from base.
func UnionTags(base, extra []string) []string {
	return NormalizeTags(append(append([]string(nil), base...), extra...))
}

// FoldText returns the case-folded form used to compare english texts.
// A Caser keeps state, so each call gets its own.
func FoldText(s string) string {
	return cases.Fold().String(s)
}

// SameText reports whether a and b are equal under Unicode case folding.
func SameText(a, b string) bool {
	return FoldText(a) == FoldText(b)
}
