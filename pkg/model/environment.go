package model

import (
	"slices"
	"time"
)

// Environment is a named, directory-backed editor configuration set.
// Path is always derived from the storage root and Name; it is never persisted.
type Environment struct {
	Name string   `json:"name"`
	Path string   `json:"path"`
	Meta Metadata `json:"meta"`
}

// Metadata is stored at <root>/<name>/meta.toml.
type Metadata struct {
	Description *string    `json:"description,omitempty"`
	Created     time.Time  `json:"created"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	Tags        []string   `json:"tags,omitempty"` // ordered set; nil when empty
}

// NewMetadata returns a fresh record created at the given time.
func NewMetadata(created time.Time, description *string) Metadata {
	return Metadata{
		Description: description,
		Created:     created.UTC(),
	}
}

// DescriptionOr returns the description, or fallback when there is none.
func (m Metadata) DescriptionOr(fallback string) string {
	if m.Description == nil {
		return fallback
	}
	return *m.Description
}

// HasTag reports whether tag is present.
func (m Metadata) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

// WithTags returns a copy of m with add appended (skipping duplicates) and
// remove dropped. Insertion order is preserved.
func (m Metadata) WithTags(add, remove []string) Metadata {
	out := m
	out.Tags = nil
	for _, t := range m.Tags {
		if !slices.Contains(remove, t) {
			out.Tags = appendUnique(out.Tags, t)
		}
	}
	for _, t := range add {
		if !slices.Contains(remove, t) {
			out.Tags = appendUnique(out.Tags, t)
		}
	}
	return out
}

// DedupTags collapses duplicate tags keeping the first occurrence.
// It returns nil for an empty input.
func DedupTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		out = appendUnique(out, t)
	}
	return out
}

func appendUnique(tags []string, t string) []string {
	if slices.Contains(tags, t) {
		return tags
	}
	return append(tags, t)
}
