// Package metadata encodes environment metadata records as TOML.
//
// The on-disk form is meant to be edited by hand:
//
//	# VEM environment metadata
//	description = 'python work'
//	created = '2026-03-01T10:00:00Z'
//	last_used = '2026-03-02T08:15:30.123456789Z'
//	tags = ['python', 'lsp']
//
// Timestamps are RFC 3339 strings in UTC with full nanosecond precision so
// that Decode(Encode(m)) reproduces m exactly.
package metadata

import (
	"bytes"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"

	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/model"
)

// FileName is the metadata file inside an environment directory.
const FileName = "meta.toml"

const header = "# VEM environment metadata\n"

// record is the serialized shape of model.Metadata.
type record struct {
	Description *string  `toml:"description,omitempty"`
	Created     string   `toml:"created"`
	LastUsed    string   `toml:"last_used,omitempty"`
	Tags        []string `toml:"tags"`
}

// Encode renders m as TOML. Output is deterministic for equal inputs.
// Text that is not valid UTF-8 and timestamps outside years 0000-9999 are
// rejected so that everything Encode writes, Decode reads back.
func Encode(m model.Metadata) ([]byte, error) {
	if err := check(m); err != nil {
		return nil, err
	}
	rec := record{
		Description: m.Description,
		Created:     formatTime(m.Created),
		Tags:        m.Tags,
	}
	if m.LastUsed != nil {
		rec.LastUsed = formatTime(*m.LastUsed)
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(rec); err != nil {
		return nil, errclass.ErrCodec.WithMessage("cannot encode metadata").Wrap(err)
	}
	return buf.Bytes(), nil
}

// Decode parses TOML produced by Encode (or edited by hand).
// Malformed input yields an errclass.ErrCodec error.
func Decode(data []byte) (model.Metadata, error) {
	var rec record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return model.Metadata{}, errclass.ErrCodec.WithMessage("malformed metadata").Wrap(err)
	}

	if rec.Created == "" {
		return model.Metadata{}, errclass.ErrCodec.WithMessage("metadata has no created timestamp")
	}
	created, err := parseTime(rec.Created)
	if err != nil {
		return model.Metadata{}, errclass.ErrCodec.WithMessage("invalid created timestamp").Wrap(err)
	}

	m := model.Metadata{
		Description: rec.Description,
		Created:     created,
		Tags:        model.DedupTags(rec.Tags),
	}
	if rec.LastUsed != "" {
		lastUsed, err := parseTime(rec.LastUsed)
		if err != nil {
			return model.Metadata{}, errclass.ErrCodec.WithMessage("invalid last_used timestamp").Wrap(err)
		}
		m.LastUsed = &lastUsed
	}
	return m, nil
}

func check(m model.Metadata) error {
	if m.Description != nil && !utf8.ValidString(*m.Description) {
		return errclass.ErrCodec.WithMessage("description is not valid UTF-8")
	}
	for _, t := range m.Tags {
		if !utf8.ValidString(t) {
			return errclass.ErrCodec.WithMessage("tag is not valid UTF-8")
		}
	}
	if !inRange(m.Created) {
		return errclass.ErrCodec.WithMessage("created timestamp out of range")
	}
	if m.LastUsed != nil && !inRange(*m.LastUsed) {
		return errclass.ErrCodec.WithMessage("last_used timestamp out of range")
	}
	return nil
}

// inRange reports whether t has a four-digit year in UTC, the range
// RFC 3339 can express.
func inRange(t time.Time) bool {
	y := t.UTC().Year()
	return y >= 0 && y <= 9999
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if !inRange(t) {
		return time.Time{}, fmt.Errorf("%q is outside years 0000-9999 in UTC", s)
	}
	return t.UTC(), nil
}
