package metadata_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/metadata"
	"github.com/vem-project/vem/pkg/model"
)

func ptr[T any](v T) *T { return &v }

func TestRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	lastUsed := time.Date(2026, 3, 2, 8, 15, 30, 1, time.UTC)

	cases := map[string]model.Metadata{
		"empty tags and no description": {Created: created},
		"full": {
			Description: ptr("python work"),
			Created:     created,
			LastUsed:    &lastUsed,
			Tags:        []string{"python", "lsp"},
		},
		"quotes and newlines": {
			Description: ptr("it's \"quoted\"\nand multi-line"),
			Created:     created,
			Tags:        []string{"a"},
		},
		"unicode": {
			Description: ptr("日本語の設定"),
			Created:     created,
			Tags:        []string{"über", "日本"},
		},
	}

	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			data, err := metadata.Encode(m)
			require.NoError(t, err)

			got, err := metadata.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, m, got)
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	m := model.Metadata{
		Description: ptr("x"),
		Created:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Tags:        []string{"b", "a"},
	}
	a, err := metadata.Encode(m)
	require.NoError(t, err)
	b, err := metadata.Encode(m)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncode_OmitsAbsentFields(t *testing.T) {
	data, err := metadata.Encode(model.Metadata{Created: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	text := string(data)
	assert.NotContains(t, text, "description")
	assert.NotContains(t, text, "last_used")
	assert.Contains(t, text, "created")
	assert.Contains(t, text, "tags")
}

func TestEncode_NormalizesToUTC(t *testing.T) {
	local := time.Date(2026, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 2*3600))
	data, err := metadata.Encode(model.Metadata{Created: local})
	require.NoError(t, err)
	assert.Contains(t, string(data), "2026-01-01T10:00:00Z")
}

func TestDecode_HandEdited(t *testing.T) {
	text := strings.Join([]string{
		`description = "edited"`,
		`created = "2026-01-01T00:00:00+02:00"`,
		`tags = ["x", "y", "x"]`,
		`extra = "ignored"`,
	}, "\n")

	m, err := metadata.Decode([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, "edited", m.DescriptionOr(""))
	assert.Equal(t, time.Date(2025, 12, 31, 22, 0, 0, 0, time.UTC), m.Created)
	assert.Equal(t, []string{"x", "y"}, m.Tags)
	assert.Nil(t, m.LastUsed)
}

func TestDecode_Malformed(t *testing.T) {
	inputs := map[string]string{
		"not toml":        "this is = = not toml",
		"missing created": `tags = []`,
		"bad created":     `created = "yesterday"`,
		"bad last used":   "created = \"2026-01-01T00:00:00Z\"\nlast_used = \"soon\"",
		"wrong type":      "created = \"2026-01-01T00:00:00Z\"\ntags = \"x\"",
		"empty":           "",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := metadata.Decode([]byte(in))
			require.ErrorIs(t, err, errclass.ErrCodec)
		})
	}
}

func TestEncode_RejectsInvalidUTF8(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := metadata.Encode(model.Metadata{Description: ptr("a\xffb"), Created: created})
	require.ErrorIs(t, err, errclass.ErrCodec)

	_, err = metadata.Encode(model.Metadata{Created: created, Tags: []string{"ok", "b\xfe"}})
	require.ErrorIs(t, err, errclass.ErrCodec)
}

func TestEncode_RejectsOutOfRangeTimestamps(t *testing.T) {
	_, err := metadata.Encode(model.Metadata{Created: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.ErrorIs(t, err, errclass.ErrCodec)

	lastUsed := time.Date(-1, 12, 31, 0, 0, 0, 0, time.UTC)
	_, err = metadata.Encode(model.Metadata{Created: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), LastUsed: &lastUsed})
	require.ErrorIs(t, err, errclass.ErrCodec)
}

func TestDecode_RejectsYearBeforeZeroInUTC(t *testing.T) {
	_, err := metadata.Decode([]byte(`created = "0000-01-01T00:00:00+01:00"`))
	require.ErrorIs(t, err, errclass.ErrCodec)
}

func TestRoundTrip_EmptyDescription(t *testing.T) {
	in := model.Metadata{Description: ptr(""), Created: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	data, err := metadata.Encode(in)
	require.NoError(t, err)

	out, err := metadata.Decode(data)
	require.NoError(t, err)
	require.NotNil(t, out.Description)
	assert.Equal(t, "", *out.Description)
}
