package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 890, time.FixedZone("x", 3600))
	id := uuid.New()

	parsed, err := ParseCursor(EncodeCursor(Cursor{At: at, ID: id}))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	require.True(t, parsed.At.Equal(at))
	require.Equal(t, time.UTC, parsed.At.Location())
	require.Equal(t, id, parsed.ID)
}

func TestParseCursorEmpty(t *testing.T) {
	parsed, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, parsed)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	_, err := ParseCursor("%%%")
	require.Error(t, err)

	_, err = ParseCursor(base64.URLEncoding.EncodeToString([]byte("nopipe")))
	require.Error(t, err)

	_, err = ParseCursor(base64.URLEncoding.EncodeToString([]byte("2026-01-01T00:00:00Z|not-a-uuid")))
	require.Error(t, err)
}
