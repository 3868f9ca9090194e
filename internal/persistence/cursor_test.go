package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &domain.Cursor{StartedAt: time.Date(2024, 3, 1, 7, 30, 0, 123, time.UTC), ID: "w|1"}

	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.True(t, in.StartedAt.Equal(out.StartedAt))
	require.Equal(t, "w|1", out.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	cur, err := DecodeCursor("   ")
	require.NoError(t, err)
	require.Nil(t, cur)

	for _, token := range []string{"%%%", "bm9waXBl", "MjAyNHx4"} {
		_, err := DecodeCursor(token)
		require.Error(t, err, token)
	}
}
