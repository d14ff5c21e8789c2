package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()
	require.False(t, a.IsZero())
	require.NotEqual(t, a, b)

	// ULIDs generated in order sort in order.
	require.Less(t, a.String(), b.String())
}

func TestParse(t *testing.T) {
	t.Parallel()

	id := NewAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	parsed, err := Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
	require.Equal(t, int64(1740830400000), parsed.Time().UnixMilli())

	_, err = Parse("definitely not a ulid")
	require.ErrorIs(t, err, ErrInvalid)
}
