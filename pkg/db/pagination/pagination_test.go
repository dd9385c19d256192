package pagination

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorTokenIsQuerySafe(t *testing.T) {
	at := time.Date(2024, 5, 14, 9, 30, 0, 123456789, time.FixedZone("EAT", 3*3600))
	token, err := EncodeCursor(NewCursor("1790012345678901248", at))
	require.NoError(t, err)
	assert.False(t, strings.ContainsAny(token, "+/="))

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "1790012345678901248", cursor.ID)
	got, err := cursor.Time()
	require.NoError(t, err)
	assert.True(t, at.Equal(got))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not base64!", "e30", ""} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, token)
	}
}

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []*int{ptr(3), ptr(2), ptr(1)}
	last := func(v *int) string { return string(rune('0' + *v)) }

	info := BuildCursorPageInfo(rows, 2, last)
	assert.True(t, info.HasMore)
	assert.Equal(t, "2", info.NextPageToken)

	info = BuildCursorPageInfo(rows, 3, last)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestPaginationSize(t *testing.T) {
	assert.Equal(t, 50, Pagination{}.Size(50, 250))
	assert.Equal(t, 250, Pagination{PageSize: 1000}.Size(50, 250))
	assert.Equal(t, 20, Pagination{PageSize: 20}.Size(50, 250))
}

func ptr(v int) *int { return &v }
