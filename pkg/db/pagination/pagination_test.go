package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)
	token, err := Cursor{ID: "42", CreatedAt: at}.Token()
	require.NoError(t, err)
	assert.NotContains(t, token, "=")

	c, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", c.ID)
	assert.True(t, at.Equal(c.CreatedAt))
}

func TestParseToken_Rejects(t *testing.T) {
	empty, _ := Cursor{}.Token()
	for _, token := range []string{"%%%", "bm90LWpzb24", empty} {
		_, err := ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestCut(t *testing.T) {
	one, two, three := 1, 2, 3
	cursor := func(v *int) Cursor {
		return Cursor{ID: string(rune('0' + *v)), CreatedAt: time.Unix(int64(*v), 0)}
	}

	rows, info, err := Cut([]*int{&one, &two, &three}, 2, cursor)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.True(t, info.HasMore)
	next, err := ParseToken(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "2", next.ID)

	rows, info, err = Cut([]*int{&one, &two}, 2, cursor)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestPaginationSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Size())
}
