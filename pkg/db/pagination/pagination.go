package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 250
)

var ErrInvalidToken = errors.New("invalid page token")

// Pagination is the page_token and page_size query pair accepted by list
// endpoints.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size" binding:"omitempty,gte=1,lte=250"`
}

func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// Cursor is the last row of a page in (created_at desc, id desc) order.
type Cursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Token encodes the cursor as an opaque URL-safe string.
func (c Cursor) Token() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ParseToken reverses Token. Any malformed or incomplete token yields
// ErrInvalidToken.
func ParseToken(token string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil || c.ID == "" || c.CreatedAt.IsZero() {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// Cut trims rows fetched with limit+1 down to limit. When the extra row is
// present the next page token points at the last row kept.
func Cut[T any](rows []*T, limit int, cursor func(*T) Cursor) ([]*T, PageInfo, error) {
	if limit <= 0 || len(rows) <= limit {
		return rows, PageInfo{}, nil
	}
	rows = rows[:limit]
	token, err := cursor(rows[limit-1]).Token()
	if err != nil {
		return nil, PageInfo{}, err
	}
	return rows, PageInfo{HasMore: true, NextPageToken: token}, nil
}
