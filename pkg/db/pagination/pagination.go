// Package pagination implements opaque cursor pagination over
// snowflake-keyed tables. Rows are walked id-descending, so the cursor is
// simply the last id seen.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=50"`
}

func (p Pagination) Limit() int {
	if p.PageSize <= 0 || p.PageSize > maxPageSize {
		return defaultPageSize
	}
	return p.PageSize
}

type Cursor struct {
	ID string `json:"id,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// Build trims an over-fetched page (limit+1 rows) back to limit and
// derives the next-page token from the last row kept.
func Build[T any](items []T, limit int, cursorOf func(T) Cursor) ([]T, PageInfo, error) {
	if len(items) == 0 {
		return items, PageInfo{}, nil
	}

	info := PageInfo{}
	if len(items) > limit {
		info.HasMore = true
		items = items[:limit]
	}

	token, err := EncodeCursor(cursorOf(items[len(items)-1]))
	if err != nil {
		return nil, PageInfo{}, err
	}
	info.NextPageToken = token
	return items, info, nil
}
