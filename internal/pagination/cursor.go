// Package pagination implements keyset cursors over (timestamp, id) ordered
// listings, newest first.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor points just past the last item of the previous page.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// Page is one slice of a listing plus the cursor for the next one.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

// EncodeCursor returns an opaque, URL-safe cursor for the item identified by
// lastID and timestamp.
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + timestamp.UTC().Format(time.RFC3339Nano)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor reverses EncodeCursor. An empty cursor decodes to nil.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	lastID, ts, ok := strings.Cut(string(decoded), "|")
	if !ok || lastID == "" {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: lastID, Timestamp: timestamp}, nil
}

// ClampLimit maps non-positive limits to DefaultLimit and caps at MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// NewPage builds a page from rows fetched with LIMIT limit+1. The extra row,
// when present, only signals that another page exists.
func NewPage[T any](rows []T, limit int, key func(T) (string, time.Time)) Page[T] {
	page := Page[T]{Items: rows}
	if page.Items == nil {
		page.Items = []T{}
	}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.HasMore = true
		id, ts := key(page.Items[len(page.Items)-1])
		page.NextCursor = EncodeCursor(id, ts)
	}
	return page
}
