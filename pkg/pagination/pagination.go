// Package pagination implements keyset paging over (created_at, id), newest first.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Cursor is the sort key of the last row on a page. The next page starts
// strictly after it.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

// NormalizeLimitWithin clamps limit to (0, max], substituting def for non-positive input.
func NormalizeLimitWithin(limit, def, max int) int {
	if def <= 0 {
		def = DefaultLimit
	}
	if max <= 0 {
		max = MaxLimit
	}
	switch {
	case limit <= 0:
		limit = def
	case limit > max:
		limit = max
	}
	return min(limit, max)
}

// EncodeCursor returns an opaque URL-safe token for c.
func EncodeCursor(c Cursor) string {
	c.CreatedAt = c.CreatedAt.UTC()
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a token from EncodeCursor. A blank token means the first page.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	if c.CreatedAt.IsZero() || c.ID == uuid.Nil {
		return nil, errors.New("invalid cursor: missing sort key")
	}
	return &c, nil
}

// Trim takes rows fetched with limit+1 and returns the page plus the cursor
// for the next one, empty when rows fit in limit.
func Trim[T any](rows []T, limit int, key func(T) Cursor) ([]T, string) {
	if limit <= 0 || len(rows) <= limit {
		return rows, ""
	}
	page := rows[:limit]
	return page, EncodeCursor(key(page[len(page)-1]))
}
