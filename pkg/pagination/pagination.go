// Package pagination implements keyset paging over (created_at, id) for the
// catalog, order history and audit trail listings. Offsets are avoided on
// purpose: order and audit tables only grow, and a keyset cursor stays stable
// while new rows arrive.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size used when the client sends none.
	DefaultLimit = 25
	// MaxLimit caps a single page; larger requests are clamped, not rejected.
	MaxLimit = 100
)

// Params carries the paging inputs parsed from a list request.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor marks the position after the last row of the previous page. The id
// breaks ties between rows created in the same instant.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps the requested page size into [1, MaxLimit], falling
// back to DefaultLimit for zero and negative values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer is the SQL LIMIT for a page fetch: one extra row tells the
// repository whether another page exists without a second query.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor renders the cursor as an opaque token safe to hand to clients.
// The timestamp keeps nanosecond precision so the follow-up query lands
// exactly after the row that produced it.
func EncodeCursor(cursor Cursor) string {
	raw := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// ParseCursor is the inverse of EncodeCursor. A blank token means the first
// page and yields a nil cursor without error; a malformed token is a client
// error and is rejected.
func ParseCursor(token string) (*Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	stamp, rest, found := strings.Cut(string(raw), "|")
	if !found {
		return nil, fmt.Errorf("invalid cursor format")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}
