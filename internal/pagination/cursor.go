// Package pagination provides opaque page tokens for sequence-ordered listings.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type Direction string

const (
	// Forward pages over seq > cursor.
	Forward Direction = "fwd"
	// Backward pages over seq < cursor.
	Backward Direction = "bwd"
)

type Cursor struct {
	Seq   int64     `json:"seq"`
	Dir   Direction `json:"dir"`
	Scope string    `json:"scope,omitempty"`
}

func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode page token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	if c.Dir != Forward && c.Dir != Backward {
		return Cursor{}, fmt.Errorf("invalid cursor direction: %q", c.Dir)
	}
	return c, nil
}

// Next builds the cursor for the page after lastSeq. Descending listings walk backward.
func Next(lastSeq int64, descending bool, scope string) Cursor {
	dir := Forward
	if descending {
		dir = Backward
	}
	return Cursor{Seq: lastSeq, Dir: dir, Scope: scope}
}

// Normalize applies the default and the upper bound to a requested page size.
func Normalize(pageSize int) int {
	if pageSize <= 0 {
		return DefaultPageSize
	}
	if pageSize > MaxPageSize {
		return MaxPageSize
	}
	return pageSize
}
