package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
)

// ErrInvalidCursor indicates a cursor that cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// PageRequest represents a client request for the page following Cursor.
// An empty Cursor requests the first page.
type PageRequest struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor,omitempty"`
}

// Normalize clamps Limit to the configured bounds.
func (r *PageRequest) Normalize(cfg Config) {
	if r.Limit < 1 {
		r.Limit = cfg.DefaultLimit
	}
	if r.Limit > cfg.MaxLimit {
		r.Limit = cfg.MaxLimit
	}
}

// PageRequestFromQuery parses limit and cursor from URL query values.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	limit, _ := strconv.Atoi(values.Get("limit"))

	req := PageRequest{
		Limit:  limit,
		Cursor: values.Get("cursor"),
	}

	req.Normalize(cfg)
	return req
}

// Page holds one page of items and the cursor for the next page.
// NextCursor is empty on the last page.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// NewPage builds a Page from up to limit+1 fetched rows. When more than limit
// rows are present the extra row is dropped and key derives the next cursor
// from the last retained item.
func NewPage[T any, K any](rows []T, limit int, key func(T) K) (Page[T], error) {
	if rows == nil {
		rows = []T{}
	}
	if limit < 1 || len(rows) <= limit {
		return Page[T]{Items: rows}, nil
	}

	items := rows[:limit]
	cursor, err := EncodeCursor(key(items[len(items)-1]))
	if err != nil {
		return Page[T]{}, err
	}

	return Page[T]{Items: items, NextCursor: cursor}, nil
}

// EncodeCursor serializes a composite key as base64url JSON.
func EncodeCursor[K any](key K) (string, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor parses a cursor produced by EncodeCursor.
// Unknown fields are rejected so cursors for other key shapes fail to decode.
func DecodeCursor[K any](cursor string) (K, error) {
	var key K

	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return key, ErrInvalidCursor
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&key); err != nil {
		return key, ErrInvalidCursor
	}

	return key, nil
}
