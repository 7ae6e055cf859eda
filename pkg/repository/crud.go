package repository

import (
	"context"
	"errors"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
)

// Common pagination errors
var (
	// ErrConflictingCursors is returned when a request carries both After and Before.
	ErrConflictingCursors = errors.New("after and before cursors are mutually exclusive")
	// ErrNullCursorValue is returned when a cursor carries a NULL for a keyset column.
	ErrNullCursorValue = errors.New("cursor value is null")
)

// PageReader reads one page of entities by keyset.
type PageReader[T any] interface {
	FindPage(ctx context.Context, req PageRequest) (*Page[T], error)
}

// Filter represents field-based equality criteria, combined with AND.
type Filter map[string]interface{}

// PageRequest describes a keyset page query.
type PageRequest struct {
	// Order is the requested ordering.
	Order cursor.Spec
	// CursorFields is the client supplied cursor spec; nil means infer.
	CursorFields cursor.Spec
	Filter       Filter
	Limit        int
	// After continues forward from the end of a previous page.
	After codec.Token
	// Before continues backward from the start of a previous page.
	Before codec.Token
}

// Validate checks request shape.
func (r PageRequest) Validate() error {
	if !r.After.IsEmpty() && !r.Before.IsEmpty() {
		return ErrConflictingCursors
	}
	return nil
}

// Page is one page of results with the tokens to continue in either direction.
type Page[T any] struct {
	Items        []T         `json:"data"`
	NextCursor   codec.Token `json:"next_cursor,omitempty"`
	PrevCursor   codec.Token `json:"prev_cursor,omitempty"`
	HasNext      bool        `json:"has_next"`
	HasPrev      bool        `json:"has_prev"`
	CursorFields cursor.Spec `json:"-"`
}
