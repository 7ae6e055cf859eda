package controller

import (
	"encoding/json"
	"net/http"

	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/observability/logger"
	"github.com/nimburion/keyset/pkg/repository"
)

// PageResponse is the wire form of one page of results.
type PageResponse[T any] struct {
	Data       []T         `json:"data"`
	NextCursor codec.Token `json:"next_cursor,omitempty"`
	PrevCursor codec.Token `json:"prev_cursor,omitempty"`
	HasNext    bool        `json:"has_next"`
	HasPrev    bool        `json:"has_prev"`
	RequestID  string      `json:"request_id,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(v)
}

// WritePage sends a page with HTTP 200 OK.
// A nil page is written as an empty first page.
func WritePage[T any](w http.ResponseWriter, r *http.Request, page *repository.Page[T]) error {
	resp := PageResponse[T]{
		Data:      []T{},
		RequestID: logger.RequestIDFromContext(r.Context()),
	}
	if page != nil {
		if page.Items != nil {
			resp.Data = page.Items
		}
		resp.NextCursor = page.NextCursor
		resp.PrevCursor = page.PrevCursor
		resp.HasNext = page.HasNext
		resp.HasPrev = page.HasPrev
	}
	return JSON(w, http.StatusOK, resp)
}

// Error sends an error response with the appropriate HTTP status code
// It uses MapError to convert application errors to HTTP responses
func Error(w http.ResponseWriter, r *http.Request, err error) error {
	statusCode, errorResponse := MapError(r.Context(), err)
	return JSON(w, statusCode, errorResponse)
}
