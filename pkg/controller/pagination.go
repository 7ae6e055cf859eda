package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/observability/logger"
	"github.com/nimburion/keyset/pkg/repository"
)

// Query parameters read by ParsePageRequest.
const (
	ParamLimit        = "limit"
	ParamCursorFields = "cursor_fields"
	ParamAfter        = "after"
	ParamBefore       = "before"
)

// Options controls how page requests are read.
type Options struct {
	// Order is the ordering of the endpoint. Clients cannot change it.
	Order cursor.Spec
	// Filter is copied into every request.
	Filter       repository.Filter
	DefaultLimit int
	MaxLimit     int
	// MaxTokenBytes bounds the after/before parameters before any decoding.
	MaxTokenBytes int
}

// ParsePageRequest reads limit, cursor_fields, after and before from the
// query string. Tokens are only checked for size here; decoding happens in
// the repository against the resolved cursor fields.
func ParsePageRequest(r *http.Request, opts Options) (repository.PageRequest, error) {
	q := r.URL.Query()
	req := repository.PageRequest{
		Order:  opts.Order,
		Filter: opts.Filter,
		After:  codec.Token(strings.TrimSpace(q.Get(ParamAfter))),
		Before: codec.Token(strings.TrimSpace(q.Get(ParamBefore))),
	}

	limit, err := parseLimit(q.Get(ParamLimit), opts)
	if err != nil {
		return repository.PageRequest{}, err
	}
	req.Limit = limit

	if raw := q.Get(ParamCursorFields); strings.TrimSpace(raw) != "" {
		spec, err := cursor.ParseSpec(raw)
		if err != nil {
			return repository.PageRequest{}, NewValidationError("cursor_fields is malformed", map[string]interface{}{
				"parameter": ParamCursorFields,
				"cause":     err.Error(),
			})
		}
		req.CursorFields = spec
	}

	maxBytes := opts.MaxTokenBytes
	if maxBytes <= 0 {
		maxBytes = codec.DefaultMaxTokenBytes
	}
	for _, tok := range []codec.Token{req.After, req.Before} {
		if len(tok) > maxBytes {
			return repository.PageRequest{}, NewInvalidCursorError(&codec.InvalidCursorError{
				Format: codec.FormatAuto,
				Reason: codec.ReasonTooLarge,
			})
		}
	}

	if err := ValidateDTO(req); err != nil {
		return repository.PageRequest{}, err
	}
	return req, nil
}

func parseLimit(raw string, opts Options) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if opts.DefaultLimit > 0 {
			return opts.DefaultLimit, nil
		}
		return repository.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, NewValidationError("limit must be a positive integer", map[string]interface{}{
			"parameter": ParamLimit,
			"value":     raw,
		})
	}
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = repository.MaxLimit
	}
	return min(limit, maxLimit), nil
}

// PageHandler serves GET requests for one paged endpoint.
func PageHandler[T any](reader repository.PageReader[T], opts Options, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			_ = JSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed"})
			return
		}

		req, err := ParsePageRequest(r, opts)
		if err != nil {
			_ = Error(w, r, err)
			return
		}
		page, err := reader.FindPage(r.Context(), req)
		if err != nil {
			logPageError(r.Context(), log, err)
			_ = Error(w, r, err)
			return
		}
		_ = WritePage(w, r, page)
	})
}

func logPageError(ctx context.Context, log logger.Logger, err error) {
	l := log.WithContext(ctx)
	var appErr *AppError
	switch {
	case errors.As(err, &appErr) && appErr.HTTPStatus >= 500:
		l.Error("page request failed", "error", err)
	case toAppError(err) != nil:
		l.Info("page request rejected", "error", err)
	default:
		l.Error("page request failed", "error", err)
	}
}
