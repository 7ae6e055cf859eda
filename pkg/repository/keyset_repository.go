package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/observability/logger"
)

// Default page bounds
const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

// SQLExecutor defines the interface for executing SQL queries
// This can be a *sql.DB, *sql.Tx, or any adapter that provides these methods
type SQLExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// ScanExecutor is implemented by executors that scope per-query resources,
// such as a query timeout, to the scan callback. KeysetRepository prefers it
// over QueryContext when the executor provides both.
type ScanExecutor interface {
	ScanContext(ctx context.Context, scan func(*sql.Rows) error, query string, args ...interface{}) error
}

// EntityMapper defines how to map between entities and database rows
type EntityMapper[T any] interface {
	// FromRow scans a database row into an entity
	FromRow(rows *sql.Rows) (*T, error)

	// Row exposes the entity's column values for cursor capture
	Row(entity *T) codec.Row
}

// KeysetRepository reads pages of a SQL table by keyset. It resolves the
// cursor spec for each request, turns the client's token into a range
// predicate and hands back tokens for the page boundaries.
type KeysetRepository[T any] struct {
	executor  SQLExecutor
	tableName string
	mapper    EntityMapper[T]
	resolver  *cursor.Resolver
	codec     *codec.Codec
	opts      keysetOptions
}

type keysetOptions struct {
	dialect      Dialect
	format       codec.Format
	defaultLimit int
	maxLimit     int
	log          logger.Logger
}

// KeysetOption configures a KeysetRepository.
type KeysetOption func(*keysetOptions)

// WithDialect sets the SQL dialect. Default is Postgres.
func WithDialect(d Dialect) KeysetOption {
	return func(o *keysetOptions) {
		if d != nil {
			o.dialect = d
		}
	}
}

// WithTokenFormat sets the format of issued tokens.
func WithTokenFormat(format codec.Format) KeysetOption {
	return func(o *keysetOptions) {
		o.format = format
	}
}

// WithLimits sets the page size used when none is requested and the upper
// bound applied to requested sizes.
func WithLimits(defaultLimit, maxLimit int) KeysetOption {
	return func(o *keysetOptions) {
		if defaultLimit > 0 {
			o.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			o.maxLimit = maxLimit
		}
	}
}

// WithRepositoryLogger sets the logger.
func WithRepositoryLogger(log logger.Logger) KeysetOption {
	return func(o *keysetOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// NewKeysetRepository creates a new keyset repository
func NewKeysetRepository[T any](
	executor SQLExecutor,
	tableName string,
	mapper EntityMapper[T],
	resolver *cursor.Resolver,
	c *codec.Codec,
	opts ...KeysetOption,
) (*KeysetRepository[T], error) {
	switch {
	case executor == nil:
		return nil, errors.New("executor is required")
	case tableName == "":
		return nil, errors.New("table name is required")
	case mapper == nil:
		return nil, errors.New("entity mapper is required")
	case resolver == nil:
		return nil, errors.New("cursor resolver is required")
	case c == nil:
		return nil, errors.New("cursor codec is required")
	}

	o := keysetOptions{
		dialect:      Postgres,
		format:       codec.FormatAuto,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
		log:          logger.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.defaultLimit > o.maxLimit {
		o.defaultLimit = o.maxLimit
	}

	return &KeysetRepository[T]{
		executor:  executor,
		tableName: tableName,
		mapper:    mapper,
		resolver:  resolver,
		codec:     c,
		opts:      o,
	}, nil
}

// NormalizeLimit applies the repository's default and maximum page size.
func (r *KeysetRepository[T]) NormalizeLimit(limit int) int {
	if limit <= 0 {
		return r.opts.defaultLimit
	}
	if limit > r.opts.maxLimit {
		return r.opts.maxLimit
	}
	return limit
}

// FindPage retrieves one page. One row beyond the limit is fetched to learn
// whether another page follows. Backward pages are read in reverse order and
// flipped before returning, so Items is always in request order.
//
// Cursor spec conflicts are returned as *cursor.Diagnostic and bad tokens as
// *codec.InvalidCursorError.
func (r *KeysetRepository[T]) FindPage(ctx context.Context, req PageRequest) (*Page[T], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := r.opts.log.WithContext(ctx)

	spec, err := r.resolver.Resolve(req.Order, req.CursorFields)
	if err != nil {
		return nil, err
	}

	before := !req.Before.IsEmpty()
	token := req.After
	if before {
		token = req.Before
	}

	var values codec.Values
	if !token.IsEmpty() {
		if values, err = r.codec.DecodeFor(token, codec.FormatAuto, spec); err != nil {
			log.Warn("rejected pagination cursor", "table", r.tableName, "error", err)
			return nil, err
		}
	}

	limit := r.NormalizeLimit(req.Limit)
	query, args, err := buildPageQuery(r.opts.dialect, r.tableName, spec, values, req.Filter, limit+1, before)
	if err != nil {
		return nil, fmt.Errorf("failed to build page query: %w", err)
	}

	items, err := r.query(ctx, query, args)
	if err != nil {
		log.Error("keyset page query failed", "table", r.tableName, "error", err)
		return nil, err
	}

	more := len(items) > limit
	if more {
		items = items[:limit]
	}
	if before {
		slices.Reverse(items)
	}

	// The row the token was cut from lies on the far side of the page, so
	// the direction we came from always has more unless the page is empty.
	page := &Page[T]{Items: items, CursorFields: spec}
	if before {
		page.HasPrev = more
		page.HasNext = len(items) > 0
	} else {
		page.HasNext = more
		page.HasPrev = !req.After.IsEmpty() && len(items) > 0
	}

	start, end, err := codec.FromRows(r.codec, items, func(e T) codec.Row { return r.mapper.Row(&e) }, spec, r.opts.format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page cursors: %w", err)
	}
	if page.HasNext {
		page.NextCursor = end
	}
	if page.HasPrev {
		page.PrevCursor = start
	}

	log.Debug("keyset page fetched",
		"table", r.tableName,
		"cursor_fields", spec.String(),
		"limit", limit,
		"rows", len(items),
		"has_next", page.HasNext,
		"has_prev", page.HasPrev,
	)
	return page, nil
}

func (r *KeysetRepository[T]) query(ctx context.Context, query string, args []interface{}) ([]T, error) {
	entities := []T{}
	scan := func(rows *sql.Rows) error {
		for rows.Next() {
			entity, err := r.mapper.FromRow(rows)
			if err != nil {
				return fmt.Errorf("failed to scan entity: %w", err)
			}
			entities = append(entities, *entity)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating rows: %w", err)
		}
		return nil
	}

	if se, ok := r.executor.(ScanExecutor); ok {
		if err := se.ScanContext(ctx, scan, query, args...); err != nil {
			return nil, err
		}
		return entities, nil
	}

	rows, err := r.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	if err := scan(rows); err != nil {
		return nil, err
	}
	return entities, nil
}
