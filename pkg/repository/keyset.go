package repository

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
)

// argBuilder accumulates bind arguments for one statement.
type argBuilder struct {
	dialect Dialect
	offset  int
	args    []interface{}
}

func (b *argBuilder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(b.offset + len(b.args))
}

// KeysetPredicate builds the condition selecting rows strictly after the
// boundary values under spec, or strictly before them when before is set.
// Placeholders are numbered from startArg.
//
// For spec (a asc, b desc) and forward paging the result is
//
//	("a" > $1 OR ("a" = $1 AND "b" < $2))
func KeysetPredicate(d Dialect, spec cursor.Spec, values codec.Values, startArg int, before bool) (string, []interface{}, error) {
	if startArg < 1 {
		startArg = 1
	}
	b := &argBuilder{dialect: d, offset: startArg - 1}
	clause, err := keysetClause(b, spec, values, before)
	if err != nil {
		return "", nil, err
	}
	return clause, b.args, nil
}

func keysetClause(b *argBuilder, spec cursor.Spec, values codec.Values, before bool) (string, error) {
	if len(spec) == 0 {
		return "", nil
	}

	columns := make([]string, len(spec))
	for i, fs := range spec {
		v, ok := values[fs.Field]
		if !ok {
			return "", fmt.Errorf("%w: %q", codec.ErrMissingValue, fs.Field)
		}
		if v == nil {
			return "", fmt.Errorf("%w: %q", ErrNullCursorValue, fs.Field)
		}
		columns[i] = b.dialect.QuoteIdentifier(string(fs.Field))
	}

	// Numbered dialects bind each boundary value once and reference it from
	// every disjunct.
	var shared []string
	if b.dialect.NumberedPlaceholders() {
		shared = make([]string, len(spec))
		for i, fs := range spec {
			shared[i] = b.bind(values[fs.Field])
		}
	}
	placeholder := func(i int) string {
		if shared != nil {
			return shared[i]
		}
		return b.bind(values[spec[i].Field])
	}

	disjuncts := make([]string, len(spec))
	for k, fs := range spec {
		terms := make([]string, 0, k+1)
		for i := 0; i < k; i++ {
			terms = append(terms, fmt.Sprintf("%s = %s", columns[i], placeholder(i)))
		}
		terms = append(terms, fmt.Sprintf("%s %s %s", columns[k], comparator(fs.Direction, before), placeholder(k)))
		if len(terms) == 1 {
			disjuncts[k] = terms[0]
		} else {
			disjuncts[k] = "(" + strings.Join(terms, " AND ") + ")"
		}
	}
	return "(" + strings.Join(disjuncts, " OR ") + ")", nil
}

func comparator(dir cursor.Direction, before bool) string {
	forward := dir != cursor.Descending
	if before {
		forward = !forward
	}
	if forward {
		return ">"
	}
	return "<"
}

// OrderByClause renders spec as an ORDER BY list. With reverse every
// direction is flipped, which is how a backward page is fetched.
func OrderByClause(d Dialect, spec cursor.Spec, reverse bool) string {
	parts := make([]string, len(spec))
	for i, fs := range spec {
		dir := fs.Direction
		if reverse {
			dir = dir.Reverse()
		}
		order := "ASC"
		if dir == cursor.Descending {
			order = "DESC"
		}
		parts[i] = d.QuoteIdentifier(string(fs.Field)) + " " + order
	}
	return strings.Join(parts, ", ")
}

// filterClauses renders an equality filter in stable key order.
func filterClauses(b *argBuilder, filter Filter) []string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf("%s = %s", b.dialect.QuoteIdentifier(k), b.bind(filter[k])))
	}
	return clauses
}

// buildPageQuery assembles the SELECT for one keyset page. values may be nil
// for the first page. limit is the number of rows to fetch.
func buildPageQuery(d Dialect, table string, spec cursor.Spec, values codec.Values, filter Filter, limit int, before bool) (string, []interface{}, error) {
	b := &argBuilder{dialect: d}

	where := filterClauses(b, filter)
	if values != nil {
		clause, err := keysetClause(b, spec, values, before)
		if err != nil {
			return "", nil, err
		}
		if clause != "" {
			where = append(where, clause)
		}
	}

	query := fmt.Sprintf("SELECT * FROM %s", d.QuoteIdentifier(table))
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if len(spec) > 0 {
		query += " ORDER BY " + OrderByClause(d, spec, before)
	}
	query += " LIMIT " + b.bind(limit)
	return query, b.args, nil
}
