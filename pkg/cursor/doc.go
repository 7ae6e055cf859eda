// Package cursor decides which fields a keyset pagination cursor must carry.
//
// Keyset pagination seeks the next page by comparing the values captured
// from a boundary row against the query ordering. When the captured fields
// do not track the ordering exactly (same fields, same order, same
// direction) the query silently skips or repeats rows. This package checks a
// declared cursor spec against the ordering and derives one when none is
// declared, always ending in a tiebreaker field that is unique per row.
//
// # Specs
//
// Orderings and cursor specs share the Spec type:
//
//	order := cursor.MustNormalize("created_at", []any{"score", "desc"})
//	// [created_at:asc score:desc]
//
// # Resolving
//
//	v, _ := cursor.NewValidator("id")
//	r, _ := cursor.NewResolver(v, cursor.WithLogger(log))
//
//	spec, err := r.Resolve(order, nil)
//	// [created_at:asc score:desc id:asc]
//
//	_, err = r.Resolve(order, cursor.Spec{cursor.Desc("score"), cursor.Asc("created_at")})
//	// errors.Is(err, cursor.ErrFieldOrderMismatch) == true
//
// Encoding the captured values into tokens lives in the codec subpackage.
package cursor
