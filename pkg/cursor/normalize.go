package cursor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSpec is returned when a raw spec element cannot be normalized.
var ErrInvalidSpec = errors.New("invalid field spec")

// Normalize converts heterogeneous raw spec elements into a Spec.
//
// Each element may be:
//   - a bare field name (string or Field), which sorts ascending
//   - a FieldSpec
//   - a []string or []any holding field, direction and optional trailing options
//   - a Spec or []FieldSpec, which is flattened in place
//
// Trailing options are ignored. Duplicates are preserved as given and field
// existence is not checked.
func Normalize(raw ...any) (Spec, error) {
	out := make(Spec, 0, len(raw))
	for i, elem := range raw {
		var nested []FieldSpec
		switch v := elem.(type) {
		case Spec:
			nested = v
		case []FieldSpec:
			nested = v
		default:
			fs, err := normalizeOne(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, fs)
			continue
		}
		for j, inner := range nested {
			fs, err := normalizeOne(inner)
			if err != nil {
				return nil, fmt.Errorf("element %d.%d: %w", i, j, err)
			}
			out = append(out, fs)
		}
	}
	return out, nil
}

// MustNormalize is like Normalize but panics on error. It is intended for
// specs declared as package-level literals.
func MustNormalize(raw ...any) Spec {
	spec, err := Normalize(raw...)
	if err != nil {
		panic(err)
	}
	return spec
}

func normalizeOne(elem any) (FieldSpec, error) {
	switch v := elem.(type) {
	case string:
		return newFieldSpec(v, Ascending)
	case Field:
		return newFieldSpec(string(v), Ascending)
	case FieldSpec:
		if !v.Direction.Valid() {
			return FieldSpec{}, fmt.Errorf("%w: unknown direction %q for %q", ErrInvalidSpec, v.Direction, v.Field)
		}
		return newFieldSpec(string(v.Field), v.Direction)
	case []string:
		tuple := make([]any, len(v))
		for i := range v {
			tuple[i] = v[i]
		}
		return normalizeTuple(tuple)
	case []any:
		return normalizeTuple(v)
	case nil:
		return FieldSpec{}, fmt.Errorf("%w: nil element", ErrInvalidSpec)
	default:
		return FieldSpec{}, fmt.Errorf("%w: unsupported element type %T", ErrInvalidSpec, elem)
	}
}

// normalizeTuple handles (field), (field, direction) and
// (field, direction, options...) shapes.
func normalizeTuple(tuple []any) (FieldSpec, error) {
	if len(tuple) == 0 {
		return FieldSpec{}, fmt.Errorf("%w: empty tuple", ErrInvalidSpec)
	}

	var name string
	switch f := tuple[0].(type) {
	case string:
		name = f
	case Field:
		name = string(f)
	default:
		return FieldSpec{}, fmt.Errorf("%w: field must be a string, got %T", ErrInvalidSpec, tuple[0])
	}

	dir := Ascending
	if len(tuple) > 1 {
		switch d := tuple[1].(type) {
		case Direction:
			if !d.Valid() {
				return FieldSpec{}, fmt.Errorf("%w: unknown direction %q for %q", ErrInvalidSpec, d, name)
			}
			dir = d
		case string:
			parsed, err := ParseDirection(d)
			if err != nil {
				return FieldSpec{}, fmt.Errorf("%w: %v for %q", ErrInvalidSpec, err, name)
			}
			dir = parsed
		default:
			return FieldSpec{}, fmt.Errorf("%w: direction must be a string, got %T", ErrInvalidSpec, tuple[1])
		}
	}

	return newFieldSpec(name, dir)
}

func newFieldSpec(name string, dir Direction) (FieldSpec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return FieldSpec{}, fmt.Errorf("%w: empty field name", ErrInvalidSpec)
	}
	return FieldSpec{Field: Field(name), Direction: dir}, nil
}
