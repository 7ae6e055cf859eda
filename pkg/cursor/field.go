package cursor

import (
	"fmt"
	"strings"
)

// Direction defines the comparison direction of a field in an ordering.
type Direction string

// Direction constants
const (
	// Ascending sorts smaller values first
	Ascending Direction = "asc"
	// Descending sorts larger values first
	Descending Direction = "desc"
)

// ParseDirection converts a textual direction into a Direction.
// An empty string defaults to Ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return "", fmt.Errorf("invalid direction: %q", s)
	}
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == Ascending || d == Descending
}

// Field identifies a field of a stored record by name.
type Field string

// String returns the field name.
func (f Field) String() string {
	return string(f)
}

// FieldSpec pairs a field with its sort direction.
type FieldSpec struct {
	Field     Field     `json:"field" yaml:"field"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// Asc returns an ascending FieldSpec for field.
func Asc(field Field) FieldSpec {
	return FieldSpec{Field: field, Direction: Ascending}
}

// Desc returns a descending FieldSpec for field.
func Desc(field Field) FieldSpec {
	return FieldSpec{Field: field, Direction: Descending}
}

// String renders the spec as "field:direction".
func (fs FieldSpec) String() string {
	return string(fs.Field) + ":" + string(fs.Direction)
}

// Spec is an ordered sequence of field specs. It describes either the sort
// order of a query or the fields captured in a cursor; element order is
// significant in both cases.
type Spec []FieldSpec

// Fields returns the field names in order.
func (s Spec) Fields() []Field {
	fields := make([]Field, len(s))
	for i, fs := range s {
		fields[i] = fs.Field
	}
	return fields
}

// Contains reports whether field appears anywhere in the spec.
func (s Spec) Contains(field Field) bool {
	return s.indexOf(field) >= 0
}

// Equal reports element-wise equality of field and direction.
func (s Spec) Equal(other Spec) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no backing array with s.
func (s Spec) Clone() Spec {
	if s == nil {
		return nil
	}
	out := make(Spec, len(s))
	copy(out, s)
	return out
}

// Reverse returns a copy with every direction flipped. It is used to walk a
// result set backwards from a "before" boundary.
func (s Spec) Reverse() Spec {
	out := make(Spec, len(s))
	for i, fs := range s {
		out[i] = FieldSpec{Field: fs.Field, Direction: fs.Direction.Reverse()}
	}
	return out
}

// String renders the spec in the same "a:asc,b:desc" form ParseSpec reads.
func (s Spec) String() string {
	parts := make([]string, len(s))
	for i, fs := range s {
		parts[i] = fs.String()
	}
	return strings.Join(parts, ",")
}

func (s Spec) indexOf(field Field) int {
	for i, fs := range s {
		if fs.Field == field {
			return i
		}
	}
	return -1
}

// ParseSpec parses a comma separated list of "field" or "field:direction"
// items, the textual form accepted by configuration, the CLI and query
// parameters. A leading "-" on the field name is shorthand for descending.
func ParseSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Spec{}, nil
	}

	items := strings.Split(s, ",")
	raw := make([]any, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, fmt.Errorf("empty field in spec %q", s)
		}
		if strings.HasPrefix(item, "-") {
			raw = append(raw, []string{strings.TrimPrefix(item, "-"), string(Descending)})
			continue
		}
		raw = append(raw, strings.Split(item, ":"))
	}
	return Normalize(raw...)
}
