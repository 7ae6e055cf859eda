package repository

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
)

// ReflectionMapper maps struct fields to columns using the db tag, falling
// back to the lowercase field name. Fields tagged db:"-" are skipped.
type ReflectionMapper[T any] struct {
	columns map[string]int
}

// NewReflectionMapper creates a new reflection-based entity mapper
func NewReflectionMapper[T any]() (*ReflectionMapper[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("reflection mapper requires a struct type, got %s", t)
	}

	columns := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := columnName(field)
		if name == "-" {
			continue
		}
		columns[name] = i
	}
	return &ReflectionMapper[T]{columns: columns}, nil
}

func columnName(field reflect.StructField) string {
	name := field.Tag.Get("db")
	if idx := strings.IndexByte(name, ','); idx >= 0 {
		name = name[:idx]
	}
	if name == "" {
		name = strings.ToLower(field.Name)
	}
	return name
}

// Columns returns the mapped column names.
func (m *ReflectionMapper[T]) Columns() []string {
	out := make([]string, 0, len(m.columns))
	for name := range m.columns {
		out = append(out, name)
	}
	return out
}

// FromRow scans a database row into an entity using reflection. Result
// columns without a matching field are ignored.
func (m *ReflectionMapper[T]) FromRow(rows *sql.Rows) (*T, error) {
	entity := new(T)
	v := reflect.ValueOf(entity).Elem()

	// Get column names from the result set
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	scanDest := make([]interface{}, len(columns))
	for i := range columns {
		scanDest[i] = new(interface{})
	}

	if err := rows.Scan(scanDest...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	for i, col := range columns {
		idx, ok := m.columns[col]
		if !ok {
			continue
		}
		value := *(scanDest[i].(*interface{}))
		if value == nil {
			continue
		}
		field := v.Field(idx)
		rv := reflect.ValueOf(value)
		switch {
		case rv.Type().AssignableTo(field.Type()):
			field.Set(rv)
		case field.Kind() == reflect.String && rv.Kind() != reflect.String && rv.Kind() != reflect.Slice:
			// reflect would turn an integer into a one-rune string
			return nil, fmt.Errorf("column %q: cannot assign %T to %s", col, value, field.Type())
		case rv.Type().ConvertibleTo(field.Type()):
			field.Set(rv.Convert(field.Type()))
		default:
			return nil, fmt.Errorf("column %q: cannot assign %T to %s", col, value, field.Type())
		}
	}

	return entity, nil
}

// Row exposes the entity's mapped fields by column name.
func (m *ReflectionMapper[T]) Row(entity *T) codec.Row {
	if entity == nil {
		return nil
	}
	v := reflect.ValueOf(entity).Elem()
	return codec.RowFunc(func(f cursor.Field) (any, bool) {
		idx, ok := m.columns[string(f)]
		if !ok {
			return nil, false
		}
		return v.Field(idx).Interface(), true
	})
}
