package codec

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// canonical reduces v to one of the scalar types a cursor may carry:
// nil, bool, string, int64, float64 or time.Time.
func canonical(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int64:
		return x, nil
	case float64:
		return checkFloat(x)
	case float32:
		return checkFloat(float64(x))
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return fromUint(x)
	case time.Time:
		return x, nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case []byte:
		// Text columns scanned into any arrive as []byte from several drivers.
		return string(x), nil
	case uuid.UUID:
		return x.String(), nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		if _, again := dv.(driver.Valuer); again {
			return nil, fmt.Errorf("%w: %T returned a driver.Valuer", ErrUnsupportedValue, x)
		}
		return canonical(dv)
	case fmt.Stringer:
		// Named scalars such as time.Duration or enums keep their kind;
		// String is only for values with no scalar representation.
		rv := reflect.ValueOf(v)
		if isScalarKind(rv.Kind()) {
			return canonicalKind(v)
		}
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return x.String(), nil
	}

	return canonicalKind(v)
}

// canonicalKind handles named types over scalar kinds, e.g. type Status string.
func canonicalKind(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fromUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return checkFloat(rv.Float())
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return canonical(rv.Elem().Interface())
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func fromUint(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, u)
	}
	return int64(u), nil
}

func checkFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: non-finite float %v", ErrUnsupportedValue, f)
	}
	return f, nil
}

// isScalar reports whether a decoded value is on the allow-list.
func isScalar(v any) bool {
	switch v.(type) {
	case nil, bool, string, int64, float64, time.Time:
		return true
	default:
		return false
	}
}
