package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// serializer converts a flat map of canonical scalars to bytes and back.
type serializer interface {
	Marshal(m map[string]any) ([]byte, error)
	// Unmarshal returns a flat map whose values are all allow-listed scalars.
	Unmarshal(data []byte) (map[string]any, error)
	Format() Format
}

var errShape = errors.New("payload is not a flat scalar mapping")

func init() {
	// gob only reconstructs interface values of registered types; basic
	// kinds are pre-registered.
	gob.Register(time.Time{})
}

// gobSerializer is the compact format: Go's native binary encoding of the
// value map.
type gobSerializer struct{}

func (gobSerializer) Format() Format { return FormatCompact }

func (gobSerializer) Marshal(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobSerializer) Unmarshal(data []byte) (map[string]any, error) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	if err := dec.Decode(new(map[string]any)); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", errShape)
	}
	for k, v := range m {
		if !isScalar(v) {
			return nil, fmt.Errorf("%w: %q holds %T", errShape, k, v)
		}
	}
	return m, nil
}

// Type tags of the text format. Values whose type JSON cannot carry travel
// as a single-key object, e.g. {"$time":"2024-01-02T03:04:05Z"} or
// {"$float":3}. Strings, integers and booleans travel bare.
const (
	tagTime  = "$time"
	tagFloat = "$float"
)

// jsonSerializer is the structured-text format. Temporal values travel as
// RFC 3339 strings in UTC with nanosecond precision.
type jsonSerializer struct{}

func (jsonSerializer) Format() Format { return FormatText }

func (jsonSerializer) Marshal(m map[string]any) ([]byte, error) {
	doc := make(map[string]any, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case time.Time:
			doc[k] = map[string]any{tagTime: x.UTC().Format(time.RFC3339Nano)}
		case float64:
			doc[k] = map[string]any{tagFloat: x}
		default:
			doc[k] = v
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

func (jsonSerializer) Unmarshal(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: null document", errShape)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", errShape)
	}

	m := make(map[string]any, len(doc))
	for k, v := range doc {
		scalar, err := fromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", errShape, k, err)
		}
		m[k] = scalar
	}
	return m, nil
}

func fromJSON(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string:
		return x, nil
	case json.Number:
		// Bare numbers come from hand-written tokens; Marshal tags floats.
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	case map[string]any:
		return fromTagged(x)
	default:
		return nil, fmt.Errorf("unexpected %T", v)
	}
}

func fromTagged(obj map[string]any) (any, error) {
	if len(obj) != 1 {
		return nil, errors.New("nested object")
	}
	if raw, ok := obj[tagTime]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s holds %T", tagTime, raw)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}
	if raw, ok := obj[tagFloat]; ok {
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%s holds %T", tagFloat, raw)
		}
		return n.Float64()
	}
	return nil, errors.New("nested object")
}
