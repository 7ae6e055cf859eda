package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/nimburion/keyset/pkg/cursor"
)

// Format selects the wire encoding of a token.
type Format string

// Format constants
const (
	// FormatCompact is Go-native binary serialization, base64url encoded.
	FormatCompact Format = "compact"
	// FormatText is a JSON document, base64url encoded.
	FormatText Format = "text"
	// FormatAuto decodes compact first and falls back to text.
	FormatAuto Format = "auto"
)

// DefaultMaxTokenBytes bounds the length of a token accepted by Decode.
const DefaultMaxTokenBytes = 4096

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compact", "binary", "gob":
		return FormatCompact, nil
	case "text", "json", "structured":
		return FormatText, nil
	case "auto", "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("invalid cursor format: %s", s)
	}
}

var encoding = base64.RawURLEncoding

// Token is the opaque, URL-safe encoding of one boundary row's cursor values.
// The empty token means "no cursor".
type Token string

// IsEmpty reports whether the token is absent.
func (t Token) IsEmpty() bool {
	return t == ""
}

// String returns the token text.
func (t Token) String() string {
	return string(t)
}

// Values maps cursor fields to the values captured from one row.
type Values map[cursor.Field]any

// Row gives read access to a row's field values.
type Row interface {
	Value(field cursor.Field) (any, bool)
}

// MapRow adapts a column-name keyed map to Row.
type MapRow map[string]any

// Value implements Row.
func (r MapRow) Value(field cursor.Field) (any, bool) {
	v, ok := r[string(field)]
	return v, ok
}

// RowFunc adapts a function to Row.
type RowFunc func(field cursor.Field) (any, bool)

// Value implements Row.
func (f RowFunc) Value(field cursor.Field) (any, bool) {
	return f(field)
}

// Observer receives decode outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveDecode(format Format, err error)
}

// Codec encodes cursor values into tokens and decodes tokens back.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	format        Format
	maxTokenBytes int
	fields        cursor.Spec
	observer      Observer
	serializers   map[Format]serializer
}

// Option configures a Codec.
type Option func(*Codec)

// WithFormat sets the format used when Encode is asked for FormatAuto.
func WithFormat(format Format) Option {
	return func(c *Codec) {
		if format == FormatCompact || format == FormatText {
			c.format = format
		}
	}
}

// WithMaxTokenBytes bounds the accepted token length.
func WithMaxTokenBytes(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxTokenBytes = n
		}
	}
}

// WithFields restricts decoded tokens to exactly the fields of spec.
func WithFields(spec cursor.Spec) Option {
	return func(c *Codec) {
		c.fields = spec.Clone()
	}
}

// WithObserver sets an observer notified after every decode.
func WithObserver(observer Observer) Option {
	return func(c *Codec) {
		c.observer = observer
	}
}

// New creates a Codec. The default encode format is compact.
func New(opts ...Option) *Codec {
	c := &Codec{
		format:        FormatCompact,
		maxTokenBytes: DefaultMaxTokenBytes,
		serializers: map[Format]serializer{
			FormatCompact: gobSerializer{},
			FormatText:    jsonSerializer{},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Format returns the default encode format.
func (c *Codec) Format() Format {
	return c.format
}

// Encode serializes values into a token. Empty values produce an empty
// token and no error. FormatAuto selects the codec's default format.
func (c *Codec) Encode(values Values, format Format) (Token, error) {
	if len(values) == 0 {
		return "", nil
	}
	s, err := c.serializer(format)
	if err != nil {
		return "", err
	}

	m := make(map[string]any, len(values))
	for field, v := range values {
		if field == "" {
			return "", fmt.Errorf("%w: empty field name", ErrUnsupportedValue)
		}
		scalar, err := canonical(v)
		if err != nil {
			return "", fmt.Errorf("field %q: %w", field, err)
		}
		m[string(field)] = scalar
	}

	data, err := s.Marshal(m)
	if err != nil {
		return "", err
	}
	return Token(encoding.EncodeToString(data)), nil
}

// Decode parses a client supplied token. Every failure is returned as an
// *InvalidCursorError matching ErrInvalidCursor. When the codec was built
// WithFields the decoded keys must be exactly those fields.
func (c *Codec) Decode(token Token, format Format) (Values, error) {
	values, err := c.decode(token, format, c.fields)
	if c.observer != nil {
		c.observer.ObserveDecode(format, err)
	}
	return values, err
}

// DecodeFor is like Decode but checks the keys against spec instead of the
// codec's configured fields.
func (c *Codec) DecodeFor(token Token, format Format, spec cursor.Spec) (Values, error) {
	values, err := c.decode(token, format, spec)
	if c.observer != nil {
		c.observer.ObserveDecode(format, err)
	}
	return values, err
}

func (c *Codec) decode(token Token, format Format, spec cursor.Spec) (Values, error) {
	if token.IsEmpty() {
		return nil, invalid(format, ReasonEmpty, nil)
	}
	if len(token) > c.maxTokenBytes {
		return nil, invalid(format, ReasonTooLarge, fmt.Errorf("%d bytes exceeds %d", len(token), c.maxTokenBytes))
	}

	var m map[string]any
	switch format {
	case FormatAuto:
		var compactErr error
		m, compactErr = c.unmarshal(token, FormatCompact)
		if compactErr != nil {
			var textErr error
			m, textErr = c.unmarshal(token, FormatText)
			if textErr != nil {
				var ice *InvalidCursorError
				reason := ReasonPayload
				if errors.As(textErr, &ice) {
					reason = ice.Reason
				}
				return nil, invalid(FormatAuto, reason, errors.Join(compactErr, textErr))
			}
		}
	case FormatCompact, FormatText:
		var err error
		if m, err = c.unmarshal(token, format); err != nil {
			return nil, err
		}
	default:
		return nil, invalid(format, ReasonUnknownFormat, nil)
	}

	return toValues(m, format, spec)
}

func (c *Codec) unmarshal(token Token, format Format) (map[string]any, error) {
	data, err := encoding.DecodeString(string(token))
	if err != nil {
		return nil, invalid(format, ReasonMalformed, err)
	}
	m, err := c.serializers[format].Unmarshal(data)
	if err != nil {
		if errors.Is(err, errShape) {
			return nil, invalid(format, ReasonShape, err)
		}
		return nil, invalid(format, ReasonPayload, err)
	}
	return m, nil
}

// toValues maps decoded keys to fields. With a spec, unknown keys and absent
// spec fields are rejected; without one, keys pass through unchanged.
func toValues(m map[string]any, format Format, spec cursor.Spec) (Values, error) {
	values := make(Values, len(m))
	for k, v := range m {
		field := cursor.Field(k)
		if k == "" || (spec != nil && !spec.Contains(field)) {
			return nil, invalid(format, ReasonUnknownField, fmt.Errorf("field %q", k))
		}
		values[field] = v
	}
	for _, fs := range spec {
		if _, ok := values[fs.Field]; !ok {
			return nil, invalid(format, ReasonMissingField, fmt.Errorf("field %q", fs.Field))
		}
	}
	return values, nil
}

func (c *Codec) serializer(format Format) (serializer, error) {
	if format == FormatAuto || format == "" {
		format = c.format
	}
	s, ok := c.serializers[format]
	if !ok {
		return nil, fmt.Errorf("unknown cursor format: %s", format)
	}
	return s, nil
}

// Project reads the spec fields out of row. Fields not named by spec are
// never read.
func Project(row Row, spec cursor.Spec) (Values, error) {
	values := make(Values, len(spec))
	for _, fs := range spec {
		v, ok := row.Value(fs.Field)
		if !ok {
			return nil, fmt.Errorf("%w: row has no %q", ErrMissingValue, fs.Field)
		}
		values[fs.Field] = v
	}
	return values, nil
}

// EncodeRow projects spec out of row and encodes it. A nil row yields an
// empty token.
func (c *Codec) EncodeRow(row Row, spec cursor.Spec, format Format) (Token, error) {
	if isNilRow(row) {
		return "", nil
	}
	values, err := Project(row, spec)
	if err != nil {
		return "", err
	}
	return c.Encode(values, format)
}

// FromPage encodes the boundary rows of a page into start and end tokens.
// A nil row leaves the corresponding token empty.
func (c *Codec) FromPage(first, last Row, spec cursor.Spec, format Format) (start, end Token, err error) {
	if start, err = c.EncodeRow(first, spec, format); err != nil {
		return "", "", fmt.Errorf("start cursor: %w", err)
	}
	if end, err = c.EncodeRow(last, spec, format); err != nil {
		return "", "", fmt.Errorf("end cursor: %w", err)
	}
	return start, end, nil
}

// FromRows is FromPage over a page of items. An empty page yields two empty
// tokens.
func FromRows[T any](c *Codec, items []T, row func(T) Row, spec cursor.Spec, format Format) (start, end Token, err error) {
	if len(items) == 0 {
		return "", "", nil
	}
	return c.FromPage(row(items[0]), row(items[len(items)-1]), spec, format)
}

func isNilRow(row Row) bool {
	if row == nil {
		return true
	}
	v := reflect.ValueOf(row)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}
