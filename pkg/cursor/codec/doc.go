// Package codec turns the cursor values of a boundary row into an opaque,
// URL-safe token and back.
//
// Two formats are supported. The compact format is Go's native binary
// encoding and round-trips every supported value exactly. The text format is
// a JSON document; timestamps and floats are tagged so they come back with
// their type, and timestamps come back in UTC.
//
// Values are reduced to a small set of scalars before encoding: nil, bool,
// string, int64, float64 and time.Time. Decoding rejects anything else, so a
// forged token can never smuggle in other types.
//
// Example:
//
//	c := codec.New(codec.WithFields(spec))
//	start, end, err := c.FromPage(codec.MapRow(first), codec.MapRow(last), spec, codec.FormatCompact)
//	...
//	values, err := c.Decode(end, codec.FormatAuto)
//	if errors.Is(err, codec.ErrInvalidCursor) {
//		// ask the client to restart from the first page
//	}
package codec
