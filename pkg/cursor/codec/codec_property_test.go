package codec

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nimburion/keyset/pkg/cursor"
)

type sample struct {
	ID    int64
	Name  string
	Score float64
	At    time.Time
	Flag  bool
}

func genSample() gopter.Gen {
	return gopter.CombineGens(
		gen.Int64(),
		gen.OneGenOf(
			gen.AlphaString(),
			gen.Int64Range(0, 4102444800).Map(func(sec int64) string {
				return time.Unix(sec, 0).UTC().Format(time.RFC3339)
			}),
		),
		gen.OneGenOf(
			gen.Float64Range(-1e9, 1e9),
			gen.Int64Range(-1e6, 1e6).Map(func(i int64) float64 { return float64(i) }),
		),
		gen.Int64Range(0, 4102444800),
		gen.IntRange(0, 999999999),
		gen.Bool(),
	).Map(func(v []any) sample {
		return sample{
			ID:    v[0].(int64),
			Name:  v[1].(string),
			Score: v[2].(float64),
			At:    time.Unix(v[3].(int64), int64(v[4].(int))).UTC(),
			Flag:  v[5].(bool),
		}
	})
}

func (s sample) values() Values {
	return Values{"id": s.ID, "name": s.Name, "score": s.Score, "at": s.At, "flag": s.Flag}
}

var sampleSpec = cursor.Spec{
	cursor.Desc("at"), cursor.Asc("name"), cursor.Asc("score"), cursor.Asc("flag"), cursor.Asc("id"),
}

// Compact tokens reproduce every value exactly.
func TestProperty_CompactRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	c := New(WithFields(sampleSpec))

	properties.Property("decode(encode(v)) == v", prop.ForAll(
		func(s sample) bool {
			token, err := c.Encode(s.values(), FormatCompact)
			if err != nil {
				return false
			}
			got, err := c.Decode(token, FormatAuto)
			if err != nil {
				return false
			}
			at, ok := got["at"].(time.Time)
			return ok && at.Equal(s.At) &&
				got["id"] == s.ID &&
				got["name"] == s.Name &&
				got["score"] == s.Score &&
				got["flag"] == s.Flag
		},
		genSample(),
	))

	properties.TestingRun(t)
}

// Text tokens preserve every value and its type; instants come back in UTC.
// Names include timestamp-shaped strings and scores include integral floats.
func TestProperty_TextRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	c := New(WithFields(sampleSpec))

	properties.Property("decode(encode(v)) == v up to time zone", prop.ForAll(
		func(s sample) bool {
			token, err := c.Encode(s.values(), FormatText)
			if err != nil {
				return false
			}
			got, err := c.Decode(token, FormatText)
			if err != nil {
				return false
			}
			at, ok := got["at"].(time.Time)
			if !ok || !at.Equal(s.At) {
				return false
			}
			return got["id"] == s.ID &&
				got["name"] == s.Name &&
				got["score"] == s.Score &&
				got["flag"] == s.Flag
		},
		genSample(),
	))

	properties.Property("tokens are URL safe", prop.ForAll(
		func(s sample) bool {
			token, err := c.Encode(s.values(), FormatText)
			if err != nil {
				return false
			}
			for _, r := range token {
				if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
					return false
				}
			}
			return true
		},
		genSample(),
	))

	properties.TestingRun(t)
}
