package cursor

import (
	"fmt"
	"strings"
)

// Validator checks cursor specs against order specs and infers cursor specs
// from orderings. The tiebreaker is a field whose value is unique per row;
// appending it to an ordering makes the ordering total.
//
// A Validator holds no mutable state and is safe for concurrent use.
type Validator struct {
	tiebreaker Field
}

// NewValidator creates a Validator that permits tiebreaker as the single
// field appended after the ordering fields.
func NewValidator(tiebreaker Field) (*Validator, error) {
	if strings.TrimSpace(string(tiebreaker)) == "" {
		return nil, fmt.Errorf("%w: tiebreaker field is required", ErrInvalidSpec)
	}
	return &Validator{tiebreaker: tiebreaker}, nil
}

// Tiebreaker returns the configured tiebreaker field.
func (v *Validator) Tiebreaker() Field {
	return v.tiebreaker
}

// Validate decides whether cursorSpec is consistent with order. A nil
// cursorSpec means none was supplied and is always accepted; the caller is
// expected to Infer one. The returned error is a *Diagnostic.
//
// A cursor spec is consistent when it equals order, or equals order followed
// by exactly one spec on the tiebreaker field.
func (v *Validator) Validate(order, cursorSpec Spec) error {
	if cursorSpec == nil {
		return nil
	}
	n, m := len(order), len(cursorSpec)
	if n == 0 {
		return nil
	}

	switch {
	case m < n:
		return v.diagnose(order, cursorSpec, &Diagnostic{
			Kind:   KindMissingFields,
			Fields: absentFields(order, cursorSpec, m),
		})
	case m > n+1:
		return v.diagnose(order, cursorSpec, &Diagnostic{
			Kind:   KindExtraFields,
			Fields: v.surplus(order, cursorSpec[n:]),
		})
	case m == n:
		if d := compareAligned(order, cursorSpec); d != nil {
			return v.diagnose(order, cursorSpec, d)
		}
	case m == n+1:
		if d := compareAligned(order, cursorSpec[:n]); d != nil {
			return v.diagnose(order, cursorSpec, d)
		}
		if trailing := cursorSpec[n]; trailing.Field != v.tiebreaker {
			return v.diagnose(order, cursorSpec, &Diagnostic{
				Kind:   KindExtraFields,
				Fields: []Field{trailing.Field},
			})
		}
	}
	return nil
}

// Infer derives a cursor spec from order. The result is order unchanged when
// it already contains the tiebreaker, otherwise order followed by the
// tiebreaker ascending. The result is never empty.
func (v *Validator) Infer(order Spec) Spec {
	if order.Contains(v.tiebreaker) {
		return order.Clone()
	}
	out := make(Spec, 0, len(order)+1)
	out = append(out, order...)
	return append(out, Asc(v.tiebreaker))
}

// diagnose fills in the context shared by every diagnostic.
func (v *Validator) diagnose(order, cursorSpec Spec, d *Diagnostic) *Diagnostic {
	d.Allowed = v.tiebreaker
	d.Order = order.Clone()
	d.Got = cursorSpec.Clone()
	if len(cursorSpec) > len(order) || cursorSpec.Contains(v.tiebreaker) {
		d.Expected = v.Infer(order)
	} else {
		d.Expected = order.Clone()
	}
	if !order.Contains(v.tiebreaker) {
		d.Extra = without(d.Extra, v.tiebreaker)
	}
	return d
}

// surplus lists the cursor fields past the ordering that must be removed.
// The first tiebreaker is kept when the ordering does not already hold it.
func (v *Validator) surplus(order, tail Spec) []Field {
	fields := tail.Fields()
	if order.Contains(v.tiebreaker) {
		return fields
	}
	for i, f := range fields {
		if f == v.tiebreaker {
			return append(fields[:i:i], fields[i+1:]...)
		}
	}
	return fields
}

func without(fields []Field, f Field) []Field {
	var out []Field
	for _, x := range fields {
		if x != f {
			out = append(out, x)
		}
	}
	return out
}

// compareAligned compares two specs of equal length. It reports a field-set
// difference first, then a reordering, then the first direction mismatch.
func compareAligned(order, cursorSpec Spec) *Diagnostic {
	if order.Equal(cursorSpec) {
		return nil
	}

	missing := difference(order, cursorSpec)
	extra := difference(cursorSpec, order)
	switch {
	case len(missing) > 0:
		return &Diagnostic{Kind: KindMissingFields, Fields: missing, Extra: extra}
	case len(extra) > 0:
		return &Diagnostic{Kind: KindExtraFields, Fields: extra}
	}

	for i := range order {
		if order[i].Field != cursorSpec[i].Field {
			return &Diagnostic{Kind: KindFieldOrderMismatch}
		}
	}

	for i := range order {
		if order[i].Direction != cursorSpec[i].Direction {
			return &Diagnostic{
				Kind:            KindDirectionMismatch,
				Field:           order[i].Field,
				OrderDirection:  order[i].Direction,
				CursorDirection: cursorSpec[i].Direction,
			}
		}
	}
	return nil
}

// absentFields lists order fields the cursor spec never mentions. When
// duplicates in order hide the absence, the unmatched tail is reported.
func absentFields(order, cursorSpec Spec, m int) []Field {
	if missing := difference(order, cursorSpec); len(missing) > 0 {
		return missing
	}
	return order[m:].Fields()
}

// difference returns the fields of a that do not appear in b, in a's order.
func difference(a, b Spec) []Field {
	var out []Field
	for _, fs := range a {
		if !b.Contains(fs.Field) {
			out = append(out, fs.Field)
		}
	}
	return out
}
