package cursor

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genOrder generates orderings over distinct non-tiebreaker fields.
func genOrder() gopter.Gen {
	return gen.SliceOf(gen.Bool()).Map(func(descs []bool) Spec {
		names := []Field{"a", "b", "c", "d", "e", "f", "g", "h"}
		if len(descs) > len(names) {
			descs = descs[:len(names)]
		}
		order := make(Spec, len(descs))
		for i, desc := range descs {
			order[i] = Asc(names[i])
			if desc {
				order[i] = Desc(names[i])
			}
		}
		return order
	})
}

// Inference is total: the inferred spec is non-empty, ends with the
// tiebreaker and is accepted by Validate.
func TestProperty_InferTotality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	v, _ := NewValidator("id")

	properties.Property("inferred spec ends with tiebreaker and validates", prop.ForAll(
		func(order Spec) bool {
			got := v.Infer(order)
			if len(got) != len(order)+1 {
				return false
			}
			if got[len(got)-1] != Asc("id") {
				return false
			}
			return v.Validate(order, got) == nil
		},
		genOrder(),
	))

	properties.Property("order itself is always a valid cursor spec", prop.ForAll(
		func(order Spec) bool {
			return v.Validate(order, order.Clone()) == nil
		},
		genOrder(),
	))

	properties.TestingRun(t)
}

// Any deviation from the ordering is reported, never accepted.
func TestProperty_ValidatorRejectsDeviations(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	v, _ := NewValidator("id")

	properties.Property("flipping any direction is a direction_mismatch", prop.ForAll(
		func(order Spec, pos int) bool {
			if len(order) == 0 {
				return true
			}
			i := pos % len(order)
			cursorSpec := order.Clone()
			cursorSpec[i].Direction = cursorSpec[i].Direction.Reverse()

			var d *Diagnostic
			err := v.Validate(order, cursorSpec)
			return errors.As(err, &d) &&
				d.Kind == KindDirectionMismatch &&
				d.Field == order[i].Field &&
				d.OrderDirection == order[i].Direction
		},
		genOrder(),
		gen.IntRange(0, 100),
	))

	properties.Property("swapping two fields is a field_order_mismatch", prop.ForAll(
		func(order Spec, pos int) bool {
			if len(order) < 2 {
				return true
			}
			i := pos % (len(order) - 1)
			cursorSpec := order.Clone()
			cursorSpec[i], cursorSpec[i+1] = cursorSpec[i+1], cursorSpec[i]
			return errors.Is(v.Validate(order, cursorSpec), ErrFieldOrderMismatch)
		},
		genOrder(),
		gen.IntRange(0, 100),
	))

	properties.Property("dropping a suffix is missing_fields", prop.ForAll(
		func(order Spec, keep int) bool {
			if len(order) == 0 {
				return true
			}
			k := keep % len(order)
			return errors.Is(v.Validate(order, order[:k].Clone()), ErrMissingFields)
		},
		genOrder(),
		gen.IntRange(0, 100),
	))

	properties.Property("appending a non-tiebreaker is extra_fields", prop.ForAll(
		func(order Spec) bool {
			if len(order) == 0 {
				return true
			}
			cursorSpec := append(order.Clone(), Asc("zz"))
			return errors.Is(v.Validate(order, cursorSpec), ErrExtraFields)
		},
		genOrder(),
	))

	properties.TestingRun(t)
}
