package cursor

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a cursor spec is inconsistent with an order spec.
type Kind string

// Diagnostic kinds
const (
	KindMissingFields      Kind = "missing_fields"
	KindExtraFields        Kind = "extra_fields"
	KindFieldOrderMismatch Kind = "field_order_mismatch"
	KindDirectionMismatch  Kind = "direction_mismatch"
)

// Sentinel errors matched by errors.Is against a *Diagnostic of the same kind.
var (
	ErrMissingFields      = errors.New(string(KindMissingFields))
	ErrExtraFields        = errors.New(string(KindExtraFields))
	ErrFieldOrderMismatch = errors.New(string(KindFieldOrderMismatch))
	ErrDirectionMismatch  = errors.New(string(KindDirectionMismatch))
)

// Diagnostic describes a cursor spec that would make keyset pagination skip
// or repeat rows. It is a structured value; Remediation renders the
// human-facing text.
type Diagnostic struct {
	Kind Kind

	// Fields lists the offending fields: absent order fields for
	// missing_fields, disallowed cursor fields for extra_fields.
	Fields []Field
	// Extra lists cursor fields not present in the order spec when a
	// missing_fields diagnostic also found them.
	Extra []Field

	// Field, OrderDirection and CursorDirection are set for direction_mismatch.
	Field           Field
	OrderDirection  Direction
	CursorDirection Direction

	// Allowed is the only field that may follow the order fields.
	Allowed Field

	// Order is the ordering the cursor was checked against, Got the cursor
	// spec as supplied and Expected the closest valid cursor spec.
	Order    Spec
	Got      Spec
	Expected Spec
}

// Error implements error with a single line naming the expected spec.
func (d *Diagnostic) Error() string {
	switch d.Kind {
	case KindMissingFields:
		return fmt.Sprintf("cursor fields %s: %s missing, expected [%s]", d.Kind, joinFields(d.Fields), d.Expected)
	case KindExtraFields:
		return fmt.Sprintf("cursor fields %s: %s not allowed (only %s may follow the order fields), expected [%s]",
			d.Kind, joinFields(d.Fields), d.Allowed, d.Expected)
	case KindDirectionMismatch:
		return fmt.Sprintf("cursor fields %s: %s is %s in the ordering but %s in the cursor, expected [%s]",
			d.Kind, d.Field, d.OrderDirection, d.CursorDirection, d.Expected)
	default:
		return fmt.Sprintf("cursor fields %s: got [%s], expected [%s]", d.Kind, d.Got, d.Expected)
	}
}

// Is matches the sentinel error of the diagnostic kind.
func (d *Diagnostic) Is(target error) bool {
	return target == d.sentinel()
}

func (d *Diagnostic) sentinel() error {
	switch d.Kind {
	case KindMissingFields:
		return ErrMissingFields
	case KindExtraFields:
		return ErrExtraFields
	case KindFieldOrderMismatch:
		return ErrFieldOrderMismatch
	case KindDirectionMismatch:
		return ErrDirectionMismatch
	default:
		return nil
	}
}

// Remediation renders multi-line guidance for developers. It is meant for
// presentation layers such as the CLI or an error page, not for logs.
func (d *Diagnostic) Remediation() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cursor fields do not match the query ordering (%s).\n", d.Kind)
	fmt.Fprintf(&b, "  ordering:      [%s]\n", d.Order)
	fmt.Fprintf(&b, "  cursor fields: [%s]\n", d.Got)

	switch d.Kind {
	case KindMissingFields:
		fmt.Fprintf(&b, "Add %s to the cursor fields.\n", joinFields(d.Fields))
		if len(d.Extra) > 0 {
			fmt.Fprintf(&b, "Remove %s from the cursor fields.\n", joinFields(d.Extra))
		}
	case KindExtraFields:
		fmt.Fprintf(&b, "Remove %s; only %s may be appended after the ordering fields.\n", joinFields(d.Fields), d.Allowed)
	case KindFieldOrderMismatch:
		b.WriteString("List the cursor fields in the same order as the ordering.\n")
	case KindDirectionMismatch:
		fmt.Fprintf(&b, "Change %s to %s to match the ordering.\n", d.Field, d.OrderDirection)
	}

	fmt.Fprintf(&b, "Use: [%s]", d.Expected)
	return b.String()
}

func joinFields(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
