package cursor

import (
	"errors"
	"fmt"

	"github.com/nimburion/keyset/pkg/observability/logger"
)

// Observer receives resolution outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveResolve(inferred bool, err error)
}

// Resolver validates a supplied cursor spec or infers one when none is given.
type Resolver struct {
	validator *Validator
	log       logger.Logger
	observer  Observer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger diagnostics are reported through.
func WithLogger(log logger.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// WithObserver sets an observer notified after every resolution.
func WithObserver(observer Observer) ResolverOption {
	return func(r *Resolver) {
		r.observer = observer
	}
}

// NewResolver creates a Resolver around validator.
func NewResolver(validator *Validator, opts ...ResolverOption) (*Resolver, error) {
	if validator == nil {
		return nil, errors.New("validator is required")
	}
	r := &Resolver{
		validator: validator,
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Validator returns the underlying validator.
func (r *Resolver) Validator() *Validator {
	return r.validator
}

// Resolve returns the authoritative cursor spec for order. When cursorSpec is
// non-nil it must be consistent with order and a copy of it is returned;
// otherwise the spec is inferred. Inconsistencies are logged at error level
// and returned as a *Diagnostic, never corrected silently.
func (r *Resolver) Resolve(order, cursorSpec Spec) (Spec, error) {
	if cursorSpec == nil {
		inferred := r.validator.Infer(order)
		r.log.Debug("cursor fields inferred",
			"order", order.String(),
			"cursor_fields", inferred.String(),
		)
		r.observe(true, nil)
		return inferred, nil
	}

	if err := r.validator.Validate(order, cursorSpec); err != nil {
		var d *Diagnostic
		if errors.As(err, &d) {
			r.log.Error("cursor fields inconsistent with ordering",
				"kind", string(d.Kind),
				"fields", joinFields(d.Fields),
				"order", d.Order.String(),
				"got", d.Got.String(),
				"expected", d.Expected.String(),
			)
		}
		r.observe(false, err)
		return nil, err
	}

	r.observe(false, nil)
	return cursorSpec.Clone(), nil
}

// ResolveRaw normalizes raw order and cursor elements before resolving. A nil
// cursorRaw means no cursor spec was supplied.
func (r *Resolver) ResolveRaw(orderRaw, cursorRaw []any) (Spec, error) {
	order, err := Normalize(orderRaw...)
	if err != nil {
		return nil, fmt.Errorf("normalize order: %w", err)
	}
	var cursorSpec Spec
	if cursorRaw != nil {
		if cursorSpec, err = Normalize(cursorRaw...); err != nil {
			return nil, fmt.Errorf("normalize cursor fields: %w", err)
		}
	}
	return r.Resolve(order, cursorSpec)
}

// MustResolve is like Resolve but panics on an inconsistent cursor spec. It
// is meant for specs fixed at construction time, where a mismatch is a
// programming error that must stop startup.
func (r *Resolver) MustResolve(order, cursorSpec Spec) Spec {
	spec, err := r.Resolve(order, cursorSpec)
	if err != nil {
		panic(err)
	}
	return spec
}

func (r *Resolver) observe(inferred bool, err error) {
	if r.observer != nil {
		r.observer.ObserveResolve(inferred, err)
	}
}
