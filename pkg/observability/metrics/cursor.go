package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
)

// Namespace prefixes every cursor metric name.
const Namespace = "keyset_"

// CursorMetrics counts cursor spec resolutions and token decodes. It
// implements cursor.Observer and codec.Observer.
type CursorMetrics struct {
	// resolutions counts resolved cursor specs.
	// Labels: outcome (inferred, validated, rejected)
	resolutions *prometheus.CounterVec

	// validationFailures counts rejected cursor specs.
	// Labels: kind
	validationFailures *prometheus.CounterVec

	// decodes counts token decodes.
	// Labels: format, result (ok or a decode failure reason)
	decodes *prometheus.CounterVec
}

var (
	_ cursor.Observer = (*CursorMetrics)(nil)
	_ codec.Observer  = (*CursorMetrics)(nil)
)

// NewCursorMetrics creates unregistered cursor metrics.
func NewCursorMetrics() *CursorMetrics {
	return &CursorMetrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyset_cursor_resolutions_total",
				Help: "Total number of cursor field resolutions",
			},
			[]string{"outcome"},
		),
		validationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyset_cursor_validation_failures_total",
				Help: "Total number of cursor field specs rejected against the ordering",
			},
			[]string{"kind"},
		),
		decodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyset_cursor_decode_total",
				Help: "Total number of cursor token decodes",
			},
			[]string{"format", "result"},
		),
	}
}

// Collectors returns the underlying collectors.
func (m *CursorMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.resolutions, m.validationFailures, m.decodes}
}

// MustRegister registers all collectors on reg and panics on error.
func (m *CursorMetrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.Collectors()...)
}

// ObserveResolve implements cursor.Observer.
func (m *CursorMetrics) ObserveResolve(inferred bool, err error) {
	switch {
	case err != nil:
		m.resolutions.WithLabelValues("rejected").Inc()
		kind := "unknown"
		var d *cursor.Diagnostic
		if errors.As(err, &d) {
			kind = string(d.Kind)
		}
		m.validationFailures.WithLabelValues(kind).Inc()
	case inferred:
		m.resolutions.WithLabelValues("inferred").Inc()
	default:
		m.resolutions.WithLabelValues("validated").Inc()
	}
}

// ObserveDecode implements codec.Observer.
func (m *CursorMetrics) ObserveDecode(format codec.Format, err error) {
	result := "ok"
	if err != nil {
		result = "invalid"
		var ice *codec.InvalidCursorError
		if errors.As(err, &ice) {
			result = ice.Reason
		}
	}
	m.decodes.WithLabelValues(string(format), result).Inc()
}
