package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
)

func TestCursorMetrics_ObserveResolve(t *testing.T) {
	m := NewCursorMetrics()

	m.ObserveResolve(true, nil)
	m.ObserveResolve(false, nil)
	m.ObserveResolve(false, &cursor.Diagnostic{Kind: cursor.KindDirectionMismatch})
	m.ObserveResolve(false, errors.New("other"))

	if got := promtest.ToFloat64(m.resolutions.WithLabelValues("inferred")); got != 1 {
		t.Errorf("inferred = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.resolutions.WithLabelValues("rejected")); got != 2 {
		t.Errorf("rejected = %v, want 2", got)
	}
	if got := promtest.ToFloat64(m.validationFailures.WithLabelValues("direction_mismatch")); got != 1 {
		t.Errorf("direction_mismatch = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.validationFailures.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unknown = %v, want 1", got)
	}
}

func TestCursorMetrics_ObserveDecode(t *testing.T) {
	m := NewCursorMetrics()
	c := codec.New(codec.WithObserver(m))

	token, _ := c.Encode(codec.Values{"id": 1}, codec.FormatCompact)
	_, _ = c.Decode(token, codec.FormatCompact)
	_, _ = c.Decode("", codec.FormatAuto)
	_, _ = c.Decode("!!", codec.FormatText)

	if got := promtest.ToFloat64(m.decodes.WithLabelValues("compact", "ok")); got != 1 {
		t.Errorf("compact ok = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.decodes.WithLabelValues("auto", codec.ReasonEmpty)); got != 1 {
		t.Errorf("auto empty = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.decodes.WithLabelValues("text", codec.ReasonMalformed)); got != 1 {
		t.Errorf("text malformed = %v, want 1", got)
	}
}

func TestCursorMetrics_WiredIntoResolver(t *testing.T) {
	m := NewCursorMetrics()
	v, _ := cursor.NewValidator("id")
	r, err := cursor.NewResolver(v, cursor.WithObserver(m))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	_, _ = r.Resolve(cursor.Spec{cursor.Asc("a")}, nil)
	_, _ = r.Resolve(cursor.Spec{cursor.Asc("a")}, cursor.Spec{cursor.Asc("b")})

	if got := promtest.ToFloat64(m.validationFailures.WithLabelValues("missing_fields")); got != 1 {
		t.Errorf("missing_fields = %v, want 1", got)
	}
}

func TestCursorMetrics_MustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCursorMetrics()
	m.MustRegister(reg)

	if err := reg.Register(m.decodes); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestRegistry_Handler(t *testing.T) {
	registry := NewRegistry()
	registry.Cursor().ObserveDecode(codec.FormatCompact, nil)
	registry.Cursor().ObserveResolve(true, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, metric := range []string{
		"keyset_cursor_decode_total",
		"keyset_cursor_resolutions_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("expected metric %s in output", metric)
		}
	}
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "custom_total", Help: "custom"})

	if err := registry.Register(counter); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(counter); err == nil {
		t.Error("expected duplicate registration error")
	}
	if registry.Gatherer() == nil {
		t.Error("Gatherer() returned nil")
	}
}

func TestRegistry_WriteText(t *testing.T) {
	registry := NewRegistry()
	registry.Cursor().ObserveDecode(codec.FormatCompact, nil)

	var buf strings.Builder
	if err := registry.WriteText(&buf, Namespace); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `keyset_cursor_decode_total{format="compact",result="ok"} 1`) {
		t.Errorf("missing decode counter in:\n%s", out)
	}
	if strings.Contains(out, "go_goroutines") {
		t.Error("runtime metrics should be filtered by prefix")
	}
}
