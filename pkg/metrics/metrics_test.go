package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("jobs_total", "Jobs")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Fatalf("expected 5, got %d", c.Value())
	}
	if r.Counter("jobs_total", "") != c {
		t.Fatal("expected same counter instance")
	}

	g := r.Gauge("sessions", "")
	g.Set(3)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 2 {
		t.Fatalf("expected 2, got %d", g.Value())
	}
}

func TestKindMismatchPanics(t *testing.T) {
	r := New()
	r.Counter("x", "")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.Gauge("x", "")
}

func TestHistogramBuckets(t *testing.T) {
	r := New()
	h := r.Histogram("lat", "", []float64{1, 0.1, 0.5})
	for _, v := range []float64{0.05, 0.1, 0.3, 0.8, 2.0} {
		h.Observe(v)
	}
	buckets, counts, sum, count := h.snapshot()
	if buckets[0] != 0.1 || buckets[2] != 1 {
		t.Fatalf("buckets not sorted: %v", buckets)
	}
	if counts[0] != 2 || counts[1] != 1 || counts[2] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if count != 5 || sum < 3.24 || sum > 3.26 {
		t.Fatalf("count=%d sum=%f", count, sum)
	}
}

func TestWithLabels(t *testing.T) {
	if got := WithLabels("t", "from", "CREATED", "to", "PDI"); got != `t{from="CREATED",to="PDI"}` {
		t.Fatalf("got %s", got)
	}
	if got := WithLabels("t", "odd"); got != "t" {
		t.Fatalf("got %s", got)
	}
	if BaseName(`t{a="b"}`) != "t" {
		t.Fatal("BaseName")
	}
}

func TestRenderHistogramWithLabels(t *testing.T) {
	r := New()
	r.Histogram(WithLabels("up_seconds", "service", "chat"), "Upstream", []float64{1}).Observe(0.5)
	out := r.Render()
	for _, want := range []string{
		"# HELP up_seconds Upstream",
		"# TYPE up_seconds histogram",
		`up_seconds_bucket{le="1",service="chat"} 1`,
		`up_seconds_bucket{le="+Inf",service="chat"} 1`,
		`up_seconds_sum{service="chat"} 0.5`,
		`up_seconds_count{service="chat"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWorkshopMetrics(t *testing.T) {
	w := NewWorkshop(New())
	w.Transition("CREATED", "CONTEXT_VERIFIED")
	w.Transition("CREATED", "CONTEXT_VERIFIED")
	w.Rejected("illegal")
	w.Upstream("chat", time.Now(), errors.New("boom"))
	w.ActiveSessions.Inc()

	rec := httptest.NewRecorder()
	w.Registry().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`eka_jobcard_transitions_total{from="CREATED",to="CONTEXT_VERIFIED"} 2`,
		`eka_jobcard_transitions_rejected_total{reason="illegal"} 1`,
		`eka_upstream_errors_total{service="chat"} 1`,
		"eka_active_sessions 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatal("wrong content type")
	}
}
