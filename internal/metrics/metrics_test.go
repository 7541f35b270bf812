package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hitoshi/volman/internal/checkout"
)

// CollectorはcheckoutサービスのRecorderとして使える必要がある
var _ checkout.Recorder = (*Collector)(nil)

func TestCollector_RecordConfirmSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordConfirmSuccess(2, 5)
	c.RecordConfirmSuccess(1, 3)

	if got := testutil.ToFloat64(c.confirmSuccess); got != 2 {
		t.Errorf("expected 2 confirm successes, got %v", got)
	}
	if got := testutil.ToFloat64(c.registrations); got != 3 {
		t.Errorf("expected 3 registrations, got %v", got)
	}
	if got := testutil.ToFloat64(c.slotsCommitted); got != 8 {
		t.Errorf("expected 8 slots committed, got %v", got)
	}
}

func TestCollector_RecordConfirmRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordConfirmRejected("INSUFFICIENT_SLOTS")
	c.RecordConfirmRejected("INSUFFICIENT_SLOTS")
	c.RecordConfirmRejected("EMPTY_CART")

	if got := testutil.ToFloat64(c.confirmRejected.WithLabelValues("INSUFFICIENT_SLOTS")); got != 2 {
		t.Errorf("expected 2 INSUFFICIENT_SLOTS rejections, got %v", got)
	}
	if got := testutil.ToFloat64(c.confirmRejected.WithLabelValues("EMPTY_CART")); got != 1 {
		t.Errorf("expected 1 EMPTY_CART rejection, got %v", got)
	}
}

func TestCollector_RecordCatalogImport(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCatalogImport(10, 2)

	if got := testutil.ToFloat64(c.catalogImported); got != 10 {
		t.Errorf("expected 10 imported, got %v", got)
	}
	if got := testutil.ToFloat64(c.catalogSkipped); got != 2 {
		t.Errorf("expected 2 skipped, got %v", got)
	}
}

func TestSetupMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordConfirmSuccess(1, 2)
	c.RecordConfirmLatency(50 * time.Millisecond)

	handler := SetupMetricsRoute(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	output := string(body)

	for _, metric := range []string{
		"volman_confirm_success_total",
		"volman_slots_committed_total",
		"volman_confirm_latency_seconds",
	} {
		if !strings.Contains(output, metric) {
			t.Errorf("expected metric %s in scrape output", metric)
		}
	}
}
