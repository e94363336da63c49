package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMetricsExistAndIncrement(t *testing.T) {
	// Use a test label to avoid colliding with other tests
	lbl := "TEST_KIND"

	RecordsPublished.WithLabelValues(lbl).Inc()
	if v := testutil.ToFloat64(RecordsPublished.WithLabelValues(lbl)); v < 1 {
		t.Fatalf("expected RecordsPublished >= 1, got %v", v)
	}

	RecordsDropped.WithLabelValues("test-reason").Add(2)
	if v := testutil.ToFloat64(RecordsDropped.WithLabelValues("test-reason")); v < 2 {
		t.Fatalf("expected RecordsDropped >= 2, got %v", v)
	}

	LookupMisses.WithLabelValues("test-store").Inc()
	if v := testutil.ToFloat64(LookupMisses.WithLabelValues("test-store")); v < 1 {
		t.Fatalf("expected LookupMisses >= 1, got %v", v)
	}
}

func TestSinkErrorsLabelCardinality(t *testing.T) {
	AuditSinkErrors.Reset()
	defer AuditSinkErrors.Reset()
	labels := []string{"kafka", "timeout"}
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("AuditSinkErrors panicked with labels %v: %v", labels, r)
		}
	}()

	AuditSinkErrors.WithLabelValues(labels...).Inc()
	if v := testutil.ToFloat64(AuditSinkErrors.WithLabelValues(labels...)); v != 1 {
		t.Fatalf("expected metric value 1 after increment, got %v", v)
	}
}

func TestMetricsHandlerExposesAuditMetrics(t *testing.T) {
	EventsReceived.WithLabelValues("deploymentStatus").Inc()

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "deployaudit_events_received_total") {
		t.Fatalf("expected deployaudit_events_received_total in metrics output")
	}
}
