package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetricsLabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.ObserveRequest(http.MethodPost, "/api/v1/credits/transfers", http.StatusCreated, 20*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/api/v1/credits/transfers", http.StatusUnprocessableEntity, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "lessonledger_http_requests_total", "status", "422"); err != nil || got != 1 {
		t.Fatalf("expected one 422, got %v (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "lessonledger_http_requests_total", "route", "unmatched"); err != nil || got != 1 {
		t.Fatalf("expected unmatched route label, got %v (%v)", got, err)
	}
}
