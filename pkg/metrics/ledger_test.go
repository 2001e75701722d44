package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
)

func TestLedgerMetricsCountsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.ObserveOperation("transfer", OutcomeSuccess)
	m.ObserveOperation("transfer", OutcomeSuccess)
	m.ObserveRejection("transfer", "INSUFFICIENT_MATURE_BALANCE")
	m.AddEarningsCleared(3)
	m.IncPromotion("teacher", "3")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "lessonledger_operations_total", "operation", "transfer"); err != nil || got != 2 {
		t.Fatalf("expected 2 transfers, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "lessonledger_rejections_total", "code", "INSUFFICIENT_MATURE_BALANCE"); err != nil || got != 1 {
		t.Fatalf("expected 1 rejection, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "lessonledger_tier_promotions_total", "ladder", "teacher"); err != nil || got != 1 {
		t.Fatalf("expected 1 promotion, got %f (%v)", got, err)
	}
	mf := findMetricFamily(mfs, "lessonledger_earnings_cleared_total")
	if mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 3 {
		t.Fatalf("expected 3 cleared earnings")
	}
}

func TestNilLedgerMetricsIsNoop(t *testing.T) {
	var m *LedgerMetrics
	m.ObserveOperation("transfer", OutcomeError)
	m.ObserveRejection("transfer", "X")
	m.AddEarningsCleared(1)
	m.IncPromotion("referral", "2")

	unregistered := NewLedgerMetrics(nil)
	unregistered.ObserveOperation("donate", OutcomeSuccess)
}

func TestObserveResultClassifiesErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	ObserveResult(m, "donate", nil)
	ObserveResult(m, "donate", pkgerrors.New(pkgerrors.CodeInsufficientMatureBalance, "not yet"))
	ObserveResult(m, "donate", errors.New("boom"))
	ObserveResult(nil, "donate", nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, outcome := range []string{OutcomeSuccess, OutcomeRejected, OutcomeError} {
		got, err := fetchCounterValue(mfs, "lessonledger_operations_total", "outcome", outcome)
		if err != nil || got != 1 {
			t.Fatalf("expected one %s outcome, got %f (%v)", outcome, got, err)
		}
	}
}
