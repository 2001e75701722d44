package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
)

// Outcome labels used by LedgerMetrics.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// LedgerRecorder is what domain services depend on; a nil *LedgerMetrics is a
// valid no-op recorder.
type LedgerRecorder interface {
	ObserveOperation(operation, outcome string)
	ObserveRejection(operation, code string)
	AddEarningsCleared(n int64)
	IncPromotion(ladder string, toLevel string)
}

// LedgerMetrics counts money movements and tier changes.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
	cleared    prometheus.Counter
	promotions *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonledger_operations_total",
		Help: "Ledger operations by name and outcome.",
	}, []string{"operation", "outcome"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonledger_rejections_total",
		Help: "Business rejections by operation and error code.",
	}, []string{"operation", "code"})
	cleared := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lessonledger_earnings_cleared_total",
		Help: "Teacher earnings moved from held to cleared.",
	})
	promotions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonledger_tier_promotions_total",
		Help: "Tier promotions by ladder and destination level.",
	}, []string{"ladder", "to_level"})
	reg.MustRegister(operations, rejections, cleared, promotions)
	return &LedgerMetrics{
		operations: operations,
		rejections: rejections,
		cleared:    cleared,
		promotions: promotions,
	}
}

func (m *LedgerMetrics) ObserveOperation(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *LedgerMetrics) ObserveRejection(operation, code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

func (m *LedgerMetrics) AddEarningsCleared(n int64) {
	if m == nil || m.cleared == nil || n <= 0 {
		return
	}
	m.cleared.Add(float64(n))
}

func (m *LedgerMetrics) IncPromotion(ladder string, toLevel string) {
	if m == nil || m.promotions == nil {
		return
	}
	m.promotions.WithLabelValues(normalizeLabel(ladder), normalizeLabel(toLevel)).Inc()
}

// ObserveResult classifies err and records it against operation. Typed
// business errors count as rejections; anything else is an error.
func ObserveResult(rec LedgerRecorder, operation string, err error) {
	if rec == nil {
		return
	}
	if err == nil {
		rec.ObserveOperation(operation, OutcomeSuccess)
		return
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() == pkgerrors.CodeInternal || typed.Code() == pkgerrors.CodeDependency {
		rec.ObserveOperation(operation, OutcomeError)
		return
	}
	rec.ObserveOperation(operation, OutcomeRejected)
	rec.ObserveRejection(operation, string(typed.Code()))
}
