package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("ledger-events")
	m.IncPublished("ledger-events")
	m.IncFailed("tier-events")
	m.IncDeadLettered("")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	published, err := fetchCounterValue(mfs, "lessonledger_outbox_published_total", "topic", "ledger-events")
	require.NoError(t, err)
	require.Equal(t, 2.0, published)

	dead, err := fetchCounterValue(mfs, "lessonledger_outbox_dead_lettered_total", "reason", "unknown")
	require.NoError(t, err)
	require.Equal(t, 1.0, dead)

	var nilMetrics *OutboxMetrics
	nilMetrics.IncPublished("x")
}
