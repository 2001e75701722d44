package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/lessonledger/internal/ledger"
)

type fakeClearer struct {
	cleared int64
	err     error
	calls   int
}

func (f *fakeClearer) ClearMatured(context.Context) (int64, error) {
	f.calls++
	return f.cleared, f.err
}

type fakeReconciler struct {
	report *ledger.Reconciliation
	err    error
}

func (f fakeReconciler) Reconcile(context.Context) (*ledger.Reconciliation, error) {
	return f.report, f.err
}

func TestEarningsClearingJob(t *testing.T) {
	clearer := &fakeClearer{cleared: 3}
	job, err := NewEarningsClearingJob(nil, clearer)
	require.NoError(t, err)
	require.Equal(t, "earnings-clearing", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, clearer.calls)

	clearer.err = errors.New("db down")
	require.ErrorContains(t, job.Run(context.Background()), "db down")

	_, err = NewEarningsClearingJob(nil, nil)
	require.Error(t, err)
}

func TestLedgerReconcileJob(t *testing.T) {
	balanced := &ledger.Reconciliation{
		TransferOut: decimal.NewFromInt(-5),
		TransferIn:  decimal.NewFromInt(5),
		Balanced:    true,
	}
	job, err := NewLedgerReconcileJob(nil, fakeReconciler{report: balanced})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	drifted := &ledger.Reconciliation{
		TransferOut: decimal.NewFromInt(-5),
		TransferIn:  decimal.NewFromInt(4),
	}
	job, err = NewLedgerReconcileJob(nil, fakeReconciler{report: drifted})
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "unbalanced")

	job, err = NewLedgerReconcileJob(nil, fakeReconciler{err: errors.New("timeout")})
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "timeout")
}
