package cron

import (
	"context"
	"fmt"

	"github.com/noor-academy/lessonledger/internal/ledger"
	"github.com/noor-academy/lessonledger/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context) (*ledger.Reconciliation, error)
}

// NewLedgerReconcileJob fails the cycle when transfer legs no longer net to
// zero across all accounts.
func NewLedgerReconcileJob(logg *logger.Logger, svc reconciler) (Job, error) {
	if svc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &ledgerReconcileJob{logg: logg, svc: svc}, nil
}

type ledgerReconcileJob struct {
	logg *logger.Logger
	svc  reconciler
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	report, err := j.svc.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile ledger: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"transfer_out": report.TransferOut.String(),
		"transfer_in":  report.TransferIn.String(),
	})
	if !report.Balanced {
		return fmt.Errorf("ledger transfers unbalanced: out=%s in=%s", report.TransferOut, report.TransferIn)
	}
	j.logg.Info(logCtx, "ledger transfers balanced")
	return nil
}
