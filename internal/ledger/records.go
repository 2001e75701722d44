package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
	"github.com/noor-academy/lessonledger/pkg/metrics"
	"github.com/noor-academy/lessonledger/pkg/outbox"
	"github.com/noor-academy/lessonledger/pkg/outbox/payloads"
)

// PurchaseInput is a confirmed purchase from the payment side. PurchasedAt
// defaults to now and starts the maturity clock.
type PurchaseInput struct {
	UserID      uuid.UUID
	Currency    enums.Currency
	Amount      decimal.Decimal
	PurchasedAt time.Time
	Reference   string
}

// SpendInput is consumption by a metered caller.
type SpendInput struct {
	UserID    uuid.UUID
	Currency  enums.Currency
	Amount    decimal.Decimal
	Reference string
}

type BonusInput struct {
	UserID    uuid.UUID
	Currency  enums.Currency
	Amount    decimal.Decimal
	Reference string
}

// RefundInput carries a signed amount: positive returns funds to the user,
// negative claws them back.
type RefundInput struct {
	UserID    uuid.UUID
	Currency  enums.Currency
	Amount    decimal.Decimal
	Reference string
}

// RecordPurchase is idempotent on Reference per account.
func (s *service) RecordPurchase(ctx context.Context, input PurchaseInput) (entry *models.LedgerEntry, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "purchase", err) }()

	now := s.now()
	purchasedAt := input.PurchasedAt.UTC()
	if input.PurchasedAt.IsZero() {
		purchasedAt = now
	}
	if purchasedAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchased_at cannot be in the future")
	}
	maturesAt := purchasedAt.Add(s.window)
	reference := strings.TrimSpace(input.Reference)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if reference != "" {
			existing, lookupErr := s.repo.WithTx(tx).FindByReference(ctx, input.UserID, input.Currency, enums.EntryKindPurchase, reference)
			if lookupErr == nil {
				entry = existing
				return nil
			}
			if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, lookupErr, "lookup purchase reference")
			}
		}

		applied, postErr := s.Post(ctx, tx, Movement{Credit: &Posting{
			UserID:    input.UserID,
			Currency:  input.Currency,
			Amount:    input.Amount,
			Kind:      enums.EntryKindPurchase,
			Reference: optional(reference),
			MaturesAt: &maturesAt,
		}})
		if postErr != nil {
			return postErr
		}
		entry = applied.Credit

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseRecorded,
			AggregateType: enums.AggregateLedgerEntry,
			AggregateID:   entry.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: enums.ActorRoleService},
			Data: payloads.PurchaseRecordedEvent{
				EntryID:     entry.ID,
				UserID:      input.UserID,
				Currency:    input.Currency,
				Amount:      input.Amount,
				PurchasedAt: purchasedAt,
				MaturesAt:   &maturesAt,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":  input.UserID.String(),
		"currency": input.Currency,
		"amount":   input.Amount.String(),
		"entry_id": entry.ID.String(),
	}), "purchase recorded")
	return entry, nil
}

// RecordSpend draws on the whole balance; maturity only gates movement
// between users.
func (s *service) RecordSpend(ctx context.Context, input SpendInput) (entry *models.LedgerEntry, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "spend", err) }()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, postErr := s.Post(ctx, tx, Movement{Debit: &Posting{
			UserID:    input.UserID,
			Currency:  input.Currency,
			Amount:    input.Amount,
			Kind:      enums.EntryKindSpend,
			Reference: optional(strings.TrimSpace(input.Reference)),
		}})
		if postErr != nil {
			return postErr
		}
		entry = applied.Debit
		return nil
	})
	if err != nil {
		s.warnRejected(ctx, "spend rejected", input.UserID, err)
		return nil, err
	}
	return entry, nil
}

// GrantBonus credits immediately-mature funds.
func (s *service) GrantBonus(ctx context.Context, input BonusInput) (entry *models.LedgerEntry, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "bonus", err) }()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, postErr := s.Post(ctx, tx, Movement{Credit: &Posting{
			UserID:    input.UserID,
			Currency:  input.Currency,
			Amount:    input.Amount,
			Kind:      enums.EntryKindBonus,
			Reference: optional(strings.TrimSpace(input.Reference)),
		}})
		if postErr != nil {
			return postErr
		}
		entry = applied.Credit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordRefund restores funds with a fresh maturity window, or claws them
// back when the amount is negative.
func (s *service) RecordRefund(ctx context.Context, input RefundInput) (entry *models.LedgerEntry, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "refund", err) }()

	if input.Amount.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must not be zero")
	}
	reference := optional(strings.TrimSpace(input.Reference))

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		posting := &Posting{
			UserID:    input.UserID,
			Currency:  input.Currency,
			Amount:    input.Amount.Abs(),
			Kind:      enums.EntryKindRefund,
			Reference: reference,
		}
		if input.Amount.IsNegative() {
			applied, postErr := s.Post(ctx, tx, Movement{Debit: posting})
			if postErr != nil {
				return postErr
			}
			entry = applied.Debit
			return nil
		}
		maturesAt := s.now().Add(s.window)
		posting.MaturesAt = &maturesAt
		applied, postErr := s.Post(ctx, tx, Movement{Credit: posting})
		if postErr != nil {
			return postErr
		}
		entry = applied.Credit
		return nil
	})
	if err != nil {
		s.warnRejected(ctx, "refund rejected", input.UserID, err)
		return nil, err
	}
	return entry, nil
}

func (s *service) warnRejected(ctx context.Context, msg string, userID uuid.UUID, err error) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() == pkgerrors.CodeDependency || typed.Code() == pkgerrors.CodeInternal {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), msg, err)
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"user_id": userID.String(),
		"code":    string(typed.Code()),
	}), fmt.Sprintf("%s: %s", msg, typed.Message()))
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
