package sadaqah

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/internal/ledger"
	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
	"github.com/noor-academy/lessonledger/pkg/logger"
	"github.com/noor-academy/lessonledger/pkg/metrics"
	"github.com/noor-academy/lessonledger/pkg/outbox"
	"github.com/noor-academy/lessonledger/pkg/outbox/payloads"
)

const maxNotesLength = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type DonateInput struct {
	DonorID uuid.UUID
	Amount  decimal.Decimal
	Notes   string
}

// AllocateInput grants pooled credits to a beneficiary; staff only.
type AllocateInput struct {
	RecipientID uuid.UUID
	Amount      decimal.Decimal
	Lessons     int
	AllocatedBy uuid.UUID
	Notes       string
}

// PoolView is the public projection of the pool.
type PoolView struct {
	TotalDonated   decimal.Decimal `json:"total_donated"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	Balance        decimal.Decimal `json:"balance"`
	DonorCount     int             `json:"donor_count"`
	RecipientCount int             `json:"recipient_count"`
	LessonsFunded  int             `json:"lessons_funded"`
}

type DonationResult struct {
	Donation *models.SadaqahDonation `json:"donation"`
	Pool     PoolView                `json:"pool"`
	Message  string                  `json:"message"`
}

type AllocationResult struct {
	Allocation *models.SadaqahAllocation `json:"allocation"`
	Pool       PoolView                  `json:"pool"`
}

type Service interface {
	Donate(ctx context.Context, input DonateInput) (*DonationResult, error)
	Allocate(ctx context.Context, input AllocateInput) (*AllocationResult, error)
	Pool(ctx context.Context) (*PoolView, error)
	Donations(ctx context.Context, donorID uuid.UUID, limit int) ([]models.SadaqahDonation, error)
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Ledger  ledger.Poster
	Outbox  outbox.Emitter
	Logger  *logger.Logger
	Metrics metrics.LedgerRecorder
	Now     func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  ledger.Poster
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics metrics.LedgerRecorder
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("sadaqah repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger poster required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	svc := &service{
		repo:    params.Repo,
		tx:      params.Tx,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     params.Now,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

// Donate debits mature credits from the donor into the shared pool.
func (s *service) Donate(ctx context.Context, input DonateInput) (result *DonationResult, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "donate", err) }()

	if input.DonorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	notes, err := normalizeNotes(input.Notes)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id": input.DonorID.String(),
		"amount":  input.Amount.String(),
	})

	now := s.now()
	donation := &models.SadaqahDonation{
		ID:        uuid.New(),
		DonorID:   input.DonorID,
		Amount:    input.Amount,
		Notes:     notes,
		CreatedAt: now,
	}
	var pool *models.SadaqahPool

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reference := donation.ID.String()
		applied, err := s.ledger.Post(ctx, tx, ledger.Movement{
			Debit: &ledger.Posting{
				UserID:    input.DonorID,
				Currency:  enums.CurrencyCredits,
				Amount:    input.Amount,
				Kind:      enums.EntryKindDonation,
				Reference: &reference,
			},
			RequireMature: true,
		})
		if err != nil {
			return err
		}
		donation.EntryID = applied.Debit.ID

		repo := s.repo.WithTx(tx)
		pool, err = repo.LockPool(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock sadaqah pool")
		}
		previous, err := repo.CountDonationsByDonor(ctx, input.DonorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count donor donations")
		}
		if err := repo.CreateDonation(ctx, donation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create donation")
		}

		pool.TotalDonated = pool.TotalDonated.Add(input.Amount)
		if previous == 0 {
			pool.DonorCount++
		}
		pool.UpdatedAt = now
		if err := repo.SavePool(ctx, pool); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sadaqah pool")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSadaqahDonated,
			AggregateType: enums.AggregateSadaqah,
			AggregateID:   donation.ID,
			Actor:         &outbox.ActorRef{UserID: input.DonorID, Role: enums.ActorRoleUser},
			Data: payloads.SadaqahDonatedEvent{
				DonationID:  donation.ID,
				DonorID:     input.DonorID,
				Amount:      input.Amount,
				PoolBalance: pool.Balance(),
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		s.logFailure(ctx, "donation", err)
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "donation_id", donation.ID.String()), "sadaqah donation recorded")
	return &DonationResult{
		Donation: donation,
		Pool:     toView(pool),
		Message:  fmt.Sprintf("Donated %s credits to the Sadaqah pool", input.Amount.String()),
	}, nil
}

// Allocate moves pooled credits to a beneficiary as an immediately usable bonus.
func (s *service) Allocate(ctx context.Context, input AllocateInput) (result *AllocationResult, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "allocate", err) }()

	if input.AllocatedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if input.Lessons < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lessons must not be negative")
	}
	notes, err := normalizeNotes(input.Notes)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"recipient_id": input.RecipientID.String(),
		"allocated_by": input.AllocatedBy.String(),
		"amount":       input.Amount.String(),
	})

	now := s.now()
	allocation := &models.SadaqahAllocation{
		ID:          uuid.New(),
		RecipientID: input.RecipientID,
		Amount:      input.Amount,
		Lessons:     input.Lessons,
		AllocatedBy: input.AllocatedBy,
		Notes:       notes,
		CreatedAt:   now,
	}
	var pool *models.SadaqahPool

	// balance rows are locked before the pool row, same as donations
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reference := allocation.ID.String()
		applied, err := s.ledger.Post(ctx, tx, ledger.Movement{
			Credit: &ledger.Posting{
				UserID:    input.RecipientID,
				Currency:  enums.CurrencyCredits,
				Amount:    input.Amount,
				Kind:      enums.EntryKindBonus,
				Reference: &reference,
			},
		})
		if err != nil {
			return err
		}
		allocation.EntryID = applied.Credit.ID

		repo := s.repo.WithTx(tx)
		pool, err = repo.LockPool(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock sadaqah pool")
		}
		available := pool.Balance()
		if input.Amount.GreaterThan(available) {
			return pkgerrors.New(
				pkgerrors.CodeInsufficientPoolBalance,
				fmt.Sprintf("pool holds %s credits, %s requested", available.String(), input.Amount.String()),
			).WithDetails(map[string]any{"balance": available.String()})
		}

		previous, err := repo.CountAllocationsByRecipient(ctx, input.RecipientID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count recipient allocations")
		}
		if err := repo.CreateAllocation(ctx, allocation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create allocation")
		}

		pool.TotalAllocated = pool.TotalAllocated.Add(input.Amount)
		pool.LessonsFunded += input.Lessons
		if previous == 0 {
			pool.RecipientCount++
		}
		pool.UpdatedAt = now
		if err := repo.SavePool(ctx, pool); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sadaqah pool")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSadaqahAllocated,
			AggregateType: enums.AggregateSadaqah,
			AggregateID:   allocation.ID,
			Actor:         &outbox.ActorRef{UserID: input.AllocatedBy, Role: enums.ActorRoleStaff},
			Data: payloads.SadaqahAllocatedEvent{
				AllocationID: allocation.ID,
				RecipientID:  input.RecipientID,
				Amount:       input.Amount,
				Lessons:      input.Lessons,
				PoolBalance:  pool.Balance(),
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		s.logFailure(ctx, "allocation", err)
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "allocation_id", allocation.ID.String()), "sadaqah allocation recorded")
	return &AllocationResult{Allocation: allocation, Pool: toView(pool)}, nil
}

func (s *service) Pool(ctx context.Context) (*PoolView, error) {
	pool, err := s.repo.GetPool(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			view := toView(&models.SadaqahPool{})
			return &view, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sadaqah pool")
	}
	view := toView(pool)
	return &view, nil
}

func (s *service) Donations(ctx context.Context, donorID uuid.UUID, limit int) ([]models.SadaqahDonation, error) {
	if donorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	donations, err := s.repo.ListDonationsByDonor(ctx, donorID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list donations")
	}
	return donations, nil
}

func (s *service) logFailure(ctx context.Context, op string, err error) {
	typed := pkgerrors.As(err)
	if typed != nil && typed.Code() != pkgerrors.CodeDependency && typed.Code() != pkgerrors.CodeInternal {
		s.logg.Warn(ctx, op+" rejected: "+typed.Message())
		return
	}
	s.logg.Error(ctx, op+" failed", err)
}

func normalizeNotes(raw string) (*string, error) {
	notes := strings.TrimSpace(raw)
	if notes == "" {
		return nil, nil
	}
	if len(notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}
	return &notes, nil
}

func toView(pool *models.SadaqahPool) PoolView {
	return PoolView{
		TotalDonated:   pool.TotalDonated,
		TotalAllocated: pool.TotalAllocated,
		Balance:        pool.Balance(),
		DonorCount:     pool.DonorCount,
		RecipientCount: pool.RecipientCount,
		LessonsFunded:  pool.LessonsFunded,
	}
}
