package transfers

import (
	"context"
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
	"github.com/noor-academy/lessonledger/pkg/pagination"
)

const maxNotesLength = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type recipientResolver interface {
	ResolveRecipient(ctx context.Context, email string) (*models.User, error)
}

// TransferInput moves mature credits from one user to another.
type TransferInput struct {
	FromUserID     uuid.UUID
	RecipientEmail string
	Amount         decimal.Decimal
	Notes          string
}

// Result is what callers show the sender.
type Result struct {
	Transfer *models.CreditTransfer `json:"transfer"`
	Message  string                 `json:"message"`
}

type Service interface {
	Transfer(ctx context.Context, input TransferInput) (*Result, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditTransfer, error)
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Ledger  ledger.Poster
	Users   recipientResolver
	Outbox  outbox.Emitter
	Logger  *logger.Logger
	Metrics metrics.LedgerRecorder
	Now     func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  ledger.Poster
	users   recipientResolver
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics metrics.LedgerRecorder
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("transfers repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger poster required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("recipient resolver required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	svc := &service{
		repo:    params.Repo,
		tx:      params.Tx,
		ledger:  params.Ledger,
		users:   params.Users,
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

func (s *service) Transfer(ctx context.Context, input TransferInput) (result *Result, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "transfer", err) }()

	if input.FromUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	notes := strings.TrimSpace(input.Notes)
	if len(notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}

	recipient, err := s.users.ResolveRecipient(ctx, input.RecipientEmail)
	if err != nil {
		return nil, err
	}
	if recipient.ID == input.FromUserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer credits to yourself")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":      input.FromUserID.String(),
		"recipient_id": recipient.ID.String(),
		"amount":       input.Amount.String(),
	})

	record := &models.CreditTransfer{
		ID:         uuid.New(),
		FromUserID: input.FromUserID,
		ToUserID:   recipient.ID,
		Amount:     input.Amount,
		CreatedAt:  s.now(),
	}
	if notes != "" {
		record.Notes = &notes
	}
	reference := record.ID.String()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := s.ledger.Post(ctx, tx, ledger.Movement{
			Debit: &ledger.Posting{
				UserID:    input.FromUserID,
				Currency:  enums.CurrencyCredits,
				Amount:    input.Amount,
				Kind:      enums.EntryKindTransferOut,
				Reference: &reference,
			},
			Credit: &ledger.Posting{
				UserID:    recipient.ID,
				Currency:  enums.CurrencyCredits,
				Amount:    input.Amount,
				Kind:      enums.EntryKindTransferIn,
				Reference: &reference,
			},
			RequireMature: true,
		})
		if err != nil {
			return err
		}
		record.OutEntryID = applied.Debit.ID
		record.InEntryID = applied.Credit.ID

		if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transfer record")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCreditsTransferred,
			AggregateType: enums.AggregateCreditTransfer,
			AggregateID:   record.ID,
			Actor:         &outbox.ActorRef{UserID: input.FromUserID, Role: enums.ActorRoleUser},
			Data: payloads.CreditsTransferredEvent{
				TransferID: record.ID,
				FromUserID: record.FromUserID,
				ToUserID:   record.ToUserID,
				Amount:     record.Amount,
				Notes:      notes,
			},
			OccurredAt: record.CreatedAt,
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeDependency && typed.Code() != pkgerrors.CodeInternal {
			s.logg.Warn(ctx, "transfer rejected: "+typed.Message())
		} else {
			s.logg.Error(ctx, "transfer failed", err)
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "transfer_id", record.ID.String()), "credits transferred")
	return &Result{
		Transfer: record,
		Message:  fmt.Sprintf("Transferred %s credits to %s", input.Amount.String(), recipient.Email),
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditTransfer, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	records, err := s.repo.ListForUser(ctx, userID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transfers")
	}
	return records, nil
}
