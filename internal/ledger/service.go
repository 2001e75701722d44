package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/pkg/db"
	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
	"github.com/noor-academy/lessonledger/pkg/logger"
	"github.com/noor-academy/lessonledger/pkg/metrics"
	"github.com/noor-academy/lessonledger/pkg/outbox"
	"github.com/noor-academy/lessonledger/pkg/pagination"
)

// DefaultMaturityWindow applies when the configured window is zero.
const DefaultMaturityWindow = 14 * 24 * time.Hour

// Posting is one side of a movement. Amount is always a positive magnitude;
// the side it appears on decides the sign.
type Posting struct {
	UserID    uuid.UUID
	Currency  enums.Currency
	Amount    decimal.Decimal
	Kind      enums.EntryKind
	Reference *string
	MaturesAt *time.Time
}

// Movement debits and/or credits accounts atomically. When both sides are
// set the two entries reference each other.
type Movement struct {
	Debit  *Posting
	Credit *Posting
	// RequireMature caps the debit at the transferable balance instead of the
	// plain balance.
	RequireMature bool
}

// Applied carries the entries written for a movement.
type Applied struct {
	Debit  *models.LedgerEntry
	Credit *models.LedgerEntry
}

// Poster applies movements inside a caller-owned transaction. Services that
// move money alongside their own rows depend on this.
type Poster interface {
	Post(ctx context.Context, tx *gorm.DB, movement Movement) (*Applied, error)
}

// Service is the balance and entry store.
type Service interface {
	Poster
	RecordPurchase(ctx context.Context, input PurchaseInput) (*models.LedgerEntry, error)
	RecordSpend(ctx context.Context, input SpendInput) (*models.LedgerEntry, error)
	GrantBonus(ctx context.Context, input BonusInput) (*models.LedgerEntry, error)
	RecordRefund(ctx context.Context, input RefundInput) (*models.LedgerEntry, error)
	TransferableBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (decimal.Decimal, error)
	Maturity(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*MaturityReport, error)
	Balance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Balance, error)
	ListEntries(ctx context.Context, input ListEntriesInput) (*EntryList, error)
	Reconcile(ctx context.Context) (*Reconciliation, error)
}

// ServiceParams bundles the ledger dependencies.
type ServiceParams struct {
	Repo           Repository
	Tx             db.TxRunner
	Outbox         outbox.Emitter
	Logger         *logger.Logger
	Metrics        metrics.LedgerRecorder
	MaturityWindow time.Duration
	Now            func() time.Time
}

type service struct {
	repo    Repository
	tx      db.TxRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics metrics.LedgerRecorder
	window  time.Duration
	now     func() time.Time
}

// NewService wires the ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.MaturityWindow < 0 {
		return nil, fmt.Errorf("maturity window must not be negative")
	}
	window := params.MaturityWindow
	if window == 0 {
		window = DefaultMaturityWindow
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		logg:    logg,
		metrics: params.Metrics,
		window:  window,
		now:     now,
	}, nil
}

type accountKey struct {
	userID   uuid.UUID
	currency enums.Currency
}

func (k accountKey) less(other accountKey) bool {
	if k.userID != other.userID {
		return k.userID.String() < other.userID.String()
	}
	return k.currency < other.currency
}

// Post locks the touched balance rows in a fixed order, checks funds, writes
// the entries and bumps each balance with a version compare-and-set.
func (s *service) Post(ctx context.Context, tx *gorm.DB, movement Movement) (*Applied, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger post requires a transaction")
	}
	if err := validateMovement(movement); err != nil {
		return nil, err
	}

	now := s.now()
	repo := s.repo.WithTx(tx)

	keys := make([]accountKey, 0, 2)
	if movement.Debit != nil {
		keys = append(keys, accountKey{movement.Debit.UserID, movement.Debit.Currency})
	}
	if movement.Credit != nil {
		keys = append(keys, accountKey{movement.Credit.UserID, movement.Credit.Currency})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	balances := make(map[accountKey]*models.Balance, len(keys))
	for _, key := range keys {
		if err := repo.EnsureBalance(ctx, key.userID, key.currency, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure balance row")
		}
	}
	for _, key := range keys {
		balance, err := repo.LockBalance(ctx, key.userID, key.currency)
		if err != nil {
			return nil, mapWriteError(err, "lock balance")
		}
		balances[key] = balance
	}

	applied := &Applied{}
	entries := make([]*models.LedgerEntry, 0, 2)

	if debit := movement.Debit; debit != nil {
		key := accountKey{debit.UserID, debit.Currency}
		balance := balances[key]
		if err := s.checkFunds(ctx, repo, balance, debit, movement.RequireMature, now); err != nil {
			return nil, err
		}
		applied.Debit = newEntry(balance, debit, debit.Amount.Neg(), now)
		entries = append(entries, applied.Debit)
	}
	if credit := movement.Credit; credit != nil {
		key := accountKey{credit.UserID, credit.Currency}
		applied.Credit = newEntry(balances[key], credit, credit.Amount, now)
		entries = append(entries, applied.Credit)
	}
	if applied.Debit != nil && applied.Credit != nil {
		debitID, creditID := applied.Debit.ID, applied.Credit.ID
		applied.Debit.RelatedEntryID = &creditID
		applied.Credit.RelatedEntryID = &debitID
	}

	if err := repo.InsertEntries(ctx, entries); err != nil {
		return nil, mapWriteError(err, "insert ledger entries")
	}

	for _, entry := range entries {
		key := accountKey{entry.UserID, entry.Currency}
		balance := balances[key]
		ok, err := repo.UpdateBalance(ctx, entry.UserID, entry.Currency, balance.Version, entry.BalanceAfter, now)
		if err != nil {
			return nil, mapWriteError(err, "update balance")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConcurrentModification, "balance changed concurrently")
		}
		balance.Amount = entry.BalanceAfter
		balance.Version++
	}

	return applied, nil
}

func (s *service) checkFunds(ctx context.Context, repo Repository, balance *models.Balance, debit *Posting, requireMature bool, now time.Time) error {
	if requireMature {
		history, err := repo.ListAccountEntries(ctx, debit.UserID, debit.Currency)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account history")
		}
		transferable := TransferableBalance(history, now)
		if debit.Amount.GreaterThan(transferable) {
			return pkgerrors.New(
				pkgerrors.CodeInsufficientMatureBalance,
				fmt.Sprintf("only %s %s are transferable; credits become transferable %d days after purchase",
					transferable.String(), debit.Currency, int(s.window.Hours()/24)),
			).WithDetails(map[string]any{
				"transferable": transferable.String(),
				"requested":    debit.Amount.String(),
			})
		}
		return nil
	}
	if debit.Amount.GreaterThan(balance.Amount) {
		return pkgerrors.New(
			pkgerrors.CodeInsufficientBalance,
			fmt.Sprintf("balance of %s %s is below the requested %s", balance.Amount.String(), debit.Currency, debit.Amount.String()),
		).WithDetails(map[string]any{
			"balance":   balance.Amount.String(),
			"requested": debit.Amount.String(),
		})
	}
	return nil
}

func newEntry(balance *models.Balance, posting *Posting, delta decimal.Decimal, now time.Time) *models.LedgerEntry {
	next := balance.Amount.Add(delta)
	return &models.LedgerEntry{
		ID:           uuid.New(),
		UserID:       posting.UserID,
		Currency:     posting.Currency,
		Sequence:     balance.Version + 1,
		Kind:         posting.Kind,
		Delta:        delta,
		BalanceAfter: next,
		Reference:    posting.Reference,
		MaturesAt:    posting.MaturesAt,
		CreatedAt:    now,
	}
}

func validateMovement(movement Movement) error {
	if movement.Debit == nil && movement.Credit == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "movement needs a debit or a credit")
	}
	for _, posting := range []*Posting{movement.Debit, movement.Credit} {
		if posting == nil {
			continue
		}
		if posting.UserID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
		}
		if !posting.Currency.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", posting.Currency))
		}
		if !posting.Kind.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid entry kind %q", posting.Kind))
		}
		if !posting.Amount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
		}
	}
	if movement.Credit != nil && movement.Credit.Kind.IsDebit() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s entries cannot credit an account", movement.Credit.Kind))
	}
	if movement.Debit != nil && movement.Credit != nil &&
		movement.Debit.UserID == movement.Credit.UserID &&
		movement.Debit.Currency == movement.Credit.Currency {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot move funds within the same account")
	}
	return nil
}

func mapWriteError(err error, action string) error {
	if err == nil {
		return nil
	}
	var typed *pkgerrors.Error
	if errors.As(err, &typed) {
		return err
	}
	if db.IsUniqueViolation(err, "uq_ledger_entries_account_seq") || db.IsSerializationFailure(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConcurrentModification, err, "balance changed concurrently")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, action)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func (s *service) TransferableBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (decimal.Decimal, error) {
	report, err := s.Maturity(ctx, userID, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return report.Transferable, nil
}

// Maturity is recomputed from the full history on every call.
func (s *service) Maturity(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*MaturityReport, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", currency))
	}
	history, err := s.repo.ListAccountEntries(ctx, userID, currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account history")
	}
	report := Replay(history, s.now())
	return &report, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Balance, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", currency))
	}
	balance, err := s.repo.FindBalance(ctx, userID, currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	return balance, nil
}

// ListEntriesInput pages through a user's history newest first.
type ListEntriesInput struct {
	UserID   uuid.UUID
	Currency *enums.Currency
	Params   pagination.Params
}

type EntryList = pagination.Page[models.LedgerEntry]

func (s *service) ListEntries(ctx context.Context, input ListEntriesInput) (*EntryList, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Currency != nil && !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", *input.Currency))
	}
	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListEntries(ctx, input.UserID, input.Currency, cursor, pagination.FetchLimit(input.Params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}

	page := pagination.Paginate(rows, input.Params.Limit, func(e models.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return &page, nil
}

// Reconciliation compares both legs of every peer transfer.
type Reconciliation struct {
	TransferOut decimal.Decimal `json:"transfer_out"`
	TransferIn  decimal.Decimal `json:"transfer_in"`
	Balanced    bool            `json:"balanced"`
}

func (s *service) Reconcile(ctx context.Context) (*Reconciliation, error) {
	out, err := s.repo.SumByKind(ctx, enums.EntryKindTransferOut)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum transfer_out")
	}
	in, err := s.repo.SumByKind(ctx, enums.EntryKindTransferIn)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum transfer_in")
	}
	return &Reconciliation{
		TransferOut: out,
		TransferIn:  in,
		Balanced:    out.Add(in).IsZero(),
	}, nil
}
