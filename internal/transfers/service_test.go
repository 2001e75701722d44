package transfers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/noor-academy/lessonledger/internal/ledger"
	"github.com/noor-academy/lessonledger/internal/users"
	"github.com/noor-academy/lessonledger/pkg/db"
	"github.com/noor-academy/lessonledger/pkg/db/dbtest"
	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
	"github.com/noor-academy/lessonledger/pkg/outbox"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	client *db.Client
	clock  *dbtest.Clock
	ledger ledger.Service
	users  users.Service
	svc    Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	clock := dbtest.NewClock(start)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(client.DB()),
		Tx:     client,
		Outbox: emitter,
		Now:    clock.Now,
	})
	require.NoError(t, err)
	usersSvc, err := users.NewService(users.NewRepository(client.DB()))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(client.DB()),
		Tx:     client,
		Ledger: ledgerSvc,
		Users:  usersSvc,
		Outbox: emitter,
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return &fixture{client: client, clock: clock, ledger: ledgerSvc, users: usersSvc, svc: svc}
}

func (f *fixture) user(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), users.CreateUserDTO{Email: email})
	require.NoError(t, err)
	return user
}

func (f *fixture) buy(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	_, err := f.ledger.RecordPurchase(context.Background(), ledger.PurchaseInput{
		UserID:   userID,
		Currency: enums.CurrencyCredits,
		Amount:   decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	balance, err := f.ledger.Balance(context.Background(), userID, enums.CurrencyCredits)
	require.NoError(t, err)
	return balance.Amount
}

func TestTransferRespectsMaturityWindow(t *testing.T) {
	f := newFixture(t)
	sender := f.user(t, "sender@example.com")
	recipient := f.user(t, "recipient@example.com")
	f.buy(t, sender.ID, 10)

	f.clock.Advance(10 * 24 * time.Hour)
	_, err := f.svc.Transfer(context.Background(), TransferInput{
		FromUserID:     sender.ID,
		RecipientEmail: "recipient@example.com",
		Amount:         decimal.NewFromInt(5),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientMatureBalance), "got %v", err)
	require.True(t, f.balance(t, recipient.ID).IsZero())

	f.clock.Advance(5 * 24 * time.Hour)
	result, err := f.svc.Transfer(context.Background(), TransferInput{
		FromUserID:     sender.ID,
		RecipientEmail: "Recipient@Example.com",
		Amount:         decimal.NewFromInt(5),
		Notes:          "for your tajweed lessons",
	})
	require.NoError(t, err)
	require.Equal(t, "Transferred 5 credits to recipient@example.com", result.Message)
	require.Equal(t, recipient.ID, result.Transfer.ToUserID)
	require.NotEqual(t, uuid.Nil, result.Transfer.OutEntryID)
	require.NotEqual(t, uuid.Nil, result.Transfer.InEntryID)

	require.True(t, f.balance(t, sender.ID).Equal(decimal.NewFromInt(5)))
	require.True(t, f.balance(t, recipient.ID).Equal(decimal.NewFromInt(5)))

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventCreditsTransferred).Count(&events).Error)
	require.Equal(t, int64(1), events)

	history, err := f.svc.List(context.Background(), recipient.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)
	sender := f.user(t, "self@example.com")
	f.buy(t, sender.ID, 10)

	cases := []struct {
		name  string
		input TransferInput
		code  pkgerrors.Code
	}{
		{"zero amount", TransferInput{FromUserID: sender.ID, RecipientEmail: "x@example.com", Amount: decimal.Zero}, pkgerrors.CodeValidation},
		{"negative amount", TransferInput{FromUserID: sender.ID, RecipientEmail: "x@example.com", Amount: decimal.NewFromInt(-1)}, pkgerrors.CodeValidation},
		{"unknown recipient", TransferInput{FromUserID: sender.ID, RecipientEmail: "nobody@example.com", Amount: decimal.NewFromInt(1)}, pkgerrors.CodeNotFound},
		{"self transfer", TransferInput{FromUserID: sender.ID, RecipientEmail: "SELF@example.com", Amount: decimal.NewFromInt(1)}, pkgerrors.CodeValidation},
		{"missing identity", TransferInput{RecipientEmail: "self@example.com", Amount: decimal.NewFromInt(1)}, pkgerrors.CodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Transfer(context.Background(), tc.input)
			require.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}
	require.True(t, f.balance(t, sender.ID).Equal(decimal.NewFromInt(10)))
}

func TestConcurrentTransfersSpendOnce(t *testing.T) {
	f := newFixture(t)
	sender := f.user(t, "rich@example.com")
	f.user(t, "a@example.com")
	f.user(t, "b@example.com")
	f.buy(t, sender.ID, 10)
	f.clock.Advance(15 * 24 * time.Hour)

	var (
		mu       sync.Mutex
		ok       int
		rejected int
	)
	var g errgroup.Group
	for _, email := range []string{"a@example.com", "b@example.com"} {
		g.Go(func() error {
			_, err := f.svc.Transfer(context.Background(), TransferInput{
				FromUserID:     sender.ID,
				RecipientEmail: email,
				Amount:         decimal.NewFromInt(7),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return nil
			}
			if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientMatureBalance) || pkgerrors.IsCode(err, pkgerrors.CodeConcurrentModification) {
				rejected++
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 1, ok)
	require.Equal(t, 1, rejected)
	require.True(t, f.balance(t, sender.ID).Equal(decimal.NewFromInt(3)))

	report, err := f.ledger.Reconcile(context.Background())
	require.NoError(t, err)
	require.True(t, report.Balanced)
}
