package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/lessonledger/pkg/db/dbtest"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
)

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestRegisterNormalizesEmail(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register(context.Background(), CreateUserDTO{Email: "  Amina@Example.COM ", DisplayName: " Amina "})
	require.NoError(t, err)
	require.Equal(t, "amina@example.com", user.Email)
	require.Equal(t, "Amina", user.DisplayName)
	require.True(t, user.IsActive)

	_, err = svc.Register(context.Background(), CreateUserDTO{Email: "amina@example.com"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), CreateUserDTO{Email: "not-an-email"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestResolveRecipientIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)
	created, err := svc.Register(context.Background(), CreateUserDTO{Email: "yusuf@example.com"})
	require.NoError(t, err)

	found, err := svc.ResolveRecipient(context.Background(), "YUSUF@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = svc.ResolveRecipient(context.Background(), "nobody@example.com")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestResolveRecipientSkipsInactiveUsers(t *testing.T) {
	svc, repo := newTestService(t)
	created, err := svc.Register(context.Background(), CreateUserDTO{Email: "hafsa@example.com"})
	require.NoError(t, err)
	require.NoError(t, repo.SetActive(context.Background(), created.ID, false))

	_, err = svc.ResolveRecipient(context.Background(), "hafsa@example.com")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRegisterKeepsProvidedID(t *testing.T) {
	svc, _ := newTestService(t)
	id := uuid.New()

	user, err := svc.Register(context.Background(), CreateUserDTO{ID: id, Email: "bilal@example.com"})
	require.NoError(t, err)
	require.Equal(t, id, user.ID)

	got, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "bilal@example.com", got.Email)
}
