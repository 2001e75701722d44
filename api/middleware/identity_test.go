package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

func TestIdentityPopulatesContext(t *testing.T) {
	userID := uuid.New()
	var gotUser string
	var gotRole enums.ActorRole
	handler := Identity(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits/balance", nil)
	req.Header.Set(UserIDHeader, userID.String())
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, userID.String(), gotUser)
	require.Equal(t, enums.ActorRoleUser, gotRole)

	req.Header.Set(ActorRoleHeader, "Staff")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, enums.ActorRoleStaff, gotRole)
}

func TestIdentityRejectsMissingOrBadHeaders(t *testing.T) {
	handler := Identity(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := map[string]map[string]string{
		"missing user": {},
		"bad user":     {UserIDHeader: "not-a-uuid"},
		"bad role":     {UserIDHeader: uuid.NewString(), ActorRoleHeader: "admin"},
	}
	for name, headers := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/credits/balance", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code, name)
	}
}

func TestRequirePrivileged(t *testing.T) {
	handler := RequirePrivileged(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[enums.ActorRole]int{
		enums.ActorRoleUser:    http.StatusForbidden,
		enums.ActorRoleStaff:   http.StatusNoContent,
		enums.ActorRoleService: http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/purchases", nil)
		req = req.WithContext(WithRole(req.Context(), role))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, want, resp.Code, string(role))
	}
}
