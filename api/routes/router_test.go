package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/lessonledger/api/middleware"
	"github.com/noor-academy/lessonledger/pkg/config"
	"github.com/noor-academy/lessonledger/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test"},
		RateLimit: config.RateLimitConfig{MoneyLimit: 5, MoneyWindow: time.Minute},
	}
}

func newTestRouter(deps Dependencies) http.Handler {
	return NewRouter(testConfig(), logger.Nop(), deps, Services{})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestHealthLive(t *testing.T) {
	resp := do(t, newTestRouter(Dependencies{}), http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "test", resp.Header().Get("X-LessonLedger-Env"))
}

func TestHealthReadyReportsDownDependency(t *testing.T) {
	router := newTestRouter(Dependencies{
		DB:    stubPinger{},
		Redis: stubPinger{err: errors.New("connection refused")},
	})
	resp := do(t, router, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.Contains(t, resp.Body.String(), `"redis":"down"`)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "lessonledger_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	resp := do(t, newTestRouter(Dependencies{Gatherer: reg}), http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "lessonledger_test_total 1")
}

func TestAPIRequiresIdentity(t *testing.T) {
	resp := do(t, newTestRouter(Dependencies{}), http.MethodGet, "/api/v1/credits/balance", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestInternalRoutesRequirePrivilegedRole(t *testing.T) {
	router := newTestRouter(Dependencies{})
	userID := uuid.NewString()

	resp := do(t, router, http.MethodPost, "/api/v1/internal/purchases", `{}`, map[string]string{
		middleware.UserIDHeader: userID,
	})
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = do(t, router, http.MethodPost, "/api/v1/internal/purchases", `{}`, map[string]string{
		middleware.UserIDHeader:    userID,
		middleware.ActorRoleHeader: "service",
	})
	require.NotEqual(t, http.StatusForbidden, resp.Code)
}

func TestTransfersRequireIdempotencyKey(t *testing.T) {
	router := newTestRouter(Dependencies{Idempotency: &memoryStore{data: map[string]string{}}})
	resp := do(t, router, http.MethodPost, "/api/v1/credits/transfers", `{"recipient_email":"a@b.co","amount":"1"}`, map[string]string{
		middleware.UserIDHeader: uuid.NewString(),
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "Idempotency-Key")
}

func TestPayoutCompletionIsReplayable(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	router := newTestRouter(Dependencies{Idempotency: store})
	headers := map[string]string{
		middleware.UserIDHeader:         uuid.NewString(),
		middleware.ActorRoleHeader:      "staff",
		middleware.IdempotencyKeyHeader: "complete-1",
	}
	path := "/api/v1/internal/payouts/" + uuid.NewString() + "/complete"

	// nil earnings service answers 500, which releases the reservation.
	resp := do(t, router, http.MethodPost, path, `{"external_reference":"wire-1"}`, headers)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Empty(t, store.data)
}
