package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/lessonledger/pkg/enums"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
)

type amountPayload struct {
	Amount decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Notes  string          `json:"notes" validate:"max=10"`
}

func TestDecodeJSONBodyValidatesDecimals(t *testing.T) {
	var ok amountPayload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"2.5"}`))
	require.NoError(t, DecodeJSONBody(req, &ok))
	require.True(t, ok.Amount.Equal(decimal.RequireFromString("2.5")))

	var bad amountPayload
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"-1"}`))
	err := DecodeJSONBody(req, &bad)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, map[string]string{"amount": "must be a positive amount"}, typed.Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var payload amountPayload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1","extra":true}`))
	err := DecodeJSONBody(req, &payload)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestParseQueryCurrency(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?currency=TOKENS", nil)
	currency, err := ParseQueryCurrency(req, "currency", enums.CurrencyCredits)
	require.NoError(t, err)
	require.Equal(t, enums.CurrencyTokens, currency)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	currency, err = ParseQueryCurrency(req, "currency", enums.CurrencyCredits)
	require.NoError(t, err)
	require.Equal(t, enums.CurrencyCredits, currency)

	req = httptest.NewRequest(http.MethodGet, "/?currency=gold", nil)
	_, err = ParseQueryCurrency(req, "currency", enums.CurrencyCredits)
	require.Error(t, err)
}

func TestParseURLUUID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("payoutId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	_, err := ParseURLUUID(req, "payoutId")
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.Error(t, err)

	req = httptest.NewRequest(http.MethodGet, "/?limit=5", nil)
	limit, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 5, limit)
}

func TestSanitizeStringIsRuneSafe(t *testing.T) {
	require.Equal(t, "صدقة", SanitizeString("  صدقة جارية ", 4))
	require.Equal(t, "line one\nline two", SanitizeString("line one\nline two\x00", 0))
	require.Equal(t, "ab", SanitizeString("a\x07b", 10))
	require.Equal(t, "", SanitizeString("   ", 10))
}
