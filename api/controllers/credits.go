package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noor-academy/lessonledger/api/responses"
	"github.com/noor-academy/lessonledger/api/validators"
	"github.com/noor-academy/lessonledger/internal/ledger"
	"github.com/noor-academy/lessonledger/internal/transfers"
	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
	"github.com/noor-academy/lessonledger/pkg/logger"
	"github.com/noor-academy/lessonledger/pkg/pagination"
)

type transferRequest struct {
	RecipientEmail string          `json:"recipient_email" validate:"required,email"`
	Amount         decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Notes          string          `json:"notes" validate:"max=500"`
}

type transferResponse struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Transfer *models.CreditTransfer `json:"transfer"`
}

// CreditsBalance returns the cached balance for the caller.
func CreditsBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := validators.ParseQueryCurrency(r, "currency", enums.CurrencyCredits)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), userID, currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// CreditsTransferable reports how much of the balance has matured and when
// the next lot becomes transferable.
func CreditsTransferable(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := validators.ParseQueryCurrency(r, "currency", enums.CurrencyCredits)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Maturity(r.Context(), userID, currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func CreditsEntries(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ledger.ListEntriesInput{
			UserID: userID,
			Params: pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")},
		}
		if r.URL.Query().Has("currency") {
			currency, err := validators.ParseQueryCurrency(r, "currency", enums.CurrencyCredits)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Currency = &currency
		}

		list, err := svc.ListEntries(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// CreditsTransfer moves matured credits from the caller to the recipient
// resolved by email.
func CreditsTransfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("transfers"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Transfer(r.Context(), transfers.TransferInput{
			FromUserID:     userID,
			RecipientEmail: payload.RecipientEmail,
			Amount:         payload.Amount,
			Notes:          validators.SanitizeString(payload.Notes, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, transferResponse{
			Success:  true,
			Message:  result.Message,
			Transfer: result.Transfer,
		})
	}
}

func CreditsTransferHistory(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("transfers"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.List(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}
