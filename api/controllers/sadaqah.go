package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noor-academy/lessonledger/api/responses"
	"github.com/noor-academy/lessonledger/api/validators"
	"github.com/noor-academy/lessonledger/internal/sadaqah"
	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/logger"
	"github.com/noor-academy/lessonledger/pkg/pagination"
)

type donationRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Notes  string          `json:"notes" validate:"max=500"`
}

type donationResponse struct {
	Success  bool                    `json:"success"`
	Message  string                  `json:"message"`
	Donation *models.SadaqahDonation `json:"donation"`
	Pool     sadaqah.PoolView        `json:"pool"`
}

type allocationRequest struct {
	RecipientID string          `json:"recipient_id" validate:"required,uuid"`
	Amount      decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Lessons     int             `json:"lessons" validate:"min=0"`
	Notes       string          `json:"notes" validate:"max=500"`
}

// SadaqahDonate gives matured credits to the shared pool.
func SadaqahDonate(svc sadaqah.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("sadaqah"))
			return
		}
		donorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload donationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Donate(r.Context(), sadaqah.DonateInput{
			DonorID: donorID,
			Amount:  payload.Amount,
			Notes:   validators.SanitizeString(payload.Notes, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, donationResponse{
			Success:  true,
			Message:  result.Message,
			Donation: result.Donation,
			Pool:     result.Pool,
		})
	}
}

func SadaqahPool(svc sadaqah.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("sadaqah"))
			return
		}
		pool, err := svc.Pool(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pool)
	}
}

// SadaqahDonations lists the caller's own donations.
func SadaqahDonations(svc sadaqah.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("sadaqah"))
			return
		}
		donorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.Donations(r.Context(), donorID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// InternalSadaqahAllocate funds a recipient's lessons from the pool. Staff only.
func InternalSadaqahAllocate(svc sadaqah.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("sadaqah"))
			return
		}
		staffID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload allocationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Allocate(r.Context(), sadaqah.AllocateInput{
			RecipientID: uuid.MustParse(payload.RecipientID),
			Amount:      payload.Amount,
			Lessons:     payload.Lessons,
			AllocatedBy: staffID,
			Notes:       validators.SanitizeString(payload.Notes, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
