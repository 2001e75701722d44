package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/noor-academy/lessonledger/api/responses"
	"github.com/noor-academy/lessonledger/api/validators"
	"github.com/noor-academy/lessonledger/internal/referrals"
	"github.com/noor-academy/lessonledger/pkg/logger"
)

type registerReferralRequest struct {
	ReferrerID     string `json:"referrer_id" validate:"required,uuid"`
	ReferredUserID string `json:"referred_user_id" validate:"required,uuid"`
}

func ReferralStats(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("referrals"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stats, err := svc.Stats(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// InternalRegisterReferral records the referral captured at signup.
func InternalRegisterReferral(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("referrals"))
			return
		}
		var payload registerReferralRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		referral, err := svc.RegisterReferral(r.Context(), uuid.MustParse(payload.ReferrerID), uuid.MustParse(payload.ReferredUserID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, referral)
	}
}
