package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noor-academy/lessonledger/api/responses"
	"github.com/noor-academy/lessonledger/api/validators"
	"github.com/noor-academy/lessonledger/internal/earnings"
	"github.com/noor-academy/lessonledger/internal/teachertiers"
	"github.com/noor-academy/lessonledger/pkg/enums"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
	"github.com/noor-academy/lessonledger/pkg/logger"
)

type tierApplicationRequest struct {
	RequestedLevel int    `json:"requested_level" validate:"required,min=1"`
	Notes          string `json:"notes" validate:"max=2000"`
}

type tierDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Notes    string `json:"notes" validate:"max=2000"`
}

type payoutCompleteRequest struct {
	ExternalReference string `json:"external_reference" validate:"required,max=255"`
}

type lessonRefundRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// TeacherTierStats returns the caller's tier, progress toward the next
// automatic tier, and any manual-tier applications.
func TeacherTierStats(svc teachertiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("teacher tiers"))
			return
		}
		teacherID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stats, err := svc.Stats(r.Context(), teacherID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func TeacherTierApply(svc teachertiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("teacher tiers"))
			return
		}
		teacherID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload tierApplicationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		application, err := svc.SubmitApplication(r.Context(), teachertiers.SubmitApplicationInput{
			TeacherID:      teacherID,
			RequestedLevel: payload.RequestedLevel,
			Notes:          validators.SanitizeString(payload.Notes, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, application)
	}
}

// InternalTierDecision approves or rejects a pending manual-tier application.
func InternalTierDecision(svc teachertiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("teacher tiers"))
			return
		}
		reviewerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		applicationID, err := validators.ParseURLUUID(r, "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload tierDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := teachertiers.DecisionInput{
			ApplicationID: applicationID,
			ReviewerID:    reviewerID,
			Notes:         validators.SanitizeString(payload.Notes, 2000),
		}
		decision, err := enums.ParseTierDecision(payload.Decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision"))
			return
		}
		decide := svc.ApproveApplication
		if decision == enums.TierDecisionReject {
			decide = svc.RejectApplication
		}
		application, err := decide(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, application)
	}
}

func TeacherEarnings(svc earnings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("earnings"))
			return
		}
		teacherID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), teacherID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// TeacherRequestPayout sweeps every cleared earning into one payout.
func TeacherRequestPayout(svc earnings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("earnings"))
			return
		}
		teacherID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payout, err := svc.RequestPayout(r.Context(), teacherID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payout)
	}
}

func InternalCompletePayout(svc earnings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("earnings"))
			return
		}
		payoutID, err := validators.ParseURLUUID(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload payoutCompleteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.CompletePayout(r.Context(), earnings.CompletePayoutInput{
			PayoutID:          payoutID,
			ExternalReference: validators.SanitizeString(payload.ExternalReference, 255),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

func InternalRefundLesson(svc earnings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("earnings"))
			return
		}
		lessonID := validators.SanitizeString(chi.URLParam(r, "lessonId"), 128)
		if lessonID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "lesson id is required"))
			return
		}
		var payload lessonRefundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		earning, err := svc.Refund(r.Context(), earnings.RefundInput{
			LessonID: lessonID,
			Reason:   validators.SanitizeString(payload.Reason, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, earning)
	}
}
