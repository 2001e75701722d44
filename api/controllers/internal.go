package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noor-academy/lessonledger/api/responses"
	"github.com/noor-academy/lessonledger/api/validators"
	"github.com/noor-academy/lessonledger/internal/ledger"
	"github.com/noor-academy/lessonledger/internal/lessons"
	"github.com/noor-academy/lessonledger/internal/users"
	"github.com/noor-academy/lessonledger/pkg/enums"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
	"github.com/noor-academy/lessonledger/pkg/logger"
)

// creditRequest is shared by the purchase, spend, bonus and refund intakes.
type creditRequest struct {
	UserID      string          `json:"user_id" validate:"required,uuid"`
	Currency    string          `json:"currency" validate:"omitempty,oneof=credits tokens"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference" validate:"max=255"`
	PurchasedAt *time.Time      `json:"purchased_at"`
}

func (c creditRequest) currency() enums.Currency {
	if c.Currency == "" {
		return enums.CurrencyCredits
	}
	return enums.Currency(c.Currency)
}

type lessonRequest struct {
	LessonID      string          `json:"lesson_id" validate:"required,max=128"`
	TeacherID     string          `json:"teacher_id" validate:"required,uuid"`
	StudentID     string          `json:"student_id" validate:"required,uuid"`
	DurationHours decimal.Decimal `json:"duration_hours" validate:"positive_decimal"`
	Cost          decimal.Decimal `json:"cost" validate:"nonnegative_decimal"`
	CompletedAt   *time.Time      `json:"completed_at"`
}

type createUserRequest struct {
	ID          string `json:"id" validate:"omitempty,uuid"`
	Email       string `json:"email" validate:"required,email,max=320"`
	DisplayName string `json:"display_name" validate:"max=120"`
	IsActive    *bool  `json:"is_active"`
}

func decodeCreditRequest(r *http.Request) (creditRequest, error) {
	var payload creditRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return payload, err
	}
	payload.Reference = validators.SanitizeString(payload.Reference, 255)
	return payload, nil
}

// InternalPurchase credits a completed purchase. Replays with the same
// reference return the original entry.
func InternalPurchase(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
			return
		}
		payload, err := decodeCreditRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference is required"))
			return
		}
		input := ledger.PurchaseInput{
			UserID:    uuid.MustParse(payload.UserID),
			Currency:  payload.currency(),
			Amount:    payload.Amount,
			Reference: payload.Reference,
		}
		if payload.PurchasedAt != nil {
			input.PurchasedAt = *payload.PurchasedAt
		}

		entry, err := svc.RecordPurchase(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

func InternalSpend(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
			return
		}
		payload, err := decodeCreditRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.RecordSpend(r.Context(), ledger.SpendInput{
			UserID:    uuid.MustParse(payload.UserID),
			Currency:  payload.currency(),
			Amount:    payload.Amount,
			Reference: payload.Reference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

func InternalBonus(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
			return
		}
		payload, err := decodeCreditRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.GrantBonus(r.Context(), ledger.BonusInput{
			UserID:    uuid.MustParse(payload.UserID),
			Currency:  payload.currency(),
			Amount:    payload.Amount,
			Reference: payload.Reference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// InternalCreditRefund restores (positive amount) or claws back (negative
// amount) credits after a payment refund.
func InternalCreditRefund(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
			return
		}
		payload, err := decodeCreditRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.RecordRefund(r.Context(), ledger.RefundInput{
			UserID:    uuid.MustParse(payload.UserID),
			Currency:  payload.currency(),
			Amount:    payload.Amount,
			Reference: payload.Reference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// InternalLessonCompleted feeds a finished lesson into earnings, teacher
// tiers and referral rewards.
func InternalLessonCompleted(svc lessons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("lessons"))
			return
		}
		var payload lessonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := lessons.CompletionInput{
			LessonID:      payload.LessonID,
			TeacherID:     uuid.MustParse(payload.TeacherID),
			StudentID:     uuid.MustParse(payload.StudentID),
			DurationHours: payload.DurationHours,
			Cost:          payload.Cost,
		}
		if payload.CompletedAt != nil {
			input.CompletedAt = *payload.CompletedAt
		}

		result, err := svc.RecordLessonCompletion(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func InternalLessonBooked(svc lessons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("lessons"))
			return
		}
		var payload lessonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		earning, err := svc.RecordLessonBooked(r.Context(), lessons.BookingInput{
			LessonID:      payload.LessonID,
			TeacherID:     uuid.MustParse(payload.TeacherID),
			StudentID:     uuid.MustParse(payload.StudentID),
			DurationHours: payload.DurationHours,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, earning)
	}
}

// InternalCreateUser mirrors a user from the identity provider so balances
// and transfer recipients can be resolved locally.
func InternalCreateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("users"))
			return
		}
		var payload createUserRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto := users.CreateUserDTO{
			Email:       payload.Email,
			DisplayName: validators.SanitizeString(payload.DisplayName, 120),
			IsActive:    payload.IsActive,
		}
		if payload.ID != "" {
			dto.ID = uuid.MustParse(payload.ID)
		}

		user, err := svc.Register(r.Context(), dto)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, users.FromModel(user))
	}
}
