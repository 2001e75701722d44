package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noor-academy/lessonledger/api/controllers"
	"github.com/noor-academy/lessonledger/api/middleware"
	"github.com/noor-academy/lessonledger/internal/earnings"
	"github.com/noor-academy/lessonledger/internal/ledger"
	"github.com/noor-academy/lessonledger/internal/lessons"
	"github.com/noor-academy/lessonledger/internal/referrals"
	"github.com/noor-academy/lessonledger/internal/sadaqah"
	"github.com/noor-academy/lessonledger/internal/teachertiers"
	"github.com/noor-academy/lessonledger/internal/transfers"
	"github.com/noor-academy/lessonledger/internal/users"
	"github.com/noor-academy/lessonledger/pkg/config"
	"github.com/noor-academy/lessonledger/pkg/logger"
	pkgredis "github.com/noor-academy/lessonledger/pkg/redis"
)

// Services is everything the HTTP surface dispatches to.
type Services struct {
	Ledger       ledger.Service
	Transfers    transfers.Service
	Sadaqah      sadaqah.Service
	Referrals    referrals.Service
	TeacherTiers teachertiers.Service
	Earnings     earnings.Service
	Lessons      lessons.Service
	Users        users.Service
}

// Dependencies are the shared clients middleware and health checks need.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	RateLimiter pkgredis.RateLimiter
	Gatherer    prometheus.Gatherer
	HTTPMetrics middleware.RequestObserver
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies, svcs Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	moneyPolicy := middleware.RateLimitPolicy{
		Name:   "money",
		Limit:  cfg.RateLimit.MoneyLimit,
		Window: cfg.RateLimit.MoneyWindow,
	}
	// Idempotency runs inline so chi has resolved the full route pattern.
	money := chi.Chain(
		middleware.RateLimit(moneyPolicy, deps.RateLimiter, logg),
		middleware.Idempotency(deps.Idempotency, logg),
	)
	replayable := chi.Chain(middleware.Idempotency(deps.Idempotency, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", controllers.CreditsBalance(svcs.Ledger, logg))
			r.Get("/transferable", controllers.CreditsTransferable(svcs.Ledger, logg))
			r.Get("/entries", controllers.CreditsEntries(svcs.Ledger, logg))
			r.Get("/transfers", controllers.CreditsTransferHistory(svcs.Transfers, logg))
			r.With(money...).Post("/transfers", controllers.CreditsTransfer(svcs.Transfers, logg))
		})

		r.Route("/sadaqah", func(r chi.Router) {
			r.Get("/pool", controllers.SadaqahPool(svcs.Sadaqah, logg))
			r.Get("/donations", controllers.SadaqahDonations(svcs.Sadaqah, logg))
			r.With(money...).Post("/donations", controllers.SadaqahDonate(svcs.Sadaqah, logg))
		})

		r.Get("/referrals/stats", controllers.ReferralStats(svcs.Referrals, logg))

		r.Route("/teachers", func(r chi.Router) {
			r.Get("/tier", controllers.TeacherTierStats(svcs.TeacherTiers, logg))
			r.With(replayable...).Post("/tier/applications", controllers.TeacherTierApply(svcs.TeacherTiers, logg))
			r.Get("/earnings", controllers.TeacherEarnings(svcs.Earnings, logg))
			r.With(money...).Post("/payouts", controllers.TeacherRequestPayout(svcs.Earnings, logg))
		})

		r.Route("/internal", func(r chi.Router) {
			r.Use(middleware.RequirePrivileged(logg))

			r.Post("/users", controllers.InternalCreateUser(svcs.Users, logg))
			r.Post("/purchases", controllers.InternalPurchase(svcs.Ledger, logg))
			r.With(replayable...).Post("/spends", controllers.InternalSpend(svcs.Ledger, logg))
			r.With(replayable...).Post("/bonuses", controllers.InternalBonus(svcs.Ledger, logg))
			r.With(replayable...).Post("/refunds", controllers.InternalCreditRefund(svcs.Ledger, logg))
			r.Post("/referrals", controllers.InternalRegisterReferral(svcs.Referrals, logg))

			r.Post("/lessons/booked", controllers.InternalLessonBooked(svcs.Lessons, logg))
			r.Post("/lessons/completed", controllers.InternalLessonCompleted(svcs.Lessons, logg))
			r.With(replayable...).Post("/lessons/{lessonId}/refund", controllers.InternalRefundLesson(svcs.Earnings, logg))

			r.With(replayable...).Post("/sadaqah/allocations", controllers.InternalSadaqahAllocate(svcs.Sadaqah, logg))
			r.With(replayable...).Post("/tier-applications/{applicationId}/decision", controllers.InternalTierDecision(svcs.TeacherTiers, logg))
			r.With(replayable...).Post("/payouts/{payoutId}/complete", controllers.InternalCompletePayout(svcs.Earnings, logg))
		})
	})

	return r
}
