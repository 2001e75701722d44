package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noor-academy/lessonledger/api/responses"
	"github.com/noor-academy/lessonledger/pkg/enums"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
	"github.com/noor-academy/lessonledger/pkg/logger"
)

const (
	UserIDHeader    = "X-User-Id"
	ActorRoleHeader = "X-Actor-Role"
)

// Identity trusts the caller headers set by the gateway. Requests without a
// valid user id never reach a handler; a missing role means a plain user.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			rawID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if rawID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
				return
			}
			userID, err := uuid.Parse(rawID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "caller identity invalid"))
				return
			}

			role := enums.ActorRoleUser
			if rawRole := r.Header.Get(ActorRoleHeader); strings.TrimSpace(rawRole) != "" {
				parsed, err := enums.ParseActorRole(rawRole)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "caller role invalid"))
					return
				}
				role = parsed
			}

			ctx = WithRole(WithUserID(ctx, userID.String()), role)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithUserID(ctx, userID.String()), string(role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrivileged guards the internal routes called by staff tools and
// other services.
func RequirePrivileged(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !RoleFromContext(r.Context()).IsPrivileged() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "staff or service role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
