package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/noor-academy/lessonledger/api/middleware"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
)

// callerID returns the authenticated user the gateway forwarded.
func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid caller identity")
	}
	return id, nil
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
