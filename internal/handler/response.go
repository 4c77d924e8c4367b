// internal/handler/response.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/loxys/loxys-backend/internal/errors"
)

type contextKey string

const accountIDKey contextKey = "account_id"

// RequireAccount reads the X-Account-ID header and stashes it in the
// request context. Tenant-scoped routes refuse requests without it.
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := r.Header.Get("X-Account-ID")
		if accountID == "" {
			http.Error(w, "missing X-Account-ID header", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), accountIDKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accountID(r *http.Request) string {
	id, _ := r.Context().Value(accountIDKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps domain errors onto HTTP statuses. Anything
// unrecognized is a 500 with the detail kept out of the response body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case apperrors.IsConflict(err), apperrors.IsStateError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case apperrors.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case apperrors.IsInactiveToken(err):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("internal error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
