package auth

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RequireStorage lets through only authenticated callers that are verified
// for storage, and stores their identity in the request context.
func (v *Verifier) RequireStorage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := v.VerifyRequest(r)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("unauthenticated request")
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !id.VerifiedForStorage {
			writeError(w, http.StatusForbidden, "storage_not_verified", "account is not verified for storage")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
