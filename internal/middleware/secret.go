package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// RequireSecret rejects requests whose "secret" query parameter does not match.
// An empty configured secret rejects everything.
func RequireSecret(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid Token!"})
			return
		}
		next(w, r)
	}
}
