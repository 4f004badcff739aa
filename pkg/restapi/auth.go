package restapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"aoai-simulated-api/internal/sim"

	zlog "github.com/rs/zerolog/log"
)

// Header names clients authenticate with: api-key for OpenAI clients,
// ocp-apim-subscription-key for Document Intelligence clients.
const (
	headerAPIKey          = "api-key"
	headerSubscriptionKey = "ocp-apim-subscription-key"
)

// requireAPIKey guards the simulated surface. A bearer Authorization
// header passes through untouched so the simulator can stand in behind
// gateways that do their own token validation.
func requireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			if keyMatches(r.Header.Get(headerAPIKey), apiKey) || keyMatches(r.Header.Get(headerSubscriptionKey), apiKey) {
				next.ServeHTTP(w, r)
				return
			}

			zlog.Warn().Str("path", r.URL.Path).Msg("missing or incorrect API key")

			sim.NewErrorResponse(http.StatusUnauthorized, "401", "Access denied due to invalid subscription key or wrong API endpoint.").Write(w)
		})
	}
}

func keyMatches(provided, expected string) bool {
	if provided == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
