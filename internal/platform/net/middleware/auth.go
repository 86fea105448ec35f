package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	perr "vocabot/internal/platform/errors"
	pnet "vocabot/internal/platform/net"
	phttp "vocabot/internal/platform/net/http"
)

// AdminToken guards a route group with a static bearer token.
// An empty token disables the group entirely (every request is 403).
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				phttp.RespondError(w, r, perr.Forbiddenf("admin api disabled"))
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				phttp.RespondError(w, r, perr.Unauthorizedf("invalid admin token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithAdmin(r.Context())))
		})
	}
}

// SecretHeader rejects requests whose header does not carry secret.
// Telegram sends the webhook secret in X-Telegram-Bot-Api-Secret-Token.
func SecretHeader(header, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(header)), []byte(secret)) != 1 {
				phttp.RespondError(w, r, perr.Unauthorizedf("bad webhook secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
