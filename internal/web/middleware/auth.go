package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/adboard/marketplace/internal/core"
)

// ActorAuth returns middleware that resolves the X-API-Key header to an actor
// name and stores it on the request context. Every mutation is attributed to
// this actor in the audit log, so requests without a recognized key are
// rejected outright.
//
// keys maps API key to actor name.
func ActorAuth(keys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"error":"missing API key","code":"AUTH_MISSING_KEY"}`, http.StatusUnauthorized)
				return
			}

			actor, ok := resolveActor(apiKey, keys)
			if !ok {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"error":"invalid API key","code":"AUTH_INVALID_KEY"}`, http.StatusForbidden)
				return
			}

			ctx := core.WithActor(r.Context(), actor)
			ctx = core.WithRequestMeta(ctx, r.RemoteAddr, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveActor matches the provided key against every configured key using
// constant-time comparison. All keys are checked regardless of match, so the
// comparison time does not reveal which key (if any) matched.
func resolveActor(key string, keys map[string]string) (string, bool) {
	matched := ""
	valid := 0
	for candidate, actor := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(candidate)) == 1 {
			matched = actor
			valid = 1
		}
	}
	return matched, valid == 1
}
