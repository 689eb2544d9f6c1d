package middleware

import (
	"context"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// SessionSource reports the session currently held by a manager.
type SessionSource interface {
	Current() *goSession.Session
}

type sessionContextKey struct{}

// SessionFromContext returns the session injected by [RequireSession].
func SessionFromContext(ctx context.Context) (*goSession.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*goSession.Session)
	return sess, ok && sess != nil
}

// RequireSession answers 401 while src holds no session and otherwise forwards the
// request with the session in its context.
func RequireSession(src SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			sess := src.Current()
			if sess == nil || sess.AccessToken == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
