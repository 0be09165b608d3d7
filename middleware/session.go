package middleware

import (
	"context"
	"errors"
	"net/http"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/session"
)

type sessionContextKey struct{}

// SessionResolver is the part of *goMFA.Engine that RequireSession needs.
type SessionResolver interface {
	Session(ctx context.Context, sessionID string) (*session.Session, error)
	Authorize(ctx context.Context, sess *session.Session) error
}

func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok
}

// RequireSession loads the session named by cookieName. Missing or expired
// sessions get 401, a backend failure 500. With requireMFA, a session whose
// owner has MFA active but has not yet passed the TOTP step gets 403.
func RequireSession(resolver SessionResolver, cookieName string, requireMFA bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := resolver.Session(r.Context(), cookie.Value)
			if err != nil {
				writeSessionError(w, err)
				return
			}

			if requireMFA {
				if err := resolver.Authorize(r.Context(), sess); err != nil {
					writeSessionError(w, err)
					return
				}
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goMFA.ErrUnauthorizedMFAStep):
		http.Error(w, "mfa required", http.StatusForbidden)
	case errors.Is(err, goMFA.ErrUnauthenticated):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
