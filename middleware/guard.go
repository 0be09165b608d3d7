package middleware

import (
	"context"
	"net/http"
	"strings"

	goMFA "github.com/MrEthical07/goMFA"
)

type claimsContextKey struct{}

// TokenValidator is the part of *goMFA.Engine that Guard needs.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*goMFA.TokenClaims, error)
}

func ClaimsFromContext(ctx context.Context) (*goMFA.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*goMFA.TokenClaims)
	return claims, ok
}

// Guard rejects requests without a valid "Authorization: Bearer" token.
// Every failure is a bare 401 so callers cannot tell expiry from forgery.
func Guard(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
