package api

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/go-chi/render"
)

// TokenVerifier checks a bearer token against the identity provider.
// The Firebase auth client satisfies it; tests use a stub.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// BearerAuth returns middleware that rejects requests lacking a valid
// bearer token. The daemon socket is already 0600, so this is only
// enabled when a deployment explicitly configures it.
func BearerAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				_ = render.Render(w, r, ErrUnauthorized("missing bearer token"))
				return
			}
			if _, err := verifier.VerifyIDToken(r.Context(), token); err != nil {
				_ = render.Render(w, r, ErrUnauthorized("invalid token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
