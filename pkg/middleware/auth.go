package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/lectern/pkg/handlers"
)

// ErrUnauthenticated indicates the request carried no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

type userKey struct{}

// WithUser returns a context carrying the authenticated user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the authenticated user id stored in ctx.
func UserFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}

// IdentityFunc resolves the user id for a request.
type IdentityFunc func(r *http.Request) (string, error)

// NewIdentity builds the identity resolver described by cfg. OIDC discovery
// runs against the issuer here, so ctx bounds the provider lookup.
func NewIdentity(ctx context.Context, cfg *AuthConfig) (IdentityFunc, error) {
	if !cfg.OIDC() {
		return HeaderIdentity(cfg.UserHeader), nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	return TokenIdentity(provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})), nil
}

// HeaderIdentity trusts the user id carried in header.
func HeaderIdentity(header string) IdentityFunc {
	return func(r *http.Request) (string, error) {
		id := strings.TrimSpace(r.Header.Get(header))
		if id == "" {
			return "", ErrUnauthenticated
		}
		return id, nil
	}
}

// TokenIdentity verifies the bearer ID token and returns its subject.
func TokenIdentity(verifier *oidc.IDTokenVerifier) IdentityFunc {
	return func(r *http.Request) (string, error) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			return "", ErrUnauthenticated
		}

		token, err := verifier.Verify(r.Context(), raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		if token.Subject == "" {
			return "", ErrUnauthenticated
		}
		return token.Subject, nil
	}
}

// Auth returns middleware that rejects requests without a resolvable identity
// and stores the user id in the request context.
func Auth(identify IdentityFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("middleware", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identify(r)
			if err != nil {
				handlers.RespondError(w, logger, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), id)))
		})
	}
}
