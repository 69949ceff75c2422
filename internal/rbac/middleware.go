package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bootboard/bootboard/internal/auth"
	"github.com/bootboard/bootboard/internal/platform/httpx"
	"github.com/bootboard/bootboard/internal/shared"
)

// TokenVerifier checks bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (auth.TokenClaims, error)
}

// IdentitySource resolves verified subjects to identities.
type IdentitySource interface {
	Resolve(ctx context.Context, subject string) (auth.Identity, error)
}

// FailureRecorder counts rejected requests by reason.
type FailureRecorder interface {
	AuthFailure(reason string)
}

// Gate decides per request whether the caller may proceed.
type Gate struct {
	rules    []Rule
	tokens   TokenVerifier
	identity IdentitySource
	logger   *slog.Logger
	recorder FailureRecorder
}

// GateConfig collects Gate dependencies. Rules defaults to DefaultRules.
type GateConfig struct {
	Rules    []Rule
	Tokens   TokenVerifier
	Identity IdentitySource
	Logger   *slog.Logger
	Recorder FailureRecorder
}

// NewGate builds a Gate.
func NewGate(cfg GateConfig) *Gate {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		rules:    append([]Rule(nil), rules...),
		tokens:   cfg.Tokens,
		identity: cfg.Identity,
		logger:   logger,
		recorder: cfg.Recorder,
	}
}

// Decide returns the access requirement for r. Preflight requests are
// public before any rule is consulted; the first matching rule wins and
// unmatched routes require authentication.
func (g *Gate) Decide(r *http.Request) Access {
	if IsPreflight(r) {
		return Public
	}
	for _, rule := range g.rules {
		if rule.Matches(r.Method, r.URL.Path) {
			return rule.Access
		}
	}
	return Authenticated
}

// Authorize resolves the caller of r against its route requirement. It
// returns a nil identity for anonymous callers of public routes, an error
// matching shared.ErrUnauthenticated or shared.ErrForbidden on rejection,
// and any other error for infrastructure failures.
func (g *Gate) Authorize(r *http.Request) (*auth.Identity, error) {
	access := g.Decide(r)
	raw, hasToken := BearerToken(r)

	if access.IsPublic() {
		if !hasToken || IsPreflight(r) {
			return nil, nil
		}
		identity, err := g.identify(r.Context(), raw)
		if err != nil {
			// A bad token on a public route is ignored, not rejected.
			return nil, nil
		}
		return identity, nil
	}

	if !hasToken {
		return nil, fmt.Errorf("%w: missing bearer token", shared.ErrUnauthenticated)
	}
	identity, err := g.identify(r.Context(), raw)
	if err != nil {
		return nil, err
	}
	if role, ok := access.Role(); ok && identity.Role != role {
		return nil, fmt.Errorf("%w: %s requires %s", shared.ErrForbidden, identity.Subject, role.Authority())
	}
	return identity, nil
}

func (g *Gate) identify(ctx context.Context, raw string) (*auth.Identity, error) {
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrUnauthenticated, err)
	}
	identity, err := g.identity.Resolve(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Middleware runs Authorize before next. On success the identity, if any,
// is attached to the request context; on failure the request halts with
// 401, 403 or 500.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.Authorize(r)
		if err != nil {
			g.reject(w, r, err)
			return
		}
		if identity != nil {
			r = r.WithContext(auth.ContextWithIdentity(r.Context(), *identity))
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		g.record(failureReason(err))
		w.Header().Set("WWW-Authenticate", `Bearer realm="bootboard"`)
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, shared.ErrForbidden):
		g.record("forbidden")
		g.logger.Info("access denied", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
	default:
		g.logger.Error("authorize request", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (g *Gate) record(reason string) {
	if g.recorder != nil {
		g.recorder.AuthFailure(reason)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "token_invalid"
	case errors.Is(err, auth.ErrIdentityNotFound):
		return "identity_missing"
	default:
		return "token_missing"
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole rejects requests whose context identity does not hold role.
// It is meant for routes already behind Gate.Middleware.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			if identity.Role != role {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentIdentity returns the identity attached by the gate, or
// shared.ErrUnauthenticated when there is none.
func CurrentIdentity(r *http.Request) (auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, shared.ErrUnauthenticated
	}
	return identity, nil
}
