package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/bootboard/bootboard/internal/platform/cache"
	"github.com/bootboard/bootboard/internal/shared"
)

const identityCachePrefix = "bootboard:identity:"

// ErrIdentityNotFound is returned when a verified subject has no account.
// It matches shared.ErrUnauthenticated.
var ErrIdentityNotFound = fmt.Errorf("%w: identity not found", shared.ErrUnauthenticated)

// SubjectFinder looks identities up by username.
type SubjectFinder interface {
	FindBySubject(ctx context.Context, subject string) (*Identity, error)
}

// IdentityResolver maps a verified subject to its current identity and role.
// With a cache configured, lookups are cached per subject until Invalidate
// or the ttl.
type IdentityResolver struct {
	finder SubjectFinder
	cache  redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// ResolverOption customises an IdentityResolver.
type ResolverOption func(*IdentityResolver)

// WithCache enables Redis cache-aside lookups.
func WithCache(client redis.Cmdable, ttl time.Duration) ResolverOption {
	return func(r *IdentityResolver) {
		if client == nil || ttl <= 0 {
			return
		}
		r.cache = client
		r.ttl = ttl
	}
}

// NewIdentityResolver builds a resolver backed by finder.
func NewIdentityResolver(finder SubjectFinder, logger *slog.Logger, opts ...ResolverOption) *IdentityResolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &IdentityResolver{finder: finder, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the identity for subject. A missing account yields
// ErrIdentityNotFound; store failures are returned as-is.
func (r *IdentityResolver) Resolve(ctx context.Context, subject string) (Identity, error) {
	if subject == "" {
		return Identity{}, ErrIdentityNotFound
	}
	if cached, ok := r.fromCache(ctx, subject); ok {
		return cached, nil
	}
	v, err, _ := r.group.Do(subject, func() (any, error) {
		found, err := r.finder.FindBySubject(ctx, subject)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Identity{}, ErrIdentityNotFound
			}
			return Identity{}, fmt.Errorf("auth: resolve %q: %w", subject, err)
		}
		identity := *found
		identity.PasswordHash = ""
		r.toCache(ctx, identity)
		return identity, nil
	})
	if err != nil {
		return Identity{}, err
	}
	return v.(Identity), nil
}

// Invalidate drops any cached identity for subject.
func (r *IdentityResolver) Invalidate(ctx context.Context, subject string) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.Del(ctx, identityCachePrefix+subject).Err(); err != nil {
		return fmt.Errorf("auth: invalidate %q: %w", subject, err)
	}
	return nil
}

func (r *IdentityResolver) fromCache(ctx context.Context, subject string) (Identity, bool) {
	if r.cache == nil {
		return Identity{}, false
	}
	var identity Identity
	found, err := cache.GetJSON(ctx, r.cache, identityCachePrefix+subject, &identity)
	if err != nil {
		r.logger.Warn("identity cache read", slog.String("subject", subject), slog.Any("error", err))
		return Identity{}, false
	}
	if !found || !identity.Role.Valid() {
		return Identity{}, false
	}
	return identity, true
}

func (r *IdentityResolver) toCache(ctx context.Context, identity Identity) {
	if r.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, r.cache, identityCachePrefix+identity.Subject, identity, r.ttl); err != nil {
		r.logger.Warn("identity cache write", slog.String("subject", identity.Subject), slog.Any("error", err))
	}
}
