package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootboard/bootboard/internal/auth"
	"github.com/bootboard/bootboard/internal/shared"
)

func seedIdentity(t *testing.T, repo *memoryRepo, subject string, role auth.Role) auth.Identity {
	t.Helper()
	saved, err := repo.Save(context.Background(), auth.Identity{Subject: subject, DisplayName: subject, PasswordHash: "hash", Role: role})
	require.NoError(t, err)
	return *saved
}

func TestResolveReturnsIdentityWithoutHash(t *testing.T) {
	repo := newMemoryRepo()
	seedIdentity(t, repo, "alice", auth.RoleUser)
	resolver := auth.NewIdentityResolver(repo, nil)

	identity, err := resolver.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Subject)
	assert.Equal(t, auth.RoleUser, identity.Role)
	assert.Empty(t, identity.PasswordHash)
}

func TestResolveMissingSubjectIsUnauthenticated(t *testing.T) {
	resolver := auth.NewIdentityResolver(newMemoryRepo(), nil)

	_, err := resolver.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestResolveStoreFailureIsNotAuthFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.failure = errors.New("connection reset")
	resolver := auth.NewIdentityResolver(repo, nil)

	_, err := resolver.Resolve(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestResolveCachesUntilInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	alice := seedIdentity(t, repo, "alice", auth.RoleAdmin)
	resolver := auth.NewIdentityResolver(repo, nil, auth.WithCache(client, time.Minute))
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, first.Role)
	assert.True(t, mr.Exists("bootboard:identity:alice"))

	_, err = repo.UpdateRole(ctx, alice.ID, auth.RoleUser)
	require.NoError(t, err)

	cached, err := resolver.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, cached.Role)
	assert.Equal(t, 1, repo.lookups)

	require.NoError(t, resolver.Invalidate(ctx, "alice"))
	fresh, err := resolver.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleUser, fresh.Role)
	assert.Equal(t, 2, repo.lookups)
}

func TestResolveFallsBackWhenCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	repo := newMemoryRepo()
	seedIdentity(t, repo, "alice", auth.RoleUser)
	resolver := auth.NewIdentityResolver(repo, nil, auth.WithCache(client, time.Minute))

	identity, err := resolver.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Subject)
}
