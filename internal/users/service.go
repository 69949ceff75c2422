package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bootboard/bootboard/internal/auth"
)

// RepositoryPort defines data access methods for members.
type RepositoryPort interface {
	List(ctx context.Context) ([]auth.Identity, error)
	UpdateRole(ctx context.Context, id int64, role auth.Role) (*auth.Identity, error)
}

// CacheInvalidator drops cached identities after a role change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, subject string) error
}

// Service handles member administration.
type Service struct {
	repo   RepositoryPort
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListMembers returns all members.
func (s *Service) ListMembers(ctx context.Context) ([]Member, error) {
	identities, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	members := make([]Member, len(identities))
	for i, identity := range identities {
		members[i] = memberFrom(identity)
	}
	return members, nil
}

// ChangeRole sets the role of member id and evicts the cached identity so
// the new role applies on the next request.
func (s *Service) ChangeRole(ctx context.Context, actor auth.Identity, id int64, role auth.Role) (Member, error) {
	updated, err := s.repo.UpdateRole(ctx, id, role)
	if err != nil {
		return Member{}, fmt.Errorf("users: change role of %d: %w", id, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, updated.Subject); err != nil {
			s.logger.Warn("invalidate identity cache", slog.String("username", updated.Subject), slog.Any("error", err))
		}
	}
	s.logger.Info("member role changed",
		slog.String("actor", actor.Subject),
		slog.String("username", updated.Subject),
		slog.String("role", string(role)))
	return memberFrom(*updated), nil
}
