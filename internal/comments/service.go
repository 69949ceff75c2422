package comments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bootboard/bootboard/internal/auth"
	"github.com/bootboard/bootboard/internal/shared"
)

// Service implements comment use-cases.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Create posts content under boardID as actor.
func (s *Service) Create(ctx context.Context, actor auth.Identity, boardID int64, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, shared.NewValidationError(map[string]string{"content": "must not be blank"})
	}
	exists, err := s.repo.BoardExists(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("comments: check board %d: %w", boardID, err)
	}
	if !exists {
		return nil, fmt.Errorf("board %d: %w", boardID, shared.ErrNotFound)
	}
	comment, err := s.repo.Insert(ctx, boardID, actor.ID, content)
	if err != nil {
		return nil, fmt.Errorf("comments: insert: %w", err)
	}
	return comment, nil
}

// ListByBoard returns the comments of boardID, newest first.
func (s *Service) ListByBoard(ctx context.Context, boardID int64) ([]Comment, error) {
	out, err := s.repo.ListByBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("comments: list board %d: %w", boardID, err)
	}
	return out, nil
}

// Delete removes comment id. Only its author may delete it.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id int64) error {
	comment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("comment %d: %w", id, err)
	}
	if comment.Username != actor.Subject {
		return fmt.Errorf("comment %d: %w", id, shared.ErrForbidden)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("comment %d: %w", id, err)
	}
	s.logger.Info("comment deleted", slog.Int64("comment_id", id), slog.String("username", actor.Subject))
	return nil
}
