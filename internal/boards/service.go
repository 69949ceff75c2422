package boards

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bootboard/bootboard/internal/attachments"
	"github.com/bootboard/bootboard/internal/auth"
	"github.com/bootboard/bootboard/internal/comments"
	"github.com/bootboard/bootboard/internal/shared"
)

// AttachmentPort is the part of the attachment store boards rely on.
type AttachmentPort interface {
	AttachAll(ctx context.Context, boardID int64, uploads []attachments.Upload) ([]attachments.Attachment, error)
	List(ctx context.Context, boardID int64) ([]attachments.Attachment, error)
	Detach(ctx context.Context, id int64, requester string) error
	CascadeDeleteForOwner(ctx context.Context, boardID int64) (attachments.CascadeResult, error)
}

// ContentReconciler removes editor images dropped by an edit.
type ContentReconciler interface {
	Reconcile(ctx context.Context, oldContent, newContent string) []string
}

// CommentLister lists the comments of a board.
type CommentLister interface {
	ListByBoard(ctx context.Context, boardID int64) ([]comments.Comment, error)
}

// Service implements board use-cases.
type Service struct {
	repo        Repository
	files       AttachmentPort
	reconciler  ContentReconciler
	commentList CommentLister
	logger      *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, files AttachmentPort, reconciler ContentReconciler, commentList CommentLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		files:       files,
		reconciler:  reconciler,
		commentList: commentList,
		logger:      logger,
	}
}

// List returns one page of boards.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	page, size := shared.NormalizePage(q.Page, q.Size)
	offset := (page - 1) * size
	items, total, err := s.repo.List(ctx, q.Keyword, size, offset)
	if err != nil {
		return Page{}, fmt.Errorf("boards: list: %w", err)
	}
	return newPage(items, shared.NewPagination(page, size, total)), nil
}

// Get returns the detail view of board id.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	board, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("board %d: %w", id, err)
	}
	files, err := s.files.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("board %d files: %w", id, err)
	}
	commentList, err := s.commentList.ListByBoard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("board %d comments: %w", id, err)
	}
	if commentList == nil {
		commentList = []comments.Comment{}
	}
	return &Detail{
		ID:         board.ID,
		Title:      board.Title,
		Content:    board.Content,
		Nickname:   board.AuthorNickname,
		Username:   board.AuthorSubject,
		CreatedAt:  board.CreatedAt,
		ModifiedAt: board.UpdatedAt,
		Files:      fileViews(files),
		Comments:   commentList,
	}, nil
}

// Create stores a new board by actor with its uploads. If an upload cannot
// be stored the board is rolled back.
func (s *Service) Create(ctx context.Context, actor auth.Identity, in Input, uploads []attachments.Upload) (int64, error) {
	id, err := s.repo.Create(ctx, actor.ID, in)
	if err != nil {
		return 0, fmt.Errorf("boards: create: %w", err)
	}
	if _, err := s.files.AttachAll(ctx, id, uploads); err != nil {
		s.rollbackCreate(ctx, id)
		return 0, err
	}
	s.logger.Info("board created", slog.Int64("board_id", id), slog.String("username", actor.Subject))
	return id, nil
}

func (s *Service) rollbackCreate(ctx context.Context, id int64) {
	if _, err := s.files.CascadeDeleteForOwner(ctx, id); err != nil {
		s.logger.Warn("rollback board attachments", slog.Int64("board_id", id), slog.Any("error", err))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Warn("rollback board", slog.Int64("board_id", id), slog.Any("error", err))
	}
}

// Update replaces title and content of board id and appends uploads. Only
// the author may edit. Editor images dropped from the content are removed
// once the new content is stored.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id int64, in Input, uploads []attachments.Upload) error {
	board, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("board %d: %w", id, err)
	}
	if board.AuthorSubject != actor.Subject {
		return fmt.Errorf("board %d: %w", id, shared.ErrForbidden)
	}
	if err := s.repo.Update(ctx, id, in); err != nil {
		return fmt.Errorf("board %d: update: %w", id, err)
	}
	if removed := s.reconciler.Reconcile(ctx, board.Content, in.Content); len(removed) > 0 {
		s.logger.Info("stale editor images removed", slog.Int64("board_id", id), slog.Int("count", len(removed)))
	}
	if _, err := s.files.AttachAll(ctx, id, uploads); err != nil {
		return err
	}
	return nil
}

// Delete removes board id with its attachments, comments and the editor
// images its content embedded. The author or an administrator may delete.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id int64) error {
	board, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("board %d: %w", id, err)
	}
	if board.AuthorSubject != actor.Subject && !actor.IsAdmin() {
		return fmt.Errorf("board %d: %w", id, shared.ErrForbidden)
	}
	result, err := s.files.CascadeDeleteForOwner(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("board %d: delete: %w", id, err)
	}
	s.reconciler.Reconcile(ctx, board.Content, "")
	s.logger.Info("board deleted",
		slog.Int64("board_id", id),
		slog.String("username", actor.Subject),
		slog.Int("files", result.Records),
		slog.Int("files_failed", result.Failed))
	return nil
}

// DeleteAttachment detaches one file. Only the board's author may do so.
func (s *Service) DeleteAttachment(ctx context.Context, actor auth.Identity, fileID int64) error {
	return s.files.Detach(ctx, fileID, actor.Subject)
}
