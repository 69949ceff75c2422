package attachments

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bootboard/bootboard/internal/shared"
)

// Recorder receives attachment lifecycle counts.
type Recorder interface {
	FileStored(kind string, bytes int64)
	FileRemoval(result string)
}

type nopRecorder struct{}

func (nopRecorder) FileStored(string, int64) {}
func (nopRecorder) FileRemoval(string)       {}

// OwnerLookup returns the author subject of a board.
type OwnerLookup interface {
	AuthorSubject(ctx context.Context, boardID int64) (string, error)
}

// StoreConfig collects Store dependencies.
type StoreConfig struct {
	Storage    Storage
	Repository Repository
	Owners     OwnerLookup
	Logger     *slog.Logger
	Recorder   Recorder
	// BoardDir and EditorDir name the subdirectories for board files and
	// editor images. They default to "board" and "editor".
	BoardDir  string
	EditorDir string
	// CascadeConcurrency bounds parallel file removals. Defaults to 4.
	CascadeConcurrency int
}

// Store maps board posts to the physical files attached to them.
type Store struct {
	storage     Storage
	repo        Repository
	owners      OwnerLookup
	logger      *slog.Logger
	recorder    Recorder
	boardDir    string
	editorDir   string
	concurrency int
	newName     func(ext string) string
}

// NewStore builds a Store.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		storage:     cfg.Storage,
		repo:        cfg.Repository,
		owners:      cfg.Owners,
		logger:      cfg.Logger,
		recorder:    cfg.Recorder,
		boardDir:    strings.Trim(cfg.BoardDir, "/"),
		editorDir:   strings.Trim(cfg.EditorDir, "/"),
		concurrency: cfg.CascadeConcurrency,
		newName: func(ext string) string {
			return uuid.NewString() + "." + ext
		},
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.boardDir == "" {
		s.boardDir = "board"
	}
	if s.editorDir == "" {
		s.editorDir = "editor"
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	return s
}

// BoardDir returns the board attachment subdirectory.
func (s *Store) BoardDir() string { return s.boardDir }

// EditorDir returns the editor image subdirectory.
func (s *Store) EditorDir() string { return s.editorDir }

// EditorURLPrefix is the public URL prefix of editor images.
func (s *Store) EditorURLPrefix() string { return PublicPrefix + s.editorDir + "/" }

// Attach stores upload under the board directory and records it for
// boardID. Empty uploads are skipped and yield (nil, nil). The file is
// written before the metadata row; if recording fails the file is removed.
func (s *Store) Attach(ctx context.Context, boardID int64, upload Upload) (*Attachment, error) {
	if upload.Empty() {
		return nil, nil
	}
	original := CleanOriginalName(upload.Filename)
	relPath, written, err := s.write(ctx, s.boardDir, original, upload.Content)
	if err != nil {
		return nil, err
	}
	if written == 0 {
		s.removeQuietly(ctx, relPath)
		return nil, nil
	}

	record, err := s.repo.Insert(ctx, Attachment{
		BoardID:      boardID,
		OriginalName: original,
		StoredPath:   relPath,
		SizeBytes:    written,
		MimeType:     DetectMimeType(upload.ContentType, original),
	})
	if err != nil {
		s.removeQuietly(ctx, relPath)
		return nil, fmt.Errorf("attachments: record %s: %w", original, err)
	}
	s.recorder.FileStored("board", written)
	s.logger.Debug("attachment stored",
		slog.Int64("board_id", boardID),
		slog.Int64("attachment_id", record.ID),
		slog.Int64("size", written))
	return record, nil
}

// AttachAll attaches uploads in order, skipping empty ones. It stops at the
// first failure and returns what was attached so far.
func (s *Store) AttachAll(ctx context.Context, boardID int64, uploads []Upload) ([]Attachment, error) {
	out := make([]Attachment, 0, len(uploads))
	for _, upload := range uploads {
		record, err := s.Attach(ctx, boardID, upload)
		if err != nil {
			return out, err
		}
		if record != nil {
			out = append(out, *record)
		}
	}
	return out, nil
}

// List returns the attachments of a board.
func (s *Store) List(ctx context.Context, boardID int64) ([]Attachment, error) {
	return s.repo.ListByBoard(ctx, boardID)
}

// Detach removes attachment id on behalf of requester, who must be the
// author of the owning board. The metadata row is removed first; the file
// removal is then attempted and logged, and its failure does not fail the call.
func (s *Store) Detach(ctx context.Context, id int64, requester string) error {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("attachment %d: %w", id, err)
	}
	author, err := s.owners.AuthorSubject(ctx, record.BoardID)
	if err != nil {
		return fmt.Errorf("attachment %d owner: %w", id, err)
	}
	if requester == "" || author != requester {
		return fmt.Errorf("attachment %d: %w", id, shared.ErrForbidden)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("attachment %d: %w", id, err)
	}
	s.removeLogged(ctx, record.StoredPath, slog.Int64("attachment_id", id))
	return nil
}

// CascadeResult summarises a cascade deletion.
type CascadeResult struct {
	Records int
	Removed int
	Failed  int
}

// CascadeDeleteForOwner deletes every attachment row of boardID and then
// attempts removal of each file. A failed removal is logged and counted
// without stopping the others.
func (s *Store) CascadeDeleteForOwner(ctx context.Context, boardID int64) (CascadeResult, error) {
	records, err := s.repo.DeleteByBoard(ctx, boardID)
	if err != nil {
		return CascadeResult{}, fmt.Errorf("attachments: delete records of board %d: %w", boardID, err)
	}
	outcomes := make([]bool, len(records))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, record := range records {
		g.Go(func() error {
			outcomes[i] = s.removeLogged(ctx, record.StoredPath,
				slog.Int64("board_id", boardID),
				slog.Int64("attachment_id", record.ID))
			return nil
		})
	}
	_ = g.Wait()

	result := CascadeResult{Records: len(records)}
	for _, ok := range outcomes {
		if ok {
			result.Removed++
		} else {
			result.Failed++
		}
	}
	if result.Failed > 0 {
		s.logger.Warn("cascade left files behind",
			slog.Int64("board_id", boardID),
			slog.Int("failed", result.Failed))
	}
	return result, nil
}

// StoreEditorImage stores an image embedded by the rich-text editor and
// returns its public URL. Editor images are not recorded as attachments.
func (s *Store) StoreEditorImage(ctx context.Context, upload Upload) (string, error) {
	if upload.Empty() {
		return "", shared.NewValidationError(map[string]string{"image": "must not be empty"})
	}
	br := bufio.NewReaderSize(upload.Content, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("attachments: read image: %w", err)
	}
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", shared.NewValidationError(map[string]string{"image": "must be an image"})
	}
	relPath, written, err := s.write(ctx, s.editorDir, CleanOriginalName(upload.Filename), br)
	if err != nil {
		return "", err
	}
	s.recorder.FileStored("editor", written)
	return PublicURL(relPath), nil
}

// RemoveFile deletes a stored file if it exists. Missing files are not an error.
func (s *Store) RemoveFile(ctx context.Context, relPath string) error {
	cleaned, err := cleanRelative(relPath, s.boardDir, s.editorDir)
	if err != nil {
		return fmt.Errorf("attachments: remove %q: %w", relPath, err)
	}
	removed, err := s.storage.Remove(ctx, cleaned)
	if err != nil {
		s.recorder.FileRemoval("error")
		return fmt.Errorf("attachments: remove %q: %w", cleaned, err)
	}
	if removed {
		s.recorder.FileRemoval("removed")
	} else {
		s.recorder.FileRemoval("absent")
	}
	return nil
}

// Open returns a stored board file or editor image for reading.
func (s *Store) Open(ctx context.Context, relPath string) (io.ReadCloser, ObjectInfo, error) {
	cleaned, err := cleanRelative(relPath, s.boardDir, s.editorDir)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("file %q: %w", relPath, shared.ErrNotFound)
	}
	rc, info, err := s.storage.Open(ctx, cleaned)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, ObjectInfo{}, fmt.Errorf("file %q: %w", relPath, shared.ErrNotFound)
		}
		return nil, ObjectInfo{}, fmt.Errorf("attachments: open: %w", errors.Join(shared.ErrStorage, err))
	}
	return rc, info, nil
}

// BoardFilePath returns the relative path of a stored board file name.
func (s *Store) BoardFilePath(storedName string) string {
	return path.Join(s.boardDir, path.Base(storedName))
}

func (s *Store) write(ctx context.Context, dir, original string, content io.Reader) (string, int64, error) {
	relPath := path.Join(dir, s.newName(Extension(original)))
	n, err := s.storage.Save(ctx, relPath, content)
	if err != nil {
		s.logger.Error("attachment write failed", slog.String("dir", dir), slog.Any("error", err))
		return "", 0, fmt.Errorf("attachments: write: %w", errors.Join(shared.ErrStorage, err))
	}
	return relPath, n, nil
}

// removeLogged attempts a removal and logs the outcome. It reports whether
// the file is gone.
func (s *Store) removeLogged(ctx context.Context, relPath string, attrs ...any) bool {
	err := s.RemoveFile(ctx, relPath)
	if err != nil {
		s.logger.Warn("file removal failed",
			append(attrs, slog.String("path", relPath), slog.Any("error", err))...)
		return false
	}
	s.logger.Debug("file removed", append(attrs, slog.String("path", relPath))...)
	return true
}

func (s *Store) removeQuietly(ctx context.Context, relPath string) {
	if _, err := s.storage.Remove(ctx, relPath); err != nil {
		s.logger.Warn("orphan cleanup failed", slog.String("path", relPath), slog.Any("error", err))
	}
}
