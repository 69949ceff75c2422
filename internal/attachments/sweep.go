package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"
)

// SweepResult counts what an orphan sweep did.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Sweeper removes stored files nothing refers to. Board files are orphaned
// when no metadata row points at them; editor images when no board content
// embeds their URL. Files younger than the grace period are left alone so
// in-flight writes are never swept.
type Sweeper struct {
	storage Storage
	refs    ReferenceChecker
	store   *Store
	grace   time.Duration
	logger  *slog.Logger
}

// NewSweeper builds a Sweeper over the store's directories.
func NewSweeper(store *Store, refs ReferenceChecker, grace time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	return &Sweeper{storage: store.storage, refs: refs, store: store, grace: grace, logger: logger}
}

// Sweep scans both directories relative to now.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	cutoff := now.Add(-s.grace)

	boardFiles, err := s.storage.List(ctx, s.store.BoardDir())
	if err != nil {
		return result, fmt.Errorf("attachments: sweep list board: %w", err)
	}
	for _, obj := range boardFiles {
		if !obj.ModTime.Before(cutoff) {
			continue
		}
		result.Scanned++
		used, err := s.refs.StoredPathExists(ctx, obj.Path)
		if err != nil {
			return result, fmt.Errorf("attachments: sweep check %s: %w", obj.Path, err)
		}
		if !used {
			s.remove(ctx, obj.Path, &result)
		}
	}

	editorFiles, err := s.storage.List(ctx, s.store.EditorDir())
	if err != nil {
		return result, fmt.Errorf("attachments: sweep list editor: %w", err)
	}
	for _, obj := range editorFiles {
		if !obj.ModTime.Before(cutoff) {
			continue
		}
		result.Scanned++
		used, err := s.refs.ContentReferences(ctx, path.Base(obj.Path))
		if err != nil {
			return result, fmt.Errorf("attachments: sweep check %s: %w", obj.Path, err)
		}
		if !used {
			s.remove(ctx, obj.Path, &result)
		}
	}
	return result, nil
}

func (s *Sweeper) remove(ctx context.Context, relPath string, result *SweepResult) {
	if err := s.store.RemoveFile(ctx, relPath); err != nil {
		result.Failed++
		s.logger.Warn("sweep orphan", slog.String("path", relPath), slog.Any("error", err))
		return
	}
	result.Removed++
	s.logger.Info("orphan removed", slog.String("path", relPath))
}
