package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bootboard/bootboard/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]Attachment
	insertErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]Attachment)}
}

func (m *memoryRepo) Insert(ctx context.Context, a Attachment) (*Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now()
	m.rows[a.ID] = a
	return &a, nil
}

func (m *memoryRepo) FindByID(ctx context.Context, id int64) (*Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (m *memoryRepo) ListByBoard(ctx context.Context, boardID int64) ([]Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attachment
	for _, a := range m.rows {
		if a.BoardID == boardID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryRepo) DeleteByBoard(ctx context.Context, boardID int64) ([]Attachment, error) {
	out, _ := m.ListByBoard(ctx, boardID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range out {
		delete(m.rows, a.ID)
	}
	return out, nil
}

func (m *memoryRepo) count(boardID int64) int {
	out, _ := m.ListByBoard(context.Background(), boardID)
	return len(out)
}

type ownerMap map[int64]string

func (o ownerMap) AuthorSubject(ctx context.Context, boardID int64) (string, error) {
	author, ok := o[boardID]
	if !ok {
		return "", fmt.Errorf("board %d: %w", boardID, shared.ErrNotFound)
	}
	return author, nil
}

// flakyStorage wraps a Storage, counting calls and failing removals of
// selected paths.
type flakyStorage struct {
	Storage
	mu         sync.Mutex
	saves      int
	removes    []string
	failRemove map[string]bool
	failSave   error
}

func (f *flakyStorage) Save(ctx context.Context, relPath string, r io.Reader) (int64, error) {
	f.mu.Lock()
	f.saves++
	failSave := f.failSave
	f.mu.Unlock()
	if failSave != nil {
		return 0, failSave
	}
	return f.Storage.Save(ctx, relPath, r)
}

func (f *flakyStorage) Remove(ctx context.Context, relPath string) (bool, error) {
	f.mu.Lock()
	f.removes = append(f.removes, relPath)
	fail := f.failRemove[relPath]
	f.mu.Unlock()
	if fail {
		return false, errors.New("device busy")
	}
	return f.Storage.Remove(ctx, relPath)
}

type removalCounts struct {
	mu     sync.Mutex
	stored map[string]int
	result map[string]int
}

func newRemovalCounts() *removalCounts {
	return &removalCounts{stored: map[string]int{}, result: map[string]int{}}
}

func (c *removalCounts) FileStored(kind string, bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored[kind]++
}

func (c *removalCounts) FileRemoval(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result[result]++
}

type recordingRemover struct {
	requested []string
	fail      map[string]bool
}

func (r *recordingRemover) RemoveFile(ctx context.Context, relPath string) error {
	r.requested = append(r.requested, relPath)
	if r.fail[relPath] {
		return errors.New("permission denied")
	}
	return nil
}
