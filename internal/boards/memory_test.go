package boards_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bootboard/bootboard/internal/attachments"
	"github.com/bootboard/bootboard/internal/auth"
	"github.com/bootboard/bootboard/internal/boards"
	"github.com/bootboard/bootboard/internal/comments"
	"github.com/bootboard/bootboard/internal/shared"
)

type memoryBoards struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]boards.Board
	members map[int64]auth.Identity
	deletes int
}

func newMemoryBoards(members ...auth.Identity) *memoryBoards {
	m := &memoryBoards{rows: map[int64]boards.Board{}, members: map[int64]auth.Identity{}}
	for _, identity := range members {
		m.members[identity.ID] = identity
	}
	return m
}

func (m *memoryBoards) List(ctx context.Context, keyword string, limit, offset int) ([]boards.Summary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	var matched []boards.Board
	for _, b := range m.rows {
		if keyword == "" ||
			strings.Contains(strings.ToLower(b.Title), keyword) ||
			strings.Contains(strings.ToLower(b.Content), keyword) ||
			strings.Contains(strings.ToLower(b.AuthorNickname), keyword) {
			matched = append(matched, b)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	out := []boards.Summary{}
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		b := matched[i]
		out = append(out, boards.Summary{ID: b.ID, Title: b.Title, Nickname: b.AuthorNickname, CreatedAt: b.CreatedAt})
	}
	return out, len(matched), nil
}

func (m *memoryBoards) Get(ctx context.Context, id int64) (*boards.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &b, nil
}

func (m *memoryBoards) AuthorSubject(ctx context.Context, boardID int64) (string, error) {
	b, err := m.Get(ctx, boardID)
	if err != nil {
		return "", err
	}
	return b.AuthorSubject, nil
}

func (m *memoryBoards) Create(ctx context.Context, authorID int64, in boards.Input) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	author := m.members[authorID]
	m.nextID++
	now := time.Now()
	m.rows[m.nextID] = boards.Board{
		ID:             m.nextID,
		Title:          in.Title,
		Content:        in.Content,
		AuthorID:       authorID,
		AuthorSubject:  author.Subject,
		AuthorNickname: author.DisplayName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return m.nextID, nil
}

func (m *memoryBoards) Update(ctx context.Context, id int64, in boards.Input) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	b.Title, b.Content, b.UpdatedAt = in.Title, in.Content, time.Now()
	m.rows[id] = b
	return nil
}

func (m *memoryBoards) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	m.deletes++
	return nil
}

type memoryFiles struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]attachments.Attachment
	insertErr error
}

func newMemoryFiles() *memoryFiles {
	return &memoryFiles{rows: map[int64]attachments.Attachment{}}
}

func (m *memoryFiles) Insert(ctx context.Context, a attachments.Attachment) (*attachments.Attachment, error) {
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

func (m *memoryFiles) FindByID(ctx context.Context, id int64) (*attachments.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (m *memoryFiles) ListByBoard(ctx context.Context, boardID int64) ([]attachments.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []attachments.Attachment{}
	for _, a := range m.rows {
		if a.BoardID == boardID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryFiles) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryFiles) DeleteByBoard(ctx context.Context, boardID int64) ([]attachments.Attachment, error) {
	out, _ := m.ListByBoard(ctx, boardID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range out {
		delete(m.rows, a.ID)
	}
	return out, nil
}

type noComments struct{}

func (noComments) ListByBoard(ctx context.Context, boardID int64) ([]comments.Comment, error) {
	return nil, nil
}
