package comments_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bootboard/bootboard/internal/auth"
	"github.com/bootboard/bootboard/internal/comments"
	"github.com/bootboard/bootboard/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	boards   map[int64]bool
	members  map[int64]auth.Identity
	comments map[int64]comments.Comment
	nextID   int64
}

func newMemoryRepo(boards ...int64) *memoryRepo {
	m := &memoryRepo{
		boards:   map[int64]bool{},
		members:  map[int64]auth.Identity{},
		comments: map[int64]comments.Comment{},
	}
	for _, id := range boards {
		m.boards[id] = true
	}
	return m
}

func (m *memoryRepo) addMember(identity auth.Identity) auth.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[identity.ID] = identity
	return identity
}

func (m *memoryRepo) BoardExists(ctx context.Context, boardID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boards[boardID], nil
}

func (m *memoryRepo) Insert(ctx context.Context, boardID, authorID int64, content string) (*comments.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	author := m.members[authorID]
	m.nextID++
	c := comments.Comment{
		ID:        m.nextID,
		BoardID:   boardID,
		AuthorID:  authorID,
		Content:   content,
		Nickname:  author.DisplayName,
		Username:  author.Subject,
		CreatedAt: time.Now(),
	}
	m.comments[c.ID] = c
	return &c, nil
}

func (m *memoryRepo) FindByID(ctx context.Context, id int64) (*comments.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (m *memoryRepo) ListByBoard(ctx context.Context, boardID int64) ([]comments.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []comments.Comment{}
	for _, c := range m.comments {
		if c.BoardID == boardID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.comments, id)
	return nil
}
