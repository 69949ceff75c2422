package auth_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bootboard/bootboard/internal/auth"
	"github.com/bootboard/bootboard/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]auth.Identity
	lookups int
	failure error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[int64]auth.Identity)}
}

func (m *memoryRepo) FindBySubject(ctx context.Context, subject string) (*auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.failure != nil {
		return nil, m.failure
	}
	for _, identity := range m.byID {
		if identity.Subject == subject {
			out := identity
			return &out, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) FindByID(ctx context.Context, id int64) (*auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &identity, nil
}

func (m *memoryRepo) ExistsBySubject(ctx context.Context, subject string) (bool, error) {
	_, err := m.FindBySubject(ctx, subject)
	if err == shared.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *memoryRepo) Save(ctx context.Context, identity auth.Identity) (*auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Subject == identity.Subject {
			return nil, fmt.Errorf("username %q: %w", identity.Subject, shared.ErrConflict)
		}
	}
	m.nextID++
	identity.ID = m.nextID
	identity.CreatedAt = time.Now()
	m.byID[identity.ID] = identity
	return &identity, nil
}

func (m *memoryRepo) List(ctx context.Context) ([]auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.Identity, 0, len(m.byID))
	for _, identity := range m.byID {
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) UpdateRole(ctx context.Context, id int64, role auth.Role) (*auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	identity.Role = role
	m.byID[id] = identity
	return &identity, nil
}

var _ auth.Repository = (*memoryRepo)(nil)
