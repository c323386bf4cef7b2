package testutil

import (
	"context"
	"sync"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
)

// MemoryGateway is an in-memory gateway.Gateway with the same observable
// semantics as gateway.DocumentGateway: insertion order, merge on update,
// NotFound for absent ids.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type MemoryGateway struct {
	mu    sync.Mutex
	users []entity.User
	ids   gateway.IDGenerator
}

// NewMemoryGateway creates a gateway holding seed. A nil ids generator
// defaults to "user-1", "user-2", ...
func NewMemoryGateway(ids gateway.IDGenerator, seed ...entity.User) *MemoryGateway {
	if ids == nil {
		ids = gateway.NewSequenceGenerator("user")
	}
	return &MemoryGateway{users: entity.Clone(seed), ids: ids}
}

// Users returns a snapshot of the stored users without going through List.
func (m *MemoryGateway) Users() []entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return entity.Clone(m.users)
}

// List implements gateway.Gateway.
func (m *MemoryGateway) List(ctx context.Context) ([]entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, gateway.AsError(gateway.OpList, "", err)
	}
	return m.Users(), nil
}

// Create implements gateway.Gateway.
func (m *MemoryGateway) Create(ctx context.Context, d entity.Draft) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", gateway.AsError(gateway.OpCreate, "", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.ids.Generate()
	m.users = append(m.users, d.Normalize().WithID(id))
	return id, nil
}

// Update implements gateway.Gateway.
func (m *MemoryGateway) Update(ctx context.Context, id string, p entity.Patch) error {
	if err := ctx.Err(); err != nil {
		return gateway.AsError(gateway.OpUpdate, id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := entity.IndexOf(m.users, id)
	if i < 0 {
		return gateway.NewNotFound(gateway.OpUpdate, id)
	}
	m.users[i] = p.Normalize().Apply(m.users[i])
	return nil
}

// Delete implements gateway.Gateway.
func (m *MemoryGateway) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return gateway.AsError(gateway.OpDelete, id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := entity.IndexOf(m.users, id)
	if i < 0 {
		return gateway.NewNotFound(gateway.OpDelete, id)
	}
	m.users = append(m.users[:i], m.users[i+1:]...)
	return nil
}
