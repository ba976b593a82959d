package credential

import (
	"context"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// MemoryRepository keeps credentials in a concurrent map. It backs
// tests and single-node deployments that do not need durability.
type MemoryRepository struct {
	items  cmap.ConcurrentMap[string, Credential]
	swapMu sync.Mutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: cmap.New[Credential]()}
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Credential, error) {
	cred, ok := m.items.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &cred, nil
}

func (m *MemoryRepository) Put(_ context.Context, cred *Credential) error {
	m.items.Set(cred.ID, *cred)
	return nil
}

func (m *MemoryRepository) ByOwner(_ context.Context, owner string) ([]*Credential, error) {
	creds := make([]*Credential, 0)
	for entry := range m.items.IterBuffered() {
		if entry.Val.Owner == owner {
			cred := entry.Val
			creds = append(creds, &cred)
		}
	}
	return creds, nil
}

func (m *MemoryRepository) Swap(_ context.Context, id string, apply func(*Credential) error) (*Credential, error) {
	m.swapMu.Lock()
	defer m.swapMu.Unlock()

	cred, ok := m.items.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if err := apply(&cred); err != nil {
		return nil, err
	}
	m.items.Set(id, cred)
	return &cred, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.items.Remove(id)
	return nil
}
