package abicache

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryStore should comply with the Store interface
var _ Store = &MemoryStore{}

// MemoryStore is an in-process Store. Used in tests and for runs that should
// not touch the filesystem.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[common.Address]string
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[common.Address]string)}
}

func (s *MemoryStore) Get(_ context.Context, address common.Address) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	abiJSON, ok := s.records[address]

	return abiJSON, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, address common.Address, abiJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[address] = abiJSON

	return nil
}
