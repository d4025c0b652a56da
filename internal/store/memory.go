package store

import (
	"context"
	"sync"

	"github.com/moonlitgames/werewolf-backend/internal/game"
)

// MemoryStore is the in-process RoomStore used in tests and in dev runs
// without a DATABASE_URL. Same CAS contract as Postgres.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*memoryRow
}

type memoryRow struct {
	state    game.State
	revision int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*memoryRow)}
}

func (m *MemoryStore) Load(_ context.Context, roomID string) (game.State, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rooms[roomID]
	if !ok {
		return game.State{}, 0, ErrNotFound
	}
	return row.state.Clone(), row.revision, nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, roomID string, s game.State, expected int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rooms[roomID]
	if !ok || row.revision != expected {
		return false, nil
	}
	row.state = s.Clone()
	row.revision = expected + 1
	return true, nil
}

func (m *MemoryStore) Create(_ context.Context, roomID string, s game.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; ok {
		return ErrExists
	}
	m.rooms[roomID] = &memoryRow{state: s.Clone(), revision: 0}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	return nil
}
