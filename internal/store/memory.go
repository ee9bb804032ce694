// internal/store/memory.go
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/models"
)

// Memory is an in-process Store used for tests and single-node runs
// without Postgres. Values are deep-copied on the way in and out so a
// caller can never observe a partially-applied mutation.
type Memory struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID][]byte
	users map[uuid.UUID][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[uuid.UUID][]byte),
		users: make(map[uuid.UUID][]byte),
	}
}

func (m *Memory) SaveRoom(_ context.Context, state *models.RoomState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[state.Room.ID] = data
	return nil
}

func (m *Memory) LoadRoom(_ context.Context, id uuid.UUID) (*models.RoomState, error) {
	m.mu.RLock()
	data, ok := m.rooms[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound(id)
	}
	var state models.RoomState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (m *Memory) DeleteRoom(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	return nil
}

func (m *Memory) LoadAllRooms(_ context.Context) ([]*models.RoomState, error) {
	m.mu.RLock()
	blobs := make([][]byte, 0, len(m.rooms))
	for _, data := range m.rooms {
		blobs = append(blobs, data)
	}
	m.mu.RUnlock()

	states := make([]*models.RoomState, 0, len(blobs))
	for _, data := range blobs {
		var state models.RoomState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, err
		}
		states = append(states, &state)
	}
	return states, nil
}

func (m *Memory) SaveUser(_ context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = data
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}
