// internal/store/memory_test.go
package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/models"
)

func testState(roomID uuid.UUID) *models.RoomState {
	user := models.User{ID: uuid.New(), Name: "alice", Room: roomID}
	return &models.RoomState{
		Room:     models.Room{ID: roomID, Users: []models.User{user}, Waiting: true},
		Phase:    "waiting",
		DeckSize: 56,
	}
}

func TestMemorySaveLoadRoundtrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	roomID := uuid.New()

	require.NoError(t, m.SaveRoom(ctx, testState(roomID)))

	got, err := m.LoadRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, roomID, got.Room.ID)
	assert.Equal(t, "waiting", got.Phase)
	assert.Equal(t, 56, got.DeckSize)
}

func TestMemoryLoadIsolation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	roomID := uuid.New()
	require.NoError(t, m.SaveRoom(ctx, testState(roomID)))

	first, err := m.LoadRoom(ctx, roomID)
	require.NoError(t, err)
	first.Phase = "drawing"
	first.Room.Users[0].Name = "mallory"

	second, err := m.LoadRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "waiting", second.Phase, "loaded copies must not alias the stored state")
	assert.Equal(t, "alice", second.Room.Users[0].Name)
}

func TestMemoryLoadMissing(t *testing.T) {
	m := NewMemory()
	_, err := m.LoadRoom(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func TestMemoryDeleteRoom(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	roomID := uuid.New()
	require.NoError(t, m.SaveRoom(ctx, testState(roomID)))
	require.NoError(t, m.DeleteRoom(ctx, roomID))

	_, err := m.LoadRoom(ctx, roomID)
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func TestMemoryLoadAllRooms(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, m.SaveRoom(ctx, testState(uuid.New())))
	}
	states, err := m.LoadAllRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 3)
}

func TestMemoryUsers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Name: "bob"}
	require.NoError(t, m.SaveUser(ctx, user))
	require.NoError(t, m.DeleteUser(ctx, user.ID))
}
