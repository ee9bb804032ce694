// internal/handlers/server_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabogame/cabo-service/internal/config"
	"github.com/cabogame/cabo-service/internal/game"
	"github.com/cabogame/cabo-service/internal/models"
	"github.com/cabogame/cabo-service/internal/room"
	"github.com/cabogame/cabo-service/internal/store"
)

func testServer(t *testing.T) (*Server, *room.Registry) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	cfg := config.Default()
	cfg.Game.TurnTimeoutSec = 0
	reg := room.NewRegistry(cfg, store.NewMemory(), nil, log)
	t.Cleanup(reg.Shutdown)
	return NewServer(reg, log), reg
}

func dialRoom(t *testing.T, ctx context.Context, srv *Server, roomID, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/game/ws/", srv.GameWSHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/ws/" + roomID.String() + "?user_id=" + userID.String()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{"game"}})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func TestBroadcastDeliversInOrder(t *testing.T) {
	srv, reg := testServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created, err := reg.CreateRoom(ctx, models.User{ID: uuid.New(), Name: "alice"})
	require.NoError(t, err)
	alice := created.Users[0]
	conn := dialRoom(t, ctx, srv, created.ID, alice.ID)

	// The first frame is the initial projection; reading it guarantees
	// the connection is registered with the hub.
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &first))
	require.Equal(t, "room_state", first["type"])

	const n = 50
	for i := 0; i < n; i++ {
		srv.broadcast(created.ID, game.Event{
			Type:    game.EventRoomUpdated,
			Room:    created.ID,
			Payload: map[string]interface{}{"seq": i},
		})
	}

	for i := 0; i < n; i++ {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var ev game.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, float64(i), ev.Payload["seq"], "frames must leave in emit order")
	}
}

func TestBroadcastToReachesOnlyTarget(t *testing.T) {
	srv, reg := testServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created, err := reg.CreateRoom(ctx, models.User{ID: uuid.New(), Name: "alice"})
	require.NoError(t, err)
	alice := created.Users[0]
	conn := dialRoom(t, ctx, srv, created.ID, alice.ID)

	_, _, err = conn.Read(ctx) // initial projection
	require.NoError(t, err)

	srv.broadcastTo(created.ID, alice.ID, game.Event{Type: game.EventPrivateDealt, Room: created.ID})
	srv.broadcastTo(created.ID, uuid.New(), game.Event{Type: game.EventPrivateDealt, Room: created.ID})
	srv.broadcast(created.ID, game.Event{Type: game.EventRoomUpdated, Room: created.ID})

	var ev game.Event
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, game.EventPrivateDealt, ev.Type)

	// The frame for the disconnected stranger is dropped, so the public
	// event comes straight after.
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, game.EventRoomUpdated, ev.Type)
}
