// internal/handlers/server.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cabogame/cabo-service/internal/game"
	"github.com/cabogame/cabo-service/internal/room"
)

// sendQueueSize bounds the per-connection backlog before a slow
// consumer is dropped.
const sendQueueSize = 64

// Server holds the room registry and the live WebSocket connections.
// It is the glue between the engine's event callbacks and the wire:
// the registry's broadcast functions are bound to the connection hub
// here, once, at construction.
type Server struct {
	Registry *room.Registry
	Log      *logrus.Logger

	mu    sync.Mutex
	conns map[uuid.UUID]map[uuid.UUID]*client
}

// client is one user's connection plus its send queue. A single writer
// goroutine drains the queue, so frames leave in the order the engine
// emitted them.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(c *websocket.Conn) *client {
	cl := &client{
		conn: c,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	go cl.writeLoop()
	return cl
}

func (cl *client) writeLoop() {
	for {
		select {
		case data := <-cl.send:
			writeRaw(cl.conn, data)
		case <-cl.done:
			return
		}
	}
}

// enqueue hands a frame to the writer goroutine without blocking the
// engine. A client that cannot drain the queue is closed.
func (cl *client) enqueue(data []byte) {
	select {
	case cl.send <- data:
	case <-cl.done:
	default:
		cl.stop(websocket.StatusPolicyViolation, "send queue overflow")
	}
}

func (cl *client) stop(code websocket.StatusCode, reason string) {
	cl.once.Do(func() {
		close(cl.done)
		cl.conn.Close(code, reason)
	})
}

// NewServer wires the registry's broadcast callbacks to the hub.
func NewServer(reg *room.Registry, log *logrus.Logger) *Server {
	s := &Server{
		Registry: reg,
		Log:      log,
		conns:    make(map[uuid.UUID]map[uuid.UUID]*client),
	}
	reg.BroadcastFn = s.broadcast
	reg.BroadcastToFn = s.broadcastTo
	return s
}

// register attaches a user's connection to a room, replacing any
// previous one for the same user.
func (s *Server) register(roomID, userID uuid.UUID, c *websocket.Conn) *client {
	cl := newClient(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[roomID] == nil {
		s.conns[roomID] = make(map[uuid.UUID]*client)
	}
	if old := s.conns[roomID][userID]; old != nil && old.conn != c {
		old.stop(websocket.StatusPolicyViolation, "replaced by a newer connection")
	}
	s.conns[roomID][userID] = cl
	return cl
}

func (s *Server) unregister(roomID, userID uuid.UUID, c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cl := s.conns[roomID][userID]; cl != nil && cl.conn == c {
		cl.stop(websocket.StatusNormalClosure, "connection closed")
		delete(s.conns[roomID], userID)
		if len(s.conns[roomID]) == 0 {
			delete(s.conns, roomID)
		}
	}
}

// broadcast fans an event to every connected member of a room. It is
// called from the session's writer goroutine; frames are queued per
// connection so the wire order matches the engine order.
func (s *Server) broadcast(roomID uuid.UUID, ev game.Event) {
	s.mu.Lock()
	targets := make([]*client, 0, len(s.conns[roomID]))
	for _, cl := range s.conns[roomID] {
		targets = append(targets, cl)
	}
	s.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		s.Log.WithFields(logrus.Fields{"room_id": roomID, "type": ev.Type, "error": err}).
			Error("broadcast marshal failed")
		return
	}
	for _, cl := range targets {
		cl.enqueue(data)
	}
}

// broadcastTo delivers a private event to one user's connection.
func (s *Server) broadcastTo(roomID, userID uuid.UUID, ev game.Event) {
	s.mu.Lock()
	cl := s.conns[roomID][userID]
	s.mu.Unlock()
	if cl == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		s.Log.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "type": ev.Type, "error": err}).
			Error("private event marshal failed")
		return
	}
	cl.enqueue(data)
}

func writeRaw(c *websocket.Conn, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	// The read loop notices and cleans up failed connections.
	_ = c.Write(ctx, websocket.MessageText, data)
}
