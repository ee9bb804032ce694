// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/middleware"
	"github.com/cabogame/cabo-service/internal/models"
)

// Custom WebSocket close codes, beyond the standard range.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidUserIDError  = 3002 // user_id query parameter missing or malformed.
	InvalidRoomIDError  = 3003 // Target room in the WS URL does not exist or is invalid.
)

// GameWSHandler upgrades the connection for a room at /game/ws/{room_id}.
// The user identifies with the user_id query parameter handed out by
// the room endpoints and must already be a member of the room. After
// the upgrade the client receives its current projection, then live
// events as the round progresses.
func (s *Server) GameWSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomIDStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/game/ws/"), "/")
		roomID, err := uuid.Parse(roomIDStr)
		if err != nil {
			http.Error(w, "invalid room_id in path (/game/ws/{room_id})", http.StatusBadRequest)
			return
		}
		userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
		if err != nil {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}

		room, err := s.Registry.Room(roomID)
		if err != nil {
			writeError(w, err)
			return
		}
		if room.IndexOf(userID) < 0 {
			http.Error(w, "you are not a member of this room", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			s.Log.Warnf("WebSocket accept error for room %s: %v", roomID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")

		if c.Subprotocol() != "game" {
			c.Close(websocket.StatusPolicyViolation, "client must use the 'game' subprotocol")
			return
		}
		middleware.LogWebSocketConnect(s.Log, r.RemoteAddr, r.URL.Path)

		cl := s.register(roomID, userID, c)
		defer s.unregister(roomID, userID, c)

		// Initial state so a reconnecting client catches up immediately.
		if view, err := s.Registry.View(roomID, userID); err == nil {
			data, _ := json.Marshal(map[string]interface{}{"type": "room_state", "state": view})
			cl.enqueue(data)
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		readErr := s.readGameMessages(ctx, cl, roomID, userID)
		middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// wsActionMessage is the client frame. Action payload fields mirror
// GameActionMessage; user and room are taken from the connection, never
// from the frame.
type wsActionMessage struct {
	Type string `json:"type"`

	Action     models.ActionType `json:"action,omitempty"`
	CardPos    *int              `json:"card_pos,omitempty"`
	TargetUser uuid.UUID         `json:"target_user,omitempty"`
	TargetPos  *int              `json:"target_pos,omitempty"`
	Positions  []int             `json:"positions,omitempty"`
}

// readGameMessages reads client frames until the connection drops.
// Rejected actions answer only the sender; applied actions reach the
// room through the session's broadcast events. Replies go through the
// client's send queue, the connection's only writer.
func (s *Server) readGameMessages(ctx context.Context, cl *client, roomID, userID uuid.UUID) error {
	for {
		msgType, data, err := cl.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg wsActionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendWsError(cl, apperrors.Validationf("invalid JSON frame"))
			continue
		}

		switch msg.Type {
		case "action":
			action := models.GameActionMessage{
				Action:     msg.Action,
				UserID:     userID,
				RoomID:     roomID,
				CardPos:    msg.CardPos,
				TargetUser: msg.TargetUser,
				TargetPos:  msg.TargetPos,
				Positions:  msg.Positions,
			}
			if err := s.Registry.Submit(ctx, action); err != nil {
				s.sendWsError(cl, err)
			}
		case "ping":
			data, _ := json.Marshal(map[string]string{"type": "pong"})
			cl.enqueue(data)
		default:
			s.sendWsError(cl, apperrors.Validationf("unknown message type %q", msg.Type))
		}
	}
}

// sendWsError answers the sender with a structured rejection. The error
// kind rides along so clients can branch without parsing messages.
func (s *Server) sendWsError(cl *client, err error) {
	kind := "internal"
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		kind = string(appErr.Kind)
	}
	data, mErr := json.Marshal(map[string]string{
		"type":    "error",
		"kind":    kind,
		"message": err.Error(),
	})
	if mErr != nil {
		return
	}
	cl.enqueue(data)
}
