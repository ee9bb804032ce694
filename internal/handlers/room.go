// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/models"
)

type createRoomRequest struct {
	Name string `json:"name"`
	Lang string `json:"lang,omitempty"`
}

type joinRoomRequest struct {
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id,omitempty"`
	Name   string    `json:"name"`
	Lang   string    `json:"lang,omitempty"`
}

type memberRequest struct {
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
}

type roomResponse struct {
	Room models.Room `json:"room"`
	You  uuid.UUID   `json:"you"`
}

// CreateRoomHandler opens a new waiting room. The caller becomes the
// room admin and receives the user id to present on later calls.
func (s *Server) CreateRoomHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.Validationf("bad request payload: %v", err))
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, apperrors.Validationf("name is required"))
			return
		}
		user := models.User{ID: uuid.New(), Name: req.Name, Lang: req.Lang}
		room, err := s.Registry.CreateRoom(r.Context(), user)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, roomResponse{Room: room, You: user.ID})
	}
}

// JoinRoomHandler adds a user to a waiting room. Passing a known
// user_id rejoins an existing seat; omitting it creates a fresh user.
func (s *Server) JoinRoomHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var req joinRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.Validationf("bad request payload: %v", err))
			return
		}
		if req.RoomID == uuid.Nil {
			writeError(w, apperrors.Validationf("room_id is required"))
			return
		}
		if req.UserID == uuid.Nil && strings.TrimSpace(req.Name) == "" {
			writeError(w, apperrors.Validationf("name is required for a new user"))
			return
		}
		user := models.User{ID: req.UserID, Name: req.Name, Lang: req.Lang}
		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		room, err := s.Registry.Join(r.Context(), req.RoomID, user)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roomResponse{Room: room, You: user.ID})
	}
}

// LeaveRoomHandler removes a user from a room, mid-round or not.
func (s *Server) LeaveRoomHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var req memberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.Validationf("bad request payload: %v", err))
			return
		}
		if err := s.Registry.Leave(r.Context(), req.RoomID, req.UserID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// StartGameHandler deals a round in a waiting room. Admin only.
func (s *Server) StartGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var req memberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.Validationf("bad request payload: %v", err))
			return
		}
		if err := s.Registry.StartGame(r.Context(), req.RoomID, req.UserID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// RoomStateHandler returns the caller's projection of the room. Hidden
// card values the caller has not learned are absent from the response.
func (s *Server) RoomStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := uuid.Parse(r.URL.Query().Get("room_id"))
		if err != nil {
			writeError(w, apperrors.Validationf("invalid room_id"))
			return
		}
		userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, apperrors.Validationf("invalid user_id"))
			return
		}
		view, err := s.Registry.View(roomID, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
