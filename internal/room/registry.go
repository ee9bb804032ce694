// internal/room/registry.go
package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/config"
	"github.com/cabogame/cabo-service/internal/game"
	"github.com/cabogame/cabo-service/internal/history"
	"github.com/cabogame/cabo-service/internal/models"
	"github.com/cabogame/cabo-service/internal/store"
)

// PhaseWaiting marks a room that has members but no running round.
const PhaseWaiting = "waiting"

// Registry owns every live room: the waiting lobbies and the running
// sessions. It is the only component that creates or destroys sessions.
// Registry methods take their own lock; mutation inside a running round
// is delegated to the session's writer goroutine.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*entry

	cfg       *config.Config
	store     store.Store
	historian *history.Historian
	log       *logrus.Logger

	// BroadcastFn fans an event to every connected member of a room;
	// BroadcastToFn delivers a private event to one user. Both are
	// wired by the transport layer before any room is created.
	BroadcastFn   func(roomID uuid.UUID, ev game.Event)
	BroadcastToFn func(roomID, userID uuid.UUID, ev game.Event)
}

type entry struct {
	room    models.Room
	session *game.Session
}

// NewRegistry builds an empty registry. Call Reconcile before serving
// traffic so rooms persisted by a previous process come back.
func NewRegistry(cfg *config.Config, st store.Store, h *history.Historian, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		rooms:     make(map[uuid.UUID]*entry),
		cfg:       cfg,
		store:     st,
		historian: h,
		log:       log,
	}
}

// CreateRoom opens a new waiting room with creator as its admin.
func (r *Registry) CreateRoom(ctx context.Context, creator models.User) (models.Room, error) {
	roomID := uuid.New()
	creator.IsAdmin = true
	creator.Room = roomID
	creator.LastSeen = time.Now()
	room := models.Room{
		ID:      roomID,
		Users:   []models.User{creator},
		Waiting: true,
	}

	r.mu.Lock()
	r.rooms[room.ID] = &entry{room: room}
	r.mu.Unlock()

	r.persistRoom(ctx, &models.RoomState{Room: room, Phase: PhaseWaiting})
	r.persistUser(ctx, creator)
	r.log.WithFields(logrus.Fields{
		"room_id": room.ID,
		"user_id": creator.ID,
	}).Info("room created")
	return room, nil
}

// Join adds a user to a waiting room. Joining a room the user is
// already in is a no-op and returns the current room.
func (r *Registry) Join(ctx context.Context, roomID uuid.UUID, user models.User) (models.Room, error) {
	r.mu.Lock()
	e, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return models.Room{}, apperrors.NotFound(roomID)
	}
	if i := e.room.IndexOf(user.ID); i >= 0 {
		room := e.room
		r.mu.Unlock()
		return room, nil
	}
	if !e.room.Waiting {
		r.mu.Unlock()
		return models.Room{}, apperrors.Illegalf("room %s has already started", roomID)
	}
	if len(e.room.Users) >= r.cfg.Game.MaxPlayers {
		r.mu.Unlock()
		return models.Room{}, apperrors.Full(roomID)
	}
	user.Room = roomID
	user.LastSeen = time.Now()
	e.room.Users = append(e.room.Users, user)
	room := e.room
	r.mu.Unlock()

	r.persistRoom(ctx, &models.RoomState{Room: room, Phase: PhaseWaiting})
	r.persistUser(ctx, user)
	r.broadcast(roomID, game.Event{Type: game.EventRoomUpdated, Room: roomID, User: user.ID})
	return room, nil
}

// Leave removes a user. In a waiting room the seat simply disappears;
// in a running round the removal goes through the session so the
// departing hand is discarded and the turn order stays sound. When the
// admin leaves, the earliest remaining joiner inherits the role. The
// last member leaving destroys the room.
func (r *Registry) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	r.mu.Lock()
	e, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return apperrors.NotFound(roomID)
	}
	i := e.room.IndexOf(userID)
	if i < 0 {
		r.mu.Unlock()
		return apperrors.Illegalf("user %s is not in room %s", userID, roomID)
	}
	wasAdmin := e.room.Users[i].IsAdmin
	e.room.Users = append(e.room.Users[:i], e.room.Users[i+1:]...)
	if wasAdmin && len(e.room.Users) > 0 {
		e.room.Users[0].IsAdmin = true
	}
	room := e.room
	session := e.session
	empty := len(e.room.Users) == 0
	if empty {
		delete(r.rooms, roomID)
	}
	r.mu.Unlock()

	if session != nil && !session.Finished() {
		if err := session.RemoveUser(ctx, userID); err != nil {
			r.log.WithFields(logrus.Fields{
				"room_id": roomID,
				"user_id": userID,
				"error":   err,
			}).Warn("session removal failed")
		}
	}

	r.deleteUser(ctx, userID)
	if empty {
		if session != nil {
			session.Stop()
		}
		r.deleteRoom(ctx, roomID)
		r.log.WithField("room_id", roomID).Info("room destroyed")
		return nil
	}

	if room.Waiting {
		r.persistRoom(ctx, &models.RoomState{Room: room, Phase: PhaseWaiting})
	}
	r.broadcast(roomID, game.Event{Type: game.EventPlayerRemoved, Room: roomID, User: userID})
	r.broadcast(roomID, game.Event{Type: game.EventRoomUpdated, Room: roomID})
	return nil
}

// StartGame deals a round. Only the room admin may start, the room must
// be waiting, and at least MinPlayers seats must be filled. The caller
// takes the first turn.
func (r *Registry) StartGame(ctx context.Context, roomID, userID uuid.UUID) error {
	r.mu.Lock()
	e, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return apperrors.NotFound(roomID)
	}
	i := e.room.IndexOf(userID)
	switch {
	case i < 0:
		r.mu.Unlock()
		return apperrors.Illegalf("user %s is not in room %s", userID, roomID)
	case !e.room.Users[i].IsAdmin:
		r.mu.Unlock()
		return apperrors.Illegalf("only the room admin can start the game")
	case !e.room.Waiting:
		r.mu.Unlock()
		return apperrors.Illegalf("room %s has already started", roomID)
	case len(e.room.Users) < r.cfg.Game.MinPlayers:
		r.mu.Unlock()
		return apperrors.Validationf("need at least %d players, have %d", r.cfg.Game.MinPlayers, len(e.room.Users))
	}

	e.room.Waiting = false
	e.room.LastLap = false
	room := e.room

	session, err := game.NewSession(r.sessionConfig(room, userID))
	if err != nil {
		e.room.Waiting = true
		r.mu.Unlock()
		return err
	}
	prev := e.session
	e.session = session
	r.mu.Unlock()

	// The prior round's session lingers for late viewers; stop its
	// writer goroutine before it goes unreachable.
	if prev != nil {
		prev.Stop()
	}
	session.Start()
	r.persistRoom(ctx, session.Snapshot())
	r.log.WithFields(logrus.Fields{
		"room_id": roomID,
		"players": len(room.Users),
	}).Info("game started")
	return nil
}

// Submit routes an action to the room's running session.
func (r *Registry) Submit(ctx context.Context, msg models.GameActionMessage) error {
	session, err := r.activeSession(msg.RoomID)
	if err != nil {
		return err
	}
	return session.Submit(ctx, msg)
}

// View returns the viewer's projection of a room. Waiting rooms project
// the member list with no hands.
func (r *Registry) View(roomID, viewerID uuid.UUID) (*game.RoomView, error) {
	r.mu.RLock()
	e, ok := r.rooms[roomID]
	var session *game.Session
	var room models.Room
	if ok {
		session = e.session
		room = e.room
	}
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound(roomID)
	}
	if session != nil {
		if v := session.View(viewerID); v != nil {
			return v, nil
		}
	}
	view := &game.RoomView{RoomID: roomID, Phase: PhaseWaiting}
	for _, u := range room.Users {
		view.Players = append(view.Players, game.ViewPlayer{ID: u.ID, Name: u.Name})
	}
	return view, nil
}

// Room returns the member list of a room.
func (r *Registry) Room(roomID uuid.UUID) (models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[roomID]
	if !ok {
		return models.Room{}, apperrors.NotFound(roomID)
	}
	return e.room, nil
}

// Reconcile restores rooms persisted by a previous process. Waiting
// rooms come back as lobbies; in-flight rounds are rebuilt from their
// snapshot and resume with a fresh turn timer.
func (r *Registry) Reconcile(ctx context.Context) error {
	states, err := r.store.LoadAllRooms(ctx)
	if err != nil {
		return err
	}
	for _, state := range states {
		state := state
		r.mu.Lock()
		e := &entry{room: state.Room}
		if state.Phase == string(game.PhaseFinished) {
			// A finished round reopens as a lobby.
			e.room.Waiting = true
			e.room.LastLap = false
		}
		r.rooms[state.Room.ID] = e
		if state.Phase != PhaseWaiting && state.Phase != string(game.PhaseFinished) {
			session := game.Restore(state, r.sessionConfig(state.Room, uuid.Nil))
			e.session = session
			r.mu.Unlock()
			session.Resume()
			r.log.WithFields(logrus.Fields{
				"room_id": state.Room.ID,
				"phase":   state.Phase,
			}).Info("room restored mid-round")
			continue
		}
		r.mu.Unlock()
		r.log.WithField("room_id", state.Room.ID).Info("room restored")
	}
	return nil
}

// Shutdown stops every running session. Rooms stay persisted for the
// next process.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.rooms {
		if e.session != nil {
			e.session.Stop()
		}
	}
}

func (r *Registry) sessionConfig(room models.Room, starter uuid.UUID) game.Config {
	return game.Config{
		Room:          room,
		Starter:       starter,
		TurnTimeout:   r.cfg.Game.TurnTimeout(),
		SubmitTimeout: r.cfg.Game.SubmitTimeout(),
		Log:           r.log,
		Historian:     r.historian,
		BroadcastFn: func(ev game.Event) {
			r.broadcast(room.ID, ev)
		},
		BroadcastToFn: func(userID uuid.UUID, ev game.Event) {
			r.broadcastTo(room.ID, userID, ev)
		},
		PersistFn: func(state *models.RoomState) {
			r.persistRoom(context.Background(), state)
		},
		OnFinished: func(res game.Result) {
			r.onRoundFinished(room.ID, res)
		},
	}
}

// onRoundFinished reopens the room as a lobby so the admin can deal
// another round. The finished session stays attached until the next
// StartGame so late viewers still see the revealed result.
func (r *Registry) onRoundFinished(roomID uuid.UUID, res game.Result) {
	r.mu.Lock()
	e, ok := r.rooms[roomID]
	if ok {
		e.room.Waiting = true
		e.room.LastLap = false
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.log.WithFields(logrus.Fields{
		"room_id": roomID,
		"winners": res.Winners,
		"penalty": res.PenaltyApplied,
	}).Info("round finished")
}

func (r *Registry) activeSession(roomID uuid.UUID) (*game.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[roomID]
	if !ok {
		return nil, apperrors.NotFound(roomID)
	}
	if e.session == nil || e.session.Finished() {
		return nil, apperrors.Illegalf("room %s has no running game", roomID)
	}
	return e.session, nil
}

// persistRoom writes a snapshot with retry. Memory stays authoritative:
// a store outage is logged, never surfaced as a game failure.
func (r *Registry) persistRoom(ctx context.Context, state *models.RoomState) {
	err := store.WithRetry(ctx, r.log, func(ctx context.Context) error {
		return r.store.SaveRoom(ctx, state)
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"room_id": state.Room.ID,
			"error":   err,
		}).Error("room snapshot not persisted")
	}
}

func (r *Registry) persistUser(ctx context.Context, user models.User) {
	err := store.WithRetry(ctx, r.log, func(ctx context.Context) error {
		return r.store.SaveUser(ctx, &user)
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err,
		}).Error("user not persisted")
	}
}

func (r *Registry) deleteUser(ctx context.Context, userID uuid.UUID) {
	err := store.WithRetry(ctx, r.log, func(ctx context.Context) error {
		return r.store.DeleteUser(ctx, userID)
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err,
		}).Error("user deletion not persisted")
	}
}

func (r *Registry) deleteRoom(ctx context.Context, roomID uuid.UUID) {
	err := store.WithRetry(ctx, r.log, func(ctx context.Context) error {
		return r.store.DeleteRoom(ctx, roomID)
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"room_id": roomID,
			"error":   err,
		}).Error("room deletion not persisted")
	}
}

func (r *Registry) broadcast(roomID uuid.UUID, ev game.Event) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(roomID, ev)
	}
}

func (r *Registry) broadcastTo(roomID, userID uuid.UUID, ev game.Event) {
	if r.BroadcastToFn != nil {
		r.BroadcastToFn(roomID, userID, ev)
	}
}
