// internal/game/session.go
package game

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/history"
	"github.com/cabogame/cabo-service/internal/models"
)

// Phase is the turn state machine phase of a running session.
type Phase string

const (
	// PhaseDrawing is the start of a turn: take_card, cabo, or an
	// own-hand change_cards reorder are legal.
	PhaseDrawing Phase = "drawing"
	// PhaseResolving follows take_card of a role card: the matching
	// use_card action or pass are legal.
	PhaseResolving Phase = "resolving"
	// PhaseDeciding holds an unresolved drawn card: pass discards it,
	// change_cards commits it to the hand.
	PhaseDeciding Phase = "deciding"
	// PhaseFinished is terminal; scoring has run.
	PhaseFinished Phase = "finished"
)

// playerState is one seat's authoritative in-round state. Seat order is
// join order and is also turn order.
type playerState struct {
	user    models.User
	hand    []models.Card
	removed bool
}

// Config wires a new session. BroadcastFn fans an event to every member
// of the room; BroadcastToFn delivers a private event to one user.
// PersistFn receives the authoritative snapshot after every applied
// mutation. All callbacks are invoked from the session's writer
// goroutine and must not call back into the session synchronously.
type Config struct {
	Room          models.Room
	Starter       uuid.UUID
	TurnTimeout   time.Duration
	SubmitTimeout time.Duration
	Rand          *rand.Rand
	Log           *logrus.Logger
	BroadcastFn   func(Event)
	BroadcastToFn func(userID uuid.UUID, ev Event)
	PersistFn     func(*models.RoomState)
	OnFinished    func(Result)
	Historian     *history.Historian
}

// Session is the per-room turn state machine. All mutation happens on a
// single writer goroutine; Submit queues an action and waits, bounded,
// for the writer to apply it. Reads go through View, which projects
// from an atomically published snapshot and never blocks the writer.
type Session struct {
	roomID uuid.UUID

	players     []*playerState
	drawPile    []models.Card
	discardPile []models.Card
	deckSize    int

	turnIdx  int
	turnID   int
	phase    Phase
	lastLap  bool
	caller   uuid.UUID
	drawn    *models.Card
	known    map[uuid.UUID]map[uuid.UUID]bool
	actIndex int

	turnTimeout   time.Duration
	submitTimeout time.Duration
	rng           *rand.Rand
	log           *logrus.Logger

	broadcastFn   func(Event)
	broadcastToFn func(uuid.UUID, Event)
	persistFn     func(*models.RoomState)
	onFinished    func(Result)
	historian     *history.Historian

	requests chan request
	timeouts chan int
	turnTmr  *time.Timer
	done     chan struct{}

	snapshot atomic.Pointer[models.RoomState]
}

type reqKind int

const (
	reqAction reqKind = iota
	reqRemove
)

type request struct {
	kind   reqKind
	msg    models.GameActionMessage
	userID uuid.UUID
	reply  chan error
}

// NewSession deals a fresh round for the room's members and returns a
// session ready to Start. The first turn belongs to cfg.Starter. Each
// player is privately shown the first two cards of their hand.
func NewSession(cfg Config) (*Session, error) {
	n := len(cfg.Room.Users)
	deck, err := NewDeck(n)
	if err != nil {
		return nil, err
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}

	s := &Session{
		roomID:        cfg.Room.ID,
		deckSize:      len(deck),
		phase:         PhaseDrawing,
		known:         make(map[uuid.UUID]map[uuid.UUID]bool),
		turnTimeout:   cfg.TurnTimeout,
		submitTimeout: cfg.SubmitTimeout,
		rng:           rng,
		log:           log,
		broadcastFn:   cfg.BroadcastFn,
		broadcastToFn: cfg.BroadcastToFn,
		persistFn:     cfg.PersistFn,
		onFinished:    cfg.OnFinished,
		historian:     cfg.Historian,
		requests:      make(chan request, 16),
		timeouts:      make(chan int, 1),
		done:          make(chan struct{}),
	}
	if s.submitTimeout <= 0 {
		s.submitTimeout = 5 * time.Second
	}

	Shuffle(deck, rng)
	hands, rest := Deal(deck, n)
	s.drawPile = rest
	for i, u := range cfg.Room.Users {
		s.players = append(s.players, &playerState{user: u, hand: hands[i]})
		s.known[u.ID] = make(map[uuid.UUID]bool)
	}

	s.turnIdx = 0
	for i, p := range s.players {
		if p.user.ID == cfg.Starter {
			s.turnIdx = i
			break
		}
	}

	// Everyone learns their two closest cards before play begins.
	for _, p := range s.players {
		for pos := 0; pos < 2 && pos < len(p.hand); pos++ {
			s.known[p.user.ID][p.hand[pos].ID] = true
		}
	}

	s.publishSnapshot()
	return s, nil
}

// Restore rebuilds a session from a persisted snapshot after a restart.
// The snapshot is authoritative; no in-process state is assumed.
func Restore(state *models.RoomState, cfg Config) *Session {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}

	s := &Session{
		roomID:        state.Room.ID,
		deckSize:      state.DeckSize,
		drawPile:      append([]models.Card(nil), state.DrawPile...),
		discardPile:   append([]models.Card(nil), state.DiscardPile...),
		turnIdx:       state.Room.Turn,
		turnID:        state.TurnID,
		phase:         Phase(state.Phase),
		lastLap:       state.Room.LastLap,
		caller:        state.CaboCaller,
		known:         make(map[uuid.UUID]map[uuid.UUID]bool),
		turnTimeout:   cfg.TurnTimeout,
		submitTimeout: cfg.SubmitTimeout,
		rng:           rng,
		log:           log,
		broadcastFn:   cfg.BroadcastFn,
		broadcastToFn: cfg.BroadcastToFn,
		persistFn:     cfg.PersistFn,
		onFinished:    cfg.OnFinished,
		historian:     cfg.Historian,
		requests:      make(chan request, 16),
		timeouts:      make(chan int, 1),
		done:          make(chan struct{}),
	}
	if s.submitTimeout <= 0 {
		s.submitTimeout = 5 * time.Second
	}
	if state.Drawn != nil {
		drawn := *state.Drawn
		s.drawn = &drawn
	}
	for _, gu := range state.Players {
		s.players = append(s.players, &playerState{
			user: gu.User,
			hand: append([]models.Card(nil), gu.Cards...),
		})
	}
	for viewer, ids := range state.Known {
		set := make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		s.known[viewer] = set
	}
	for _, p := range s.players {
		if s.known[p.user.ID] == nil {
			s.known[p.user.ID] = make(map[uuid.UUID]bool)
		}
	}

	s.publishSnapshot()
	return s
}

// Start launches the writer goroutine, announces the game, and begins
// the first turn's timer.
func (s *Session) Start() {
	s.fireEvent(Event{Type: EventGameStarted, Room: s.roomID})
	for _, p := range s.players {
		for pos := 0; pos < 2 && pos < len(p.hand); pos++ {
			i := pos
			s.fireEventTo(p.user.ID, Event{
				Type: EventPrivateDealt,
				Room: s.roomID,
				Card: revealed(p.hand[pos], &i),
			})
		}
	}
	s.fireTurnStarted()
	s.scheduleTurnTimer()
	go s.run()
}

// Resume launches the writer goroutine for a restored session without
// re-announcing the deal. The current player's timer restarts from a
// full window.
func (s *Session) Resume() {
	if s.phase != PhaseFinished {
		s.fireTurnStarted()
		s.scheduleTurnTimer()
	}
	go s.run()
}

// Stop terminates the writer goroutine. Pending submissions fail with
// an action timeout.
func (s *Session) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// RoomID returns the room this session belongs to.
func (s *Session) RoomID() uuid.UUID { return s.roomID }

// Snapshot returns the latest published authoritative state.
func (s *Session) Snapshot() *models.RoomState { return s.snapshot.Load() }

// Finished reports whether scoring has run.
func (s *Session) Finished() bool {
	snap := s.snapshot.Load()
	return snap != nil && Phase(snap.Phase) == PhaseFinished
}

// Submit queues one action for the room's writer and waits for the
// outcome. The wait is bounded: if the room stays busy past the submit
// timeout (or ctx expires first) the caller gets an ActionTimeoutError
// and nothing is applied.
func (s *Session) Submit(ctx context.Context, msg models.GameActionMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	req := request{kind: reqAction, msg: msg, reply: make(chan error, 1)}
	wait := time.NewTimer(s.submitTimeout)
	defer wait.Stop()

	select {
	case s.requests <- req:
	case <-wait.C:
		return apperrors.Timeout("room is busy")
	case <-ctx.Done():
		return apperrors.Timeout("submission cancelled")
	case <-s.done:
		return apperrors.Illegalf("session is closed")
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return apperrors.Timeout("submission cancelled")
	case <-s.done:
		return apperrors.Illegalf("session is closed")
	}
}

// RemoveUser takes a user out of the round: their cards go face up to
// the discard pile (keeping the deck composition intact) and the turn
// order closes over the gap.
func (s *Session) RemoveUser(ctx context.Context, userID uuid.UUID) error {
	req := request{kind: reqRemove, userID: userID, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return apperrors.Timeout("removal cancelled")
	case <-s.done:
		return apperrors.Illegalf("session is closed")
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return apperrors.Timeout("removal cancelled")
	case <-s.done:
		return apperrors.Illegalf("session is closed")
	}
}

// run is the single writer for all session state.
func (s *Session) run() {
	for {
		select {
		case req := <-s.requests:
			var err error
			switch req.kind {
			case reqAction:
				err = s.apply(req.msg)
			case reqRemove:
				err = s.removePlayer(req.userID)
			}
			req.reply <- err
		case turnID := <-s.timeouts:
			if turnID == s.turnID && s.phase != PhaseFinished {
				s.handleTurnTimeout()
			}
		case <-s.done:
			s.stopTurnTimer()
			return
		}
	}
}

func (s *Session) currentPlayer() *playerState {
	return s.players[s.turnIdx]
}

func (s *Session) playerByID(id uuid.UUID) (*playerState, int) {
	for i, p := range s.players {
		if p.user.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// advanceTurn hands the turn to the next seat. When the turn would
// return to the cabo caller the round is over instead.
func (s *Session) advanceTurn() {
	if s.phase == PhaseFinished {
		return
	}
	if len(s.players) < MinPlayers {
		s.finish()
		return
	}
	next := (s.turnIdx + 1) % len(s.players)
	if s.lastLap && s.players[next].user.ID == s.caller {
		s.finish()
		return
	}
	s.turnIdx = next
	s.turnID++
	s.phase = PhaseDrawing
	s.drawn = nil
	s.scheduleTurnTimer()
	s.fireTurnStarted()
}

func (s *Session) fireTurnStarted() {
	s.fireEvent(Event{
		Type: EventTurnStarted,
		Room: s.roomID,
		User: s.currentPlayer().user.ID,
		Payload: map[string]interface{}{
			"turn":     s.turnID,
			"last_lap": s.lastLap,
		},
	})
}

// finish runs scoring exactly once and makes the phase terminal.
func (s *Session) finish() {
	if s.phase == PhaseFinished {
		return
	}
	s.stopTurnTimer()
	s.phase = PhaseFinished
	// An in-flight drawn card goes to the discard pile so the full
	// deck stays accounted for in the terminal snapshot.
	if s.drawn != nil {
		card := *s.drawn
		card.New = false
		s.drawn = nil
		s.discardPile = append(s.discardPile, card)
	}

	result := scoreRound(s.players, s.caller)
	s.logAction(uuid.Nil, "round_finished", map[string]interface{}{
		"scores":  result.Scores,
		"winners": result.Winners,
		"penalty": result.PenaltyApplied,
	})

	hands := make(map[string][]interface{}, len(result.Hands))
	for id, hand := range result.Hands {
		cards := make([]interface{}, len(hand))
		for i, c := range hand {
			cards[i] = map[string]interface{}{"id": c.ID, "points": c.Points, "role": c.Role}
		}
		hands[id.String()] = cards
	}
	s.fireEvent(Event{
		Type: EventRoundFinished,
		Room: s.roomID,
		Payload: map[string]interface{}{
			"result": result,
			"hands":  hands,
		},
	})

	s.publishAndPersist()
	if s.onFinished != nil {
		s.onFinished(result)
	}
}

// drawTop takes the top card of the draw pile, folding the discard pile
// back in when the draw pile is empty. Returns false when both piles
// are exhausted.
func (s *Session) drawTop() (models.Card, bool) {
	if len(s.drawPile) == 0 {
		if len(s.discardPile) == 0 {
			return models.Card{}, false
		}
		s.drawPile = append(s.drawPile, s.discardPile...)
		s.discardPile = nil
		Shuffle(s.drawPile, s.rng)
		s.fireEvent(Event{
			Type: EventDeckReshuffled,
			Room: s.roomID,
			Payload: map[string]interface{}{
				"draw_size": len(s.drawPile),
			},
		})
	}
	card := s.drawPile[0]
	s.drawPile = s.drawPile[1:]
	return card, true
}

// discardDrawn moves the in-flight card face up onto the discard pile.
func (s *Session) discardDrawn(userID uuid.UUID, evType EventType) {
	card := *s.drawn
	card.New = false
	s.drawn = nil
	s.discardPile = append(s.discardPile, card)
	s.fireEvent(Event{
		Type: evType,
		Room: s.roomID,
		User: userID,
		Card: revealed(card, nil),
	})
}

// handleTurnTimeout auto-resolves a stalled turn: a held drawn card is
// discarded; a player who never drew has a card drawn and discarded on
// their behalf. Either way the turn advances.
func (s *Session) handleTurnTimeout() {
	p := s.currentPlayer()
	s.logAction(p.user.ID, "turn_timeout", map[string]interface{}{"phase": string(s.phase)})
	s.fireEvent(Event{Type: EventPlayerTimeout, Room: s.roomID, User: p.user.ID})

	switch s.phase {
	case PhaseDrawing:
		card, ok := s.drawTop()
		if !ok {
			s.finish()
			return
		}
		card.New = true
		s.drawn = &card
		s.discardDrawn(p.user.ID, EventPlayerPassed)
	case PhaseResolving, PhaseDeciding:
		s.discardDrawn(p.user.ID, EventPlayerPassed)
	}
	s.advanceTurn()
	s.publishAndPersist()
}

func (s *Session) scheduleTurnTimer() {
	if s.turnTimeout <= 0 {
		return
	}
	s.stopTurnTimer()
	turnID := s.turnID
	s.turnTmr = time.AfterFunc(s.turnTimeout, func() {
		select {
		case s.timeouts <- turnID:
		case <-s.done:
		}
	})
}

func (s *Session) stopTurnTimer() {
	if s.turnTmr != nil {
		s.turnTmr.Stop()
		s.turnTmr = nil
	}
}

// removePlayer drops a seat from the round. The leaver's cards go face
// up to the discard pile so the deck composition stays whole.
func (s *Session) removePlayer(userID uuid.UUID) error {
	p, idx := s.playerByID(userID)
	if p == nil {
		return apperrors.Validationf("user %s not in room %s", userID, s.roomID)
	}
	if s.phase == PhaseFinished {
		return nil
	}

	wasCurrent := idx == s.turnIdx
	if wasCurrent && s.drawn != nil {
		s.discardDrawn(userID, EventPlayerPassed)
	}
	p.removed = true
	s.discardPile = append(s.discardPile, p.hand...)
	p.hand = nil

	s.players = append(s.players[:idx], s.players[idx+1:]...)
	if idx < s.turnIdx {
		s.turnIdx--
	} else if s.turnIdx >= len(s.players) {
		s.turnIdx = 0
	}
	delete(s.known, userID)

	s.fireEvent(Event{Type: EventPlayerRemoved, Room: s.roomID, User: userID})
	s.logAction(userID, "player_removed", nil)

	switch {
	case len(s.players) < MinPlayers:
		s.finish()
	case userID == s.caller:
		// The rotation can never return to the caller now; score
		// immediately rather than loop forever.
		s.finish()
	case wasCurrent:
		// The seat at turnIdx is already the next player.
		if s.lastLap && s.players[s.turnIdx].user.ID == s.caller {
			s.finish()
			break
		}
		s.turnID++
		s.phase = PhaseDrawing
		s.scheduleTurnTimer()
		s.fireTurnStarted()
	}
	s.publishAndPersist()
	return nil
}

// fireEvent broadcasts a public event to every room member.
func (s *Session) fireEvent(ev Event) {
	if s.broadcastFn != nil {
		s.broadcastFn(ev)
	}
}

// fireEventTo delivers a private event to a single user.
func (s *Session) fireEventTo(userID uuid.UUID, ev Event) {
	if s.broadcastToFn != nil {
		s.broadcastToFn(userID, ev)
	}
}

// logAction feeds the historian queue.
func (s *Session) logAction(userID uuid.UUID, action string, payload map[string]interface{}) {
	s.actIndex++
	s.historian.Record(history.ActionRecord{
		RoomID:    s.roomID,
		Index:     s.actIndex,
		UserID:    userID,
		Action:    action,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
}

// buildSnapshot materializes the authoritative RoomState.
func (s *Session) buildSnapshot() *models.RoomState {
	state := &models.RoomState{
		Phase:      string(s.phase),
		TurnID:     s.turnID,
		CaboCaller: s.caller,
		DeckSize:   s.deckSize,
		DrawPile:   append([]models.Card(nil), s.drawPile...),
		Known:      make(map[uuid.UUID][]uuid.UUID, len(s.known)),
	}
	state.DiscardPile = append([]models.Card(nil), s.discardPile...)
	if s.drawn != nil {
		drawn := *s.drawn
		state.Drawn = &drawn
	}

	users := make([]models.User, len(s.players))
	for i, p := range s.players {
		users[i] = p.user
		gu := models.GameUser{
			User:  p.user,
			Cards: append([]models.Card(nil), p.hand...),
			Turn:  s.phase != PhaseFinished && i == s.turnIdx,
		}
		gu.Points = gu.HandTotal()
		state.Players = append(state.Players, gu)
	}
	state.Room = models.Room{
		ID:      s.roomID,
		Users:   users,
		Turn:    s.turnIdx,
		LastLap: s.lastLap,
		Waiting: false,
	}
	for viewer, set := range s.known {
		ids := make([]uuid.UUID, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		state.Known[viewer] = ids
	}
	return state
}

func (s *Session) publishSnapshot() {
	s.snapshot.Store(s.buildSnapshot())
}

// publishAndPersist refreshes the read snapshot and hands it to the
// persistence callback.
func (s *Session) publishAndPersist() {
	snap := s.buildSnapshot()
	s.snapshot.Store(snap)
	if s.persistFn != nil {
		s.persistFn(snap)
	}
}
