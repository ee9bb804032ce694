// internal/game/actions.go
package game

import (
	"sort"

	"github.com/google/uuid"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/models"
)

// apply validates one action against the current phase and actor, then
// resolves it. Validation is complete before any mutation: an illegal
// action leaves the room byte-for-byte unchanged.
func (s *Session) apply(msg models.GameActionMessage) error {
	if s.phase == PhaseFinished {
		return apperrors.Illegalf("round is finished")
	}
	if msg.RoomID != s.roomID {
		return apperrors.Validationf("action addressed to room %s, session is %s", msg.RoomID, s.roomID)
	}
	p, idx := s.playerByID(msg.UserID)
	if p == nil {
		return apperrors.Illegalf("user %s is not in room %s", msg.UserID, s.roomID)
	}
	if idx != s.turnIdx {
		return apperrors.Illegalf("not %s's turn", msg.UserID)
	}

	var err error
	switch msg.Action {
	case models.ActionTakeCard:
		err = s.handleTakeCard(p)
	case models.ActionCabo:
		err = s.handleCabo(p)
	case models.ActionPass:
		err = s.handlePass(p)
	case models.ActionUseCardPeak:
		err = s.handlePeek(p, *msg.CardPos)
	case models.ActionUseCardSpy:
		err = s.handleSpy(p, msg.TargetUser, *msg.TargetPos)
	case models.ActionUseCardSwap:
		err = s.handleSwap(p, *msg.CardPos, msg.TargetUser, *msg.TargetPos)
	case models.ActionChangeCards:
		err = s.handleChangeCards(p, msg.Positions)
	default:
		err = apperrors.Validationf("unknown action %q", msg.Action)
	}
	if err != nil {
		return err
	}

	s.logAction(msg.UserID, string(msg.Action), nil)
	s.publishAndPersist()
	return nil
}

// handleTakeCard draws the top card for the acting user. A role card
// moves the turn into Resolving; a plain card goes straight to
// Deciding. Only the actor learns the card's value.
func (s *Session) handleTakeCard(p *playerState) error {
	if s.phase != PhaseDrawing {
		return apperrors.Illegalf("take_card is only legal at the start of a turn")
	}
	card, ok := s.drawTop()
	if !ok {
		// Both piles empty: the round ends by exhaustion.
		s.finish()
		return nil
	}
	card.New = true
	s.drawn = &card
	s.known[p.user.ID][card.ID] = true
	if card.Role != models.RoleNone {
		s.phase = PhaseResolving
	} else {
		s.phase = PhaseDeciding
	}

	s.fireEvent(Event{
		Type: EventPlayerDrew,
		Room: s.roomID,
		User: p.user.ID,
		Card: obscured(card, nil),
		Payload: map[string]interface{}{
			"draw_size": len(s.drawPile),
		},
	})
	s.fireEventTo(p.user.ID, Event{
		Type: EventPrivateDrew,
		Room: s.roomID,
		Card: revealed(card, nil),
	})
	s.scheduleTurnTimer()
	return nil
}

// handleCabo starts the last lap. The caller's turn ends immediately;
// they do not get an extra turn.
func (s *Session) handleCabo(p *playerState) error {
	if s.phase != PhaseDrawing {
		return apperrors.Illegalf("cabo is only legal before drawing")
	}
	if s.lastLap {
		return apperrors.Illegalf("cabo has already been called")
	}
	s.lastLap = true
	s.caller = p.user.ID
	s.fireEvent(Event{Type: EventCaboCalled, Room: s.roomID, User: p.user.ID})
	s.advanceTurn()
	return nil
}

// handlePass discards the held drawn card face up with no further
// effect and ends the turn.
func (s *Session) handlePass(p *playerState) error {
	if s.phase != PhaseResolving && s.phase != PhaseDeciding {
		return apperrors.Illegalf("pass requires an unresolved drawn card")
	}
	s.discardDrawn(p.user.ID, EventPlayerPassed)
	s.advanceTurn()
	return nil
}

// handlePeek reveals one of the actor's own cards to the actor only.
// The card stays in place; the drawn peak card is still unresolved
// afterwards, so the turn moves to Deciding.
func (s *Session) handlePeek(p *playerState, pos int) error {
	if err := s.requireRole(models.RolePeak); err != nil {
		return err
	}
	if pos < 0 || pos >= len(p.hand) {
		return apperrors.Illegalf("peek position %d out of range", pos)
	}
	card := p.hand[pos]
	s.known[p.user.ID][card.ID] = true
	s.phase = PhaseDeciding

	s.fireEventTo(p.user.ID, Event{
		Type: EventPrivatePeek,
		Room: s.roomID,
		Card: revealed(card, &pos),
	})
	s.fireEvent(Event{
		Type: EventPlayerPeeked,
		Room: s.roomID,
		User: p.user.ID,
		Card: obscured(card, &pos),
	})
	s.scheduleTurnTimer()
	return nil
}

// handleSpy reveals one opponent card to the actor only. The public
// event names the target user but not the position, so the opponent is
// never told which card was viewed.
func (s *Session) handleSpy(p *playerState, targetID uuid.UUID, pos int) error {
	if err := s.requireRole(models.RoleSpy); err != nil {
		return err
	}
	if targetID == p.user.ID {
		return apperrors.Illegalf("spy targets an opponent, not yourself")
	}
	target, _ := s.playerByID(targetID)
	if target == nil {
		return apperrors.Illegalf("spy target %s is not in the room", targetID)
	}
	if pos < 0 || pos >= len(target.hand) {
		return apperrors.Illegalf("spy position %d out of range", pos)
	}
	card := target.hand[pos]
	s.known[p.user.ID][card.ID] = true
	s.phase = PhaseDeciding

	ev := revealed(card, &pos)
	ev.Owner = targetID
	s.fireEventTo(p.user.ID, Event{
		Type: EventPrivateSpy,
		Room: s.roomID,
		Card: ev,
	})
	s.fireEvent(Event{
		Type:    EventPlayerSpied,
		Room:    s.roomID,
		User:    p.user.ID,
		Payload: map[string]interface{}{"target": targetID.String()},
	})
	s.scheduleTurnTimer()
	return nil
}

// handleSwap blindly exchanges one of the actor's cards with one of an
// opponent's. Neither side learns the value they received: the known
// sets are not touched.
func (s *Session) handleSwap(p *playerState, ownPos int, targetID uuid.UUID, targetPos int) error {
	if err := s.requireRole(models.RoleSwap); err != nil {
		return err
	}
	if targetID == p.user.ID {
		return apperrors.Illegalf("swap targets an opponent, not yourself")
	}
	target, _ := s.playerByID(targetID)
	if target == nil {
		return apperrors.Illegalf("swap target %s is not in the room", targetID)
	}
	if ownPos < 0 || ownPos >= len(p.hand) {
		return apperrors.Illegalf("swap position %d out of range", ownPos)
	}
	if targetPos < 0 || targetPos >= len(target.hand) {
		return apperrors.Illegalf("swap target position %d out of range", targetPos)
	}

	own := p.hand[ownPos]
	theirs := target.hand[targetPos]
	p.hand[ownPos], target.hand[targetPos] = theirs, own
	s.phase = PhaseDeciding

	c1 := obscured(own, &ownPos)
	c1.Owner = p.user.ID
	c2 := obscured(theirs, &targetPos)
	c2.Owner = targetID
	s.fireEvent(Event{
		Type:  EventPlayerSwapped,
		Room:  s.roomID,
		User:  p.user.ID,
		Card:  c1,
		Card2: c2,
	})
	s.scheduleTurnTimer()
	return nil
}

// handleChangeCards has two modes, both confined to the actor's hand.
// With no drawn card (Drawing) it is a pure reorder and does not
// consume the turn's draw. With a drawn card (Deciding) it commits the
// drawn card into the hand: every named position must hold the same
// point value when more than one is given, the displaced cards go face
// up to the discard pile, and the turn ends.
func (s *Session) handleChangeCards(p *playerState, positions []int) error {
	switch s.phase {
	case PhaseDrawing:
		return s.reorderHand(p, positions)
	case PhaseDeciding:
		return s.commitDrawn(p, positions)
	default:
		return apperrors.Illegalf("change_cards is not legal while a role card is unresolved")
	}
}

func (s *Session) reorderHand(p *playerState, positions []int) error {
	if len(positions) != len(p.hand) {
		return apperrors.Validationf("reorder needs all %d positions", len(p.hand))
	}
	seen := make(map[int]bool, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= len(p.hand) || seen[pos] {
			return apperrors.Validationf("reorder positions must be a permutation of the hand")
		}
		seen[pos] = true
	}
	next := make([]models.Card, len(p.hand))
	for i, pos := range positions {
		next[i] = p.hand[pos]
	}
	p.hand = next

	s.fireEvent(Event{
		Type: EventPlayerChanged,
		Room: s.roomID,
		User: p.user.ID,
		Payload: map[string]interface{}{
			"reorder": true,
		},
	})
	return nil
}

func (s *Session) commitDrawn(p *playerState, positions []int) error {
	seen := make(map[int]bool, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= len(p.hand) {
			return apperrors.Illegalf("change position %d out of range", pos)
		}
		if seen[pos] {
			return apperrors.Validationf("change positions must be distinct")
		}
		seen[pos] = true
	}
	if len(positions) > 1 {
		points := p.hand[positions[0]].Points
		for _, pos := range positions[1:] {
			if p.hand[pos].Points != points {
				return apperrors.Illegalf("multi-card change requires equal point values")
			}
		}
	}

	drawn := *s.drawn
	drawn.New = false
	s.drawn = nil

	// Displaced cards leave face up; the drawn card lands in the first
	// named slot and the rest of the hand closes up.
	ordered := append([]int(nil), positions...)
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))
	removed := make([]models.Card, 0, len(positions))
	for _, pos := range ordered {
		removed = append(removed, p.hand[pos])
		p.hand = append(p.hand[:pos], p.hand[pos+1:]...)
	}
	insert := positions[0]
	if insert > len(p.hand) {
		insert = len(p.hand)
	}
	p.hand = append(p.hand[:insert], append([]models.Card{drawn}, p.hand[insert:]...)...)
	s.discardPile = append(s.discardPile, removed...)

	ev := Event{
		Type: EventPlayerChanged,
		Room: s.roomID,
		User: p.user.ID,
		Card: obscured(drawn, &insert),
		Payload: map[string]interface{}{
			"discarded": revealedList(removed),
		},
	}
	s.fireEvent(ev)
	s.advanceTurn()
	return nil
}

func revealedList(cards []models.Card) []interface{} {
	out := make([]interface{}, len(cards))
	for i, c := range cards {
		out[i] = map[string]interface{}{"id": c.ID, "points": c.Points, "role": c.Role}
	}
	return out
}

// requireRole checks that the turn is in Resolving with a drawn card
// granting the given role.
func (s *Session) requireRole(role models.Role) error {
	if s.phase != PhaseResolving || s.drawn == nil {
		return apperrors.Illegalf("no role card to use")
	}
	if s.drawn.Role != role {
		return apperrors.Illegalf("drawn card grants %q, not %q", s.drawn.Role, role)
	}
	return nil
}
