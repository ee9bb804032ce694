// internal/game/events.go
package game

import (
	"github.com/google/uuid"

	"github.com/cabogame/cabo-service/internal/models"
)

// EventType is an enum-like type for broadcasting game activity.
// Types prefixed private_ are only ever sent to a single player.
type EventType string

const (
	EventRoomUpdated    EventType = "room_updated"     // membership or phase change
	EventGameStarted    EventType = "game_started"     // waiting -> active
	EventTurnStarted    EventType = "turn_started"     // whose turn it is now
	EventPlayerDrew     EventType = "player_drew"      // public: card id only
	EventPrivateDrew    EventType = "private_drew"     // actor: full card
	EventPrivateDealt   EventType = "private_dealt"    // initial two-card reveal
	EventPlayerPassed   EventType = "player_passed"    // drawn card discarded face up
	EventPlayerPeeked   EventType = "player_peeked"    // public: position only
	EventPrivatePeek    EventType = "private_peek"     // actor: revealed value
	EventPlayerSpied    EventType = "player_spied"     // public: target user only
	EventPrivateSpy     EventType = "private_spy"      // actor: revealed value
	EventPlayerSwapped  EventType = "player_swapped"   // public: positions, no values
	EventPlayerChanged  EventType = "player_changed"   // change_cards applied
	EventCaboCalled     EventType = "cabo_called"      // last lap begins
	EventPlayerTimeout  EventType = "player_timeout"   // auto-resolved on timeout
	EventDeckReshuffled EventType = "deck_reshuffled"  // discard folded into draw pile
	EventRoundFinished  EventType = "round_finished"   // scoring results, hands revealed
	EventPlayerRemoved  EventType = "player_removed"   // user left mid-round
)

// EventCard identifies a card inside an event payload. Points and Role
// are only set when the recipient is allowed to learn them; Pos is the
// hand position where that matters.
type EventCard struct {
	ID     uuid.UUID   `json:"id"`
	Points *int        `json:"points,omitempty"`
	Role   models.Role `json:"role,omitempty"`
	Pos    *int        `json:"pos,omitempty"`
	Owner  uuid.UUID   `json:"owner,omitempty"`
}

// Event is one visibility-scoped fact about a room. Events are fanned
// out through the session's broadcast callbacks: BroadcastFn for public
// events, BroadcastToFn for private ones.
type Event struct {
	Type    EventType              `json:"type"`
	Room    uuid.UUID              `json:"room"`
	User    uuid.UUID              `json:"user,omitempty"`
	Card    *EventCard             `json:"card,omitempty"`
	Card2   *EventCard             `json:"card2,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// revealed builds an EventCard carrying the card's full identity.
func revealed(c models.Card, pos *int) *EventCard {
	p := c.Points
	return &EventCard{ID: c.ID, Points: &p, Role: c.Role, Pos: pos}
}

// obscured builds an EventCard carrying only the card's id.
func obscured(c models.Card, pos *int) *EventCard {
	return &EventCard{ID: c.ID, Pos: pos}
}
