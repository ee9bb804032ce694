// internal/models/state.go
package models

import "github.com/google/uuid"

// RoomState is the full persisted state of one room, written to the
// store after every applied action and reloaded on restart. It is the
// single authoritative state; per-viewer projections are derived from
// it, never stored.
type RoomState struct {
	Room        Room       `json:"room"`
	Players     []GameUser `json:"players"`
	DrawPile    []Card     `json:"draw_pile"`
	DiscardPile []Card     `json:"discard_pile"`
	Phase       string     `json:"phase"`
	TurnID      int        `json:"turn_id"`
	CaboCaller  uuid.UUID  `json:"cabo_caller,omitempty"`
	DeckSize    int        `json:"deck_size"`

	// Drawn is the in-flight new card, held by the current player
	// between take_card and its resolution. At most one exists.
	Drawn *Card `json:"drawn,omitempty"`

	// Known maps a viewer to the card ids whose values that viewer has
	// learned (own deal reveal, peek, spy, own draws).
	Known map[uuid.UUID][]uuid.UUID `json:"known,omitempty"`
}
