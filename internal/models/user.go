// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registry-level identity. Room is uuid.Nil while the user is
// not a member of any room; otherwise it always references a live room.
type User struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Room     uuid.UUID `json:"room,omitempty"`
	IsAdmin  bool      `json:"is_admin"`
	Lang     string    `json:"lang"`
	LastSeen time.Time `json:"last_seen"`
}

// GameUser is a User plus in-round game state. Cards keeps a stable
// order: position is the only way an action can address a hand slot.
// Points caches the hand total; Turn is true for at most one user per
// room at any time.
type GameUser struct {
	User
	Cards  []Card `json:"cards"`
	Points int    `json:"points"`
	Turn   bool   `json:"turn"`
}

// HandTotal recomputes the point sum of the held cards.
func (u *GameUser) HandTotal() int {
	sum := 0
	for _, c := range u.Cards {
		sum += c.Points
	}
	return sum
}
