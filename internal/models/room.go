// internal/models/room.go
package models

import "github.com/google/uuid"

// Room is the registry-level record for one game session. Users keeps
// join order, which is also turn order. Turn indexes into Users.
// Waiting is the lobby phase before any deck is dealt; LastLap is the
// final rotation after a cabo call. The two are never both true.
type Room struct {
	ID      uuid.UUID `json:"id"`
	Users   []User    `json:"users"`
	Turn    int       `json:"turn"`
	LastLap bool      `json:"last_lap"`
	Waiting bool      `json:"waiting"`
}

// UserCount returns the number of members.
func (r *Room) UserCount() int { return len(r.Users) }

// IndexOf returns the seat index of the given user, or -1.
func (r *Room) IndexOf(userID uuid.UUID) int {
	for i, u := range r.Users {
		if u.ID == userID {
			return i
		}
	}
	return -1
}
