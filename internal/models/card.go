// internal/models/card.go
package models

import (
	"github.com/google/uuid"

	"github.com/cabogame/cabo-service/internal/apperrors"
)

// Role is the effect a card grants when drawn and used. It is a pure
// function of the card's point value; see RoleOf.
type Role string

const (
	RoleNone Role = ""
	RolePeak Role = "peak" // reveal one of your own cards to yourself
	RoleSpy  Role = "spy"  // reveal one opponent card to yourself
	RoleSwap Role = "swap" // blind-exchange one own card with an opponent's
)

// Card point values run 0..13 inclusive.
const (
	MinPoints = 0
	MaxPoints = 13
)

// Card is a single playing card. Points decides both score and role.
// New marks a just-drawn card that has not yet been committed to a hand
// slot or discarded; it never persists across turns.
type Card struct {
	ID     uuid.UUID `json:"id"`
	Points int       `json:"points"`
	Role   Role      `json:"role"`
	New    bool      `json:"new"`
}

// RoleOf derives the role for a point value: 7-8 peak, 9-10 spy,
// 11-12 swap, everything else in 0..13 plain. Values outside 0..13 are
// rejected with a validation error.
func RoleOf(points int) (Role, error) {
	if points < MinPoints || points > MaxPoints {
		return RoleNone, apperrors.Validationf("card points %d outside %d..%d", points, MinPoints, MaxPoints)
	}
	switch points {
	case 7, 8:
		return RolePeak, nil
	case 9, 10:
		return RoleSpy, nil
	case 11, 12:
		return RoleSwap, nil
	default:
		return RoleNone, nil
	}
}

// NewCard mints a card with a fresh identity and its derived role.
func NewCard(points int) (Card, error) {
	role, err := RoleOf(points)
	if err != nil {
		return Card{}, err
	}
	id, _ := uuid.NewRandom()
	return Card{ID: id, Points: points, Role: role}, nil
}
