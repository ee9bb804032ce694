// internal/models/action.go
package models

import (
	"github.com/google/uuid"

	"github.com/cabogame/cabo-service/internal/apperrors"
)

// ActionType discriminates the GameActionMessage union.
type ActionType string

const (
	ActionTakeCard    ActionType = "take_card"
	ActionPass        ActionType = "pass"
	ActionCabo        ActionType = "cabo"
	ActionChangeCards ActionType = "change_cards"
	ActionUseCardPeak ActionType = "use_card_peak"
	ActionUseCardSpy  ActionType = "use_card_spy"
	ActionUseCardSwap ActionType = "use_card_swap"
)

// GameActionMessage is the sole input contract to the turn state
// machine. Which payload fields matter depends on Action:
//
//	take_card, pass, cabo: no payload
//	use_card_peak: CardPos (own hand)
//	use_card_spy: TargetUser + TargetPos
//	use_card_swap: CardPos (own) + TargetUser + TargetPos
//	change_cards: Positions (own hand)
type GameActionMessage struct {
	Action ActionType `json:"action"`
	UserID uuid.UUID  `json:"user"`
	RoomID uuid.UUID  `json:"room"`

	CardPos    *int      `json:"card_pos,omitempty"`
	TargetUser uuid.UUID `json:"target_user,omitempty"`
	TargetPos  *int      `json:"target_pos,omitempty"`
	Positions  []int     `json:"positions,omitempty"`
}

// RoleForAction maps a use_card_* action to the role it requires, or
// RoleNone for every other action.
func RoleForAction(a ActionType) Role {
	switch a {
	case ActionUseCardPeak:
		return RolePeak
	case ActionUseCardSpy:
		return RoleSpy
	case ActionUseCardSwap:
		return RoleSwap
	default:
		return RoleNone
	}
}

// Validate checks shape-level well-formedness: known action tag, ids
// present, and the payload fields the action requires. Phase and
// ownership checks belong to the state machine, not here.
func (m *GameActionMessage) Validate() error {
	if m.UserID == uuid.Nil {
		return apperrors.Validationf("action %q missing user id", m.Action)
	}
	if m.RoomID == uuid.Nil {
		return apperrors.Validationf("action %q missing room id", m.Action)
	}
	switch m.Action {
	case ActionTakeCard, ActionPass, ActionCabo:
		return nil
	case ActionUseCardPeak:
		if m.CardPos == nil {
			return apperrors.Validationf("use_card_peak requires card_pos")
		}
	case ActionUseCardSpy:
		if m.TargetUser == uuid.Nil || m.TargetPos == nil {
			return apperrors.Validationf("use_card_spy requires target_user and target_pos")
		}
	case ActionUseCardSwap:
		if m.CardPos == nil || m.TargetUser == uuid.Nil || m.TargetPos == nil {
			return apperrors.Validationf("use_card_swap requires card_pos, target_user and target_pos")
		}
	case ActionChangeCards:
		if len(m.Positions) == 0 {
			return apperrors.Validationf("change_cards requires at least one position")
		}
	default:
		return apperrors.Validationf("unknown action %q", m.Action)
	}
	return nil
}
