// internal/game/view.go
package game

import (
	"github.com/google/uuid"

	"github.com/cabogame/cabo-service/internal/models"
)

// ViewCard is one card as a specific viewer sees it. Points and Role
// are populated only when Known is true.
type ViewCard struct {
	ID     uuid.UUID   `json:"id"`
	Pos    int         `json:"pos"`
	Known  bool        `json:"known"`
	Points *int        `json:"points,omitempty"`
	Role   models.Role `json:"role,omitempty"`
	New    bool        `json:"new,omitempty"`
}

// ViewPlayer is one seat in a viewer projection.
type ViewPlayer struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	HandSize int        `json:"hand_size"`
	Cards    []ViewCard `json:"cards"`
	Turn     bool       `json:"turn"`
}

// RoomView is the room state projected for a single viewer. Hidden
// values the viewer has not legitimately learned are absent, so a view
// can be sent to a client as-is.
type RoomView struct {
	RoomID     uuid.UUID    `json:"room_id"`
	Phase      string       `json:"phase"`
	TurnID     int          `json:"turn_id"`
	LastLap    bool         `json:"last_lap"`
	CaboCaller *uuid.UUID   `json:"cabo_caller,omitempty"`
	Players    []ViewPlayer `json:"players"`
	DrawSize   int          `json:"draw_size"`
	DiscardTop *ViewCard    `json:"discard_top,omitempty"`
	Drawn      *ViewCard    `json:"drawn,omitempty"`
}

// View projects the latest published snapshot for viewerID. It reads
// the atomic snapshot pointer and never waits on the writer goroutine,
// so concurrent callers always observe a consistent, fully applied
// state.
func (s *Session) View(viewerID uuid.UUID) *RoomView {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil
	}
	return ProjectView(snap, viewerID)
}

// ProjectView derives a viewer's RoomView from an authoritative
// snapshot. Exposed separately so restored snapshots can be projected
// without a live session.
func ProjectView(snap *models.RoomState, viewerID uuid.UUID) *RoomView {
	known := make(map[uuid.UUID]bool)
	for _, id := range snap.Known[viewerID] {
		known[id] = true
	}

	view := &RoomView{
		RoomID:   snap.Room.ID,
		Phase:    snap.Phase,
		TurnID:   snap.TurnID,
		LastLap:  snap.Room.LastLap,
		DrawSize: len(snap.DrawPile),
	}
	if snap.CaboCaller != uuid.Nil {
		caller := snap.CaboCaller
		view.CaboCaller = &caller
	}

	finished := snap.Phase == string(PhaseFinished)
	for _, p := range snap.Players {
		vp := ViewPlayer{
			ID:       p.ID,
			Name:     p.Name,
			HandSize: len(p.Cards),
			Turn:     p.Turn,
		}
		for pos, c := range p.Cards {
			vp.Cards = append(vp.Cards, projectCard(c, pos, known[c.ID] || finished))
		}
		view.Players = append(view.Players, vp)
	}

	// The top of the discard pile is public.
	if n := len(snap.DiscardPile); n > 0 {
		top := projectCard(snap.DiscardPile[n-1], n-1, true)
		view.DiscardTop = &top
	}
	if snap.Drawn != nil {
		drawn := projectCard(*snap.Drawn, 0, known[snap.Drawn.ID])
		view.Drawn = &drawn
	}
	return view
}

func projectCard(c models.Card, pos int, show bool) ViewCard {
	vc := ViewCard{ID: c.ID, Pos: pos, New: c.New}
	if show {
		points := c.Points
		vc.Known = true
		vc.Points = &points
		vc.Role = c.Role
	}
	return vc
}
