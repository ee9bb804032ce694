// internal/game/scoring.go
package game

import (
	"github.com/google/uuid"

	"github.com/cabogame/cabo-service/internal/models"
)

// Result is the outcome of one finished round. Hands are revealed in
// full once scoring has run.
type Result struct {
	Scores         map[uuid.UUID]int           `json:"scores"`
	Winners        []uuid.UUID                 `json:"winners"`
	Caller         uuid.UUID                   `json:"caller,omitempty"`
	PenaltyApplied bool                        `json:"penalty_applied"`
	Hands          map[uuid.UUID][]models.Card `json:"hands"`
}

// scoreRound computes totals and applies the cabo policy:
//
//   - the caller wins only with the strictly lowest total;
//   - otherwise the caller's total is doubled and the lowest-scoring
//     non-callers win, sharing on a tie;
//   - with no caller (round ended by exhaustion) the lowest total wins,
//     ties shared.
//
// Runs exactly once per room, when the session reaches Finished.
func scoreRound(players []*playerState, caller uuid.UUID) Result {
	res := Result{
		Scores: make(map[uuid.UUID]int),
		Caller: caller,
		Hands:  make(map[uuid.UUID][]models.Card),
	}

	for _, p := range players {
		if p.removed {
			continue
		}
		total := 0
		for _, c := range p.hand {
			total += c.Points
		}
		res.Scores[p.user.ID] = total
		hand := make([]models.Card, len(p.hand))
		copy(hand, p.hand)
		res.Hands[p.user.ID] = hand
	}
	if len(res.Scores) == 0 {
		return res
	}

	lowest := -1
	for _, score := range res.Scores {
		if lowest < 0 || score < lowest {
			lowest = score
		}
	}

	callerScore, callerPlayed := res.Scores[caller]
	if caller != uuid.Nil && callerPlayed {
		strictly := callerScore == lowest
		for id, score := range res.Scores {
			if id != caller && score <= callerScore {
				strictly = false
				break
			}
		}
		if strictly {
			res.Winners = []uuid.UUID{caller}
			return res
		}
		// Caller missed: double their total and score without them.
		res.PenaltyApplied = true
		res.Scores[caller] = callerScore * 2
		lowest = -1
		for id, score := range res.Scores {
			if id == caller {
				continue
			}
			if lowest < 0 || score < lowest {
				lowest = score
			}
		}
		for _, p := range players {
			id := p.user.ID
			if p.removed || id == caller {
				continue
			}
			if res.Scores[id] == lowest {
				res.Winners = append(res.Winners, id)
			}
		}
		return res
	}

	// No caller: lowest total wins, shared on ties. Winners in seat
	// order keeps the result deterministic.
	for _, p := range players {
		if p.removed {
			continue
		}
		if res.Scores[p.user.ID] == lowest {
			res.Winners = append(res.Winners, p.user.ID)
		}
	}
	return res
}
