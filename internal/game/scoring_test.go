// internal/game/scoring_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabogame/cabo-service/internal/models"
)

func scoringPlayer(points ...int) *playerState {
	hand := make([]models.Card, len(points))
	for i, p := range points {
		hand[i] = models.Card{ID: uuid.New(), Points: p}
	}
	return &playerState{user: models.User{ID: uuid.New()}, hand: hand}
}

func TestScoreRoundCallerWins(t *testing.T) {
	a := scoringPlayer(1, 2)      // 3
	b := scoringPlayer(5, 5)      // 10
	c := scoringPlayer(0, 4, 13)  // 17
	res := scoreRound([]*playerState{a, b, c}, a.user.ID)

	assert.False(t, res.PenaltyApplied)
	assert.Equal(t, []uuid.UUID{a.user.ID}, res.Winners)
	assert.Equal(t, 3, res.Scores[a.user.ID])
	assert.Equal(t, 10, res.Scores[b.user.ID])
}

func TestScoreRoundCallerTieIsPenalty(t *testing.T) {
	a := scoringPlayer(2, 3) // 5, caller
	b := scoringPlayer(1, 4) // 5 ties the caller
	c := scoringPlayer(9)    // 9
	res := scoreRound([]*playerState{a, b, c}, a.user.ID)

	assert.True(t, res.PenaltyApplied)
	assert.Equal(t, 10, res.Scores[a.user.ID], "caller total doubles on a missed call")
	assert.Equal(t, []uuid.UUID{b.user.ID}, res.Winners)
}

func TestScoreRoundCallerLosesSharedWinners(t *testing.T) {
	a := scoringPlayer(12) // caller, not lowest
	b := scoringPlayer(4)  // 4
	c := scoringPlayer(4)  // 4, shares the win
	res := scoreRound([]*playerState{a, b, c}, a.user.ID)

	assert.True(t, res.PenaltyApplied)
	assert.Equal(t, 24, res.Scores[a.user.ID])
	assert.Equal(t, []uuid.UUID{b.user.ID, c.user.ID}, res.Winners, "ties share in seat order")
}

func TestScoreRoundNoCaller(t *testing.T) {
	a := scoringPlayer(6)
	b := scoringPlayer(2)
	c := scoringPlayer(2)
	res := scoreRound([]*playerState{a, b, c}, uuid.Nil)

	assert.False(t, res.PenaltyApplied)
	assert.Equal(t, []uuid.UUID{b.user.ID, c.user.ID}, res.Winners)
	assert.Equal(t, uuid.Nil, res.Caller)
}

func TestScoreRoundHandsRevealed(t *testing.T) {
	a := scoringPlayer(7, 11)
	b := scoringPlayer(0)
	res := scoreRound([]*playerState{a, b}, uuid.Nil)

	require.Len(t, res.Hands[a.user.ID], 2)
	assert.Equal(t, 7, res.Hands[a.user.ID][0].Points)
	require.Len(t, res.Hands[b.user.ID], 1)
}
