// internal/game/deck_test.go
package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/models"
)

func TestNewDeckComposition(t *testing.T) {
	for _, tc := range []struct {
		players int
		copies  int
	}{
		{2, 4}, {4, 4}, {5, 8}, {8, 8},
	} {
		deck, err := NewDeck(tc.players)
		require.NoError(t, err)
		assert.Len(t, deck, tc.copies*14, "players=%d", tc.players)

		perValue := make(map[int]int)
		roles := make(map[models.Role]int)
		ids := make(map[string]bool)
		for _, c := range deck {
			perValue[c.Points]++
			roles[c.Role]++
			ids[c.ID.String()] = true
		}
		for points := 0; points <= 13; points++ {
			assert.Equal(t, tc.copies, perValue[points], "players=%d points=%d", tc.players, points)
		}
		assert.Equal(t, 2*tc.copies, roles[models.RolePeak])
		assert.Equal(t, 2*tc.copies, roles[models.RoleSpy])
		assert.Equal(t, 2*tc.copies, roles[models.RoleSwap])
		assert.Len(t, ids, len(deck), "card ids must be unique")
	}
}

func TestNewDeckPlayerBounds(t *testing.T) {
	for _, n := range []int{0, 1, 9} {
		_, err := NewDeck(n)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "players=%d", n)
	}
}

func TestShuffleConserves(t *testing.T) {
	deck, err := NewDeck(3)
	require.NoError(t, err)

	before := make(map[string]bool, len(deck))
	for _, c := range deck {
		before[c.ID.String()] = true
	}
	Shuffle(deck, rand.New(rand.NewSource(1)))
	for _, c := range deck {
		assert.True(t, before[c.ID.String()])
	}
	assert.Len(t, deck, 56)
}

func TestDeal(t *testing.T) {
	deck, err := NewDeck(4)
	require.NoError(t, err)

	hands, rest := Deal(deck, 4)
	require.Len(t, hands, 4)
	total := len(rest)
	for _, hand := range hands {
		assert.Len(t, hand, StartingHandSize)
		total += len(hand)
	}
	assert.Equal(t, len(deck), total)
}
