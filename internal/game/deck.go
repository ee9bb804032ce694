// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/models"
)

// StartingHandSize is how many cards each player is dealt.
const StartingHandSize = 4

// Player count bounds for a room.
const (
	MinPlayers = 2
	MaxPlayers = 8
)

// copiesFor returns how many copies of each point value the deck
// carries: one base set of four covers up to four players, a double
// set covers five through eight.
func copiesFor(playerCount int) int {
	if playerCount > 4 {
		return 8
	}
	return 4
}

// NewDeck builds the full multiset of cards for the given player count.
// The composition is fixed for the room's lifetime; the conservation
// invariant (draw + discard + hands + in-flight card == len(deck))
// holds against it.
func NewDeck(playerCount int) ([]models.Card, error) {
	if playerCount < MinPlayers || playerCount > MaxPlayers {
		return nil, apperrors.Validationf("player count %d outside %d..%d", playerCount, MinPlayers, MaxPlayers)
	}
	copies := copiesFor(playerCount)
	deck := make([]models.Card, 0, copies*(models.MaxPoints+1))
	for points := models.MinPoints; points <= models.MaxPoints; points++ {
		for i := 0; i < copies; i++ {
			card, err := models.NewCard(points)
			if err != nil {
				return nil, err
			}
			deck = append(deck, card)
		}
	}
	return deck, nil
}

// Shuffle permutes cards in place.
func Shuffle(cards []models.Card, rng *rand.Rand) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// Deal hands out StartingHandSize cards to each of n players in seat
// order and returns the hands plus the remaining draw pile.
func Deal(deck []models.Card, n int) ([][]models.Card, []models.Card) {
	hands := make([][]models.Card, n)
	idx := 0
	for seat := 0; seat < n; seat++ {
		hands[seat] = make([]models.Card, 0, StartingHandSize)
		for i := 0; i < StartingHandSize; i++ {
			hands[seat] = append(hands[seat], deck[idx])
			idx++
		}
	}
	rest := make([]models.Card, len(deck)-idx)
	copy(rest, deck[idx:])
	return hands, rest
}
