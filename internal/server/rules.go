// Package server is a development game server speaking the Black Vienna
// event vocabulary, so the client is playable locally. The rules here are
// good enough for real games between people; any conforming production
// server can replace it.
package server

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"blackvienna/pkg/protocol"
)

var ErrNotYourTurn = errors.New("not your turn")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrBadTarget = errors.New("cannot question that player")
var ErrBadCardIndex = errors.New("no face-up card at that index")
var ErrBadDoubleCard = errors.New("no such zero-coin card")
var ErrDoubleLocked = errors.New("double investigation not unlocked yet")
var ErrBadGuess = errors.New("guess must name exactly 3 suspects")
var ErrPlayerEliminated = errors.New("eliminated players cannot act")
var ErrMatchOver = errors.New("game already over")

const (
	minPlayers      = 3
	maxPlayers      = 8
	startingCoins   = 40
	deckCount       = 3
	deckSize        = 12
	doubleThreshold = 5
)

// cardCombinations are the 36 three-suspect investigation cards.
var cardCombinations = [][]string{
	{"A", "C", "L"}, {"A", "J", "M"}, {"A", "O", "S"},
	{"A", "P", "Q"}, {"B", "C", "Y"}, {"B", "H", "V"},
	{"B", "L", "M"}, {"B", "Q", "T"}, {"C", "F", "I"},
	{"C", "S", "X"}, {"D", "H", "R"}, {"D", "J", "Z"},
	{"D", "L", "S"}, {"D", "V", "Y"}, {"E", "G", "W"},
	{"E", "N", "Q"}, {"E", "Ω", "R"}, {"E", "U", "V"},
	{"F", "Ω", "Y"}, {"F", "R", "X"}, {"F", "S", "Z"},
	{"G", "K", "O"}, {"G", "P", "X"}, {"H", "N", "Ω"},
	{"H", "U", "Z"}, {"I", "Ω", "W"}, {"I", "P", "R"},
	{"I", "T", "Z"}, {"J", "M", "O"}, {"J", "Q", "X"},
	{"J", "T", "Y"}, {"K", "M", "U"}, {"K", "N", "T"},
	{"K", "P", "W"}, {"L", "N", "V"}, {"O", "U", "W"},
}

type matchPlayer struct {
	ID         string
	Name       string
	Cards      []string
	Eliminated bool
	Winner     bool
}

type zeroCoinCard struct {
	Card       protocol.Card
	UsedBy     string
	Questioned string
}

// match is one dealt game. Mutated only by the owning Game goroutine.
type match struct {
	Players       []*matchPlayer
	Hidden        []string
	Decks         [deckCount][]protocol.Card
	ZeroCoin      []zeroCoinCard
	CentralCoins  int
	CoinsUsed     int
	Round         int
	Current       int
	History       []protocol.InvestigationRecord
	Total         int
	DoubleEnabled bool
	Over          bool
}

type seat struct {
	ID   string
	Name string
}

// deal sets up a match: 3 hidden suspects, the rest split evenly between
// players, 36 investigation cards shuffled into 3 decks with the top of each
// face up. Suspects beyond an even split are left out of play, as in the
// board game.
func deal(seats []seat, rng *rand.Rand) *match {
	suspects := slices.Clone(protocol.Suspects)
	rng.Shuffle(len(suspects), func(i, j int) { suspects[i], suspects[j] = suspects[j], suspects[i] })

	m := &match{
		Hidden:       slices.Clone(suspects[:3]),
		CentralCoins: startingCoins,
	}
	slices.Sort(m.Hidden)

	remaining := suspects[3:]
	perPlayer := len(remaining) / len(seats)
	for i, s := range seats {
		cards := slices.Clone(remaining[i*perPlayer : (i+1)*perPlayer])
		slices.Sort(cards)
		m.Players = append(m.Players, &matchPlayer{ID: s.ID, Name: s.Name, Cards: cards})
	}

	cards := make([]protocol.Card, len(cardCombinations))
	for i, combo := range cardCombinations {
		cards[i] = protocol.Card{ID: fmt.Sprintf("card_%d", i), Letters: slices.Clone(combo)}
	}
	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	for d := 0; d < deckCount; d++ {
		m.Decks[d] = cards[d*deckSize : (d+1)*deckSize]
	}
	return m
}

func (m *match) player(id string) *matchPlayer {
	for _, p := range m.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *match) investigator() *matchPlayer {
	return m.Players[m.Current]
}

// faceUp returns one entry per deck, deck order preserved so card indexes
// stay stable for the whole match. An exhausted deck keeps its slot as a
// zero card with no letters, which clients must not offer for selection.
func (m *match) faceUp() []protocol.Card {
	out := make([]protocol.Card, 0, deckCount)
	for d := 0; d < deckCount; d++ {
		if len(m.Decks[d]) > 0 {
			out = append(out, m.Decks[d][0])
		} else {
			out = append(out, protocol.Card{})
		}
	}
	return out
}

func overlap(letters, hand []string) int {
	n := 0
	for _, l := range letters {
		if slices.Contains(hand, l) {
			n++
		}
	}
	return n
}

// investigate resolves one question, and optionally a chained double
// investigation on a zero-coin card. Returns the outcomes for the
// investigation_result broadcast.
func (m *match) investigate(investigatorID, questionedID string, cardIndex int, doubleCardID string) (protocol.InvestigationOutcome, *protocol.DoubleOutcome, error) {
	var none protocol.InvestigationOutcome
	if m.Over {
		return none, nil, ErrMatchOver
	}
	inv := m.investigator()
	if inv.ID != investigatorID {
		return none, nil, ErrNotYourTurn
	}
	target := m.player(questionedID)
	if target == nil {
		return none, nil, ErrUnknownPlayer
	}
	if target.ID == inv.ID || target.Eliminated {
		return none, nil, ErrBadTarget
	}
	if cardIndex < 0 || cardIndex >= deckCount || len(m.Decks[cardIndex]) == 0 {
		return none, nil, ErrBadCardIndex
	}

	// Validate the double card before touching any state, so a bad request
	// leaves the match untouched.
	var doubleIdx = -1
	if doubleCardID != "" {
		if !m.DoubleEnabled {
			return none, nil, ErrDoubleLocked
		}
		for i, zc := range m.ZeroCoin {
			if zc.Card.ID == doubleCardID {
				doubleIdx = i
				break
			}
		}
		if doubleIdx == -1 {
			return none, nil, ErrBadDoubleCard
		}
	}

	card := m.Decks[cardIndex][0]
	m.Decks[cardIndex] = m.Decks[cardIndex][1:]
	outcome := m.resolve(card, inv, target, false)

	var double *protocol.DoubleOutcome
	if doubleIdx != -1 {
		zc := m.ZeroCoin[doubleIdx]
		m.ZeroCoin = append(m.ZeroCoin[:doubleIdx], m.ZeroCoin[doubleIdx+1:]...)
		d := m.resolve(zc.Card, inv, target, true)
		double = &protocol.DoubleOutcome{CardLetters: d.CardLetters, CoinsTaken: d.CoinsTaken}
	}

	m.advanceTurn()
	if m.CentralCoins <= 0 || m.decksEmpty() {
		m.Over = true
	}
	return outcome, double, nil
}

func (m *match) resolve(card protocol.Card, inv, target *matchPlayer, isDouble bool) protocol.InvestigationOutcome {
	coins := overlap(card.Letters, target.Cards)
	if coins > m.CentralCoins {
		coins = m.CentralCoins
	}
	m.CentralCoins -= coins
	m.CoinsUsed += coins
	m.Total++
	if m.Total >= doubleThreshold {
		m.DoubleEnabled = true
	}
	if coins == 0 && !isDouble {
		m.ZeroCoin = append(m.ZeroCoin, zeroCoinCard{Card: card, UsedBy: inv.Name, Questioned: target.Name})
	}
	m.History = append(m.History, protocol.InvestigationRecord{
		Round:            m.Round,
		InvestigatorName: inv.Name,
		QuestionedName:   target.Name,
		Letters:          card.Letters,
		CoinsTaken:       coins,
		IsDouble:         isDouble,
	})
	return protocol.InvestigationOutcome{
		InvestigatorID:   inv.ID,
		InvestigatorName: inv.Name,
		QuestionedID:     target.ID,
		QuestionedName:   target.Name,
		CardLetters:      card.Letters,
		CoinsTaken:       coins,
	}
}

func (m *match) decksEmpty() bool {
	for d := 0; d < deckCount; d++ {
		if len(m.Decks[d]) > 0 {
			return false
		}
	}
	return true
}

// advanceTurn moves to the next non-eliminated player, bumping the round
// when the turn wraps around the table.
func (m *match) advanceTurn() {
	for i := 0; i < len(m.Players); i++ {
		next := (m.Current + 1) % len(m.Players)
		wrapped := next <= m.Current
		m.Current = next
		if wrapped {
			m.Round++
		}
		if !m.Players[m.Current].Eliminated {
			return
		}
	}
}

// makeGuess resolves a final guess: a correct one wins, a wrong one
// eliminates. Reports whether every player is now out.
func (m *match) makeGuess(playerID string, suspects []string) (correct bool, allOut bool, err error) {
	if m.Over {
		return false, false, ErrMatchOver
	}
	p := m.player(playerID)
	if p == nil {
		return false, false, ErrUnknownPlayer
	}
	if p.Eliminated {
		return false, false, ErrPlayerEliminated
	}
	if len(suspects) != 3 {
		return false, false, ErrBadGuess
	}
	for _, s := range suspects {
		if !slices.Contains(protocol.Suspects, s) {
			return false, false, ErrBadGuess
		}
	}

	guess := slices.Clone(suspects)
	slices.Sort(guess)
	if slices.Equal(guess, m.Hidden) {
		p.Winner = true
		m.Over = true
		return true, false, nil
	}

	p.Eliminated = true
	allOut = true
	for _, other := range m.Players {
		if !other.Eliminated {
			allOut = false
			break
		}
	}
	if allOut {
		m.Over = true
	} else if m.investigator().Eliminated {
		m.advanceTurn()
	}
	return false, allOut, nil
}

// view builds the personalized snapshot for one player: everyone's public
// standing, but only the viewer's own suspect cards.
func (m *match) view(gameID, playerID string) protocol.GameState {
	players := make([]protocol.Player, len(m.Players))
	for i, p := range m.Players {
		status := protocol.StatusActive
		if p.Eliminated {
			status = protocol.StatusEliminated
		}
		if p.Winner {
			status = protocol.StatusWinner
		}
		players[i] = protocol.Player{ID: p.ID, Name: p.Name, Status: status, CardCount: len(p.Cards)}
	}

	var myCards []string
	if p := m.player(playerID); p != nil {
		myCards = slices.Clone(p.Cards)
	}

	zero := make([]protocol.ZeroCoinCard, len(m.ZeroCoin))
	for i, zc := range m.ZeroCoin {
		zero[i] = protocol.ZeroCoinCard{
			ID:         zc.Card.ID,
			Letters:    zc.Card.Letters,
			UsedBy:     zc.UsedBy,
			Questioned: zc.Questioned,
		}
	}

	inv := m.investigator()
	var canQuestion []protocol.LobbyPlayer
	for _, p := range m.Players {
		if p.ID != inv.ID && !p.Eliminated {
			canQuestion = append(canQuestion, protocol.LobbyPlayer{ID: p.ID, Name: p.Name})
		}
	}

	return protocol.GameState{
		GameID:                     gameID,
		Players:                    players,
		CurrentInvestigator:        m.Current,
		CentralCoins:               m.CentralCoins,
		CoinsUsed:                  m.CoinsUsed,
		RoundCount:                 m.Round,
		MyCards:                    myCards,
		FaceUpCards:                m.faceUp(),
		ZeroCoinCards:              zero,
		CanQuestion:                canQuestion,
		InvestigationHistory:       slices.Clone(m.History),
		DoubleInvestigationEnabled: m.DoubleEnabled,
		TotalInvestigations:        m.Total,
	}
}
