// Package session holds the client's in-memory view of one game session:
// pure data plus validated phase transitions. Snapshot events replace whole
// sub-records; nothing in here merges deltas.
package session

import (
	"errors"
	"slices"

	"blackvienna/pkg/protocol"
)

var ErrWrongPhase = errors.New("operation not valid in current phase")
var ErrIdentitySet = errors.New("session identity already set")
var ErrBadSolution = errors.New("solution must have exactly 3 suspects")

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLobby     Phase = "lobby"
	PhaseActive    Phase = "active"
	PhaseConcluded Phase = "concluded"
)

type PlayerStatus string

const (
	StatusActive     PlayerStatus = "active"
	StatusEliminated PlayerStatus = "eliminated"
	StatusWinner     PlayerStatus = "winner"
)

// IsSuspect reports whether s is one of the 27 suspect symbols.
func IsSuspect(s string) bool {
	return slices.Contains(protocol.Suspects, s)
}

type LobbyPlayer struct {
	ID   string
	Name string
}

type Lobby struct {
	Players    []LobbyPlayer
	HostID     string
	MinPlayers int
	MaxPlayers int
	CanStart   bool
}

type Player struct {
	ID        string
	Name      string
	Status    PlayerStatus
	CardCount int
}

type Card struct {
	ID      string
	Letters []string
}

type ZeroCoinCard struct {
	ID         string
	Letters    []string
	UsedBy     string
	Questioned string
}

type InvestigationRecord struct {
	Round            int
	InvestigatorName string
	QuestionedName   string
	Letters          []string
	CoinsTaken       int
	IsDouble         bool
}

// Active is the in-game snapshot. CanQuestion is the server-computed list of
// legal targets for the current turn; the client never derives eligibility
// itself.
type Active struct {
	Players                    []Player
	CurrentInvestigator        int
	CentralCoins               int
	CoinsUsed                  int
	RoundCount                 int
	MyCards                    []string
	FaceUpCards                []Card
	ZeroCoinCards              []ZeroCoinCard
	CanQuestion                []LobbyPlayer
	History                    []InvestigationRecord
	DoubleInvestigationEnabled bool
	TotalInvestigations        int
}

type ConclusionKind string

const (
	ConclusionWon   ConclusionKind = "won"
	ConclusionEnded ConclusionKind = "ended"
)

type Conclusion struct {
	Kind       ConclusionKind
	WinnerName string
	Reason     string
	Solution   []string
}

// Model is the whole session view. Phase moves Idle -> Lobby -> Active ->
// Concluded; the only way back is Reset, which is teardown rather than a
// game transition.
type Model struct {
	Phase         Phase
	SessionID     string
	LocalPlayerID string
	IsHost        bool
	Lobby         *Lobby
	Active        *Active
	Conclusion    *Conclusion
}

func New() *Model {
	return &Model{Phase: PhaseIdle}
}

// BeginSession records the identity the server assigned on create/join and
// moves Idle -> Lobby. Identity is immutable for the session's lifetime.
func (m *Model) BeginSession(sessionID, playerID string, isHost bool) error {
	if m.Phase != PhaseIdle {
		return ErrWrongPhase
	}
	if m.SessionID != "" || m.LocalPlayerID != "" {
		return ErrIdentitySet
	}
	m.SessionID = sessionID
	m.LocalPlayerID = playerID
	m.IsHost = isHost
	m.Phase = PhaseLobby
	m.Lobby = &Lobby{}
	return nil
}

// ReplaceLobby swaps in a full lobby snapshot.
func (m *Model) ReplaceLobby(l Lobby) error {
	if m.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	m.Lobby = &l
	return nil
}

// Start moves Lobby -> Active with the initial game snapshot.
func (m *Model) Start(a Active) error {
	if m.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	m.Lobby = nil
	m.Active = &a
	m.Phase = PhaseActive
	return nil
}

// ReplaceActive swaps in a full game snapshot. Applying the same snapshot
// twice is a no-op by construction.
func (m *Model) ReplaceActive(a Active) error {
	if m.Phase != PhaseActive {
		return ErrWrongPhase
	}
	m.Active = &a
	return nil
}

// Conclude moves Active -> Concluded and reveals the solution.
func (m *Model) Conclude(c Conclusion) error {
	if m.Phase != PhaseActive {
		return ErrWrongPhase
	}
	if len(c.Solution) != 3 {
		return ErrBadSolution
	}
	m.Conclusion = &c
	m.Phase = PhaseConcluded
	return nil
}

// Reset tears the session down to an empty Idle model.
func (m *Model) Reset() {
	*m = Model{Phase: PhaseIdle}
}

// CurrentInvestigator returns the player whose turn it is.
func (m *Model) CurrentInvestigator() (Player, bool) {
	if m.Active == nil {
		return Player{}, false
	}
	i := m.Active.CurrentInvestigator
	if i < 0 || i >= len(m.Active.Players) {
		return Player{}, false
	}
	return m.Active.Players[i], true
}

// IsMyTurn reports whether the local player is the current investigator.
func (m *Model) IsMyTurn() bool {
	if m.Phase != PhaseActive {
		return false
	}
	p, ok := m.CurrentInvestigator()
	return ok && p.ID == m.LocalPlayerID
}

// LocalPlayer looks the local player up in the active roster.
func (m *Model) LocalPlayer() (Player, bool) {
	if m.Active == nil {
		return Player{}, false
	}
	for _, p := range m.Active.Players {
		if p.ID == m.LocalPlayerID {
			return p, true
		}
	}
	return Player{}, false
}

// Clone returns a deep copy safe to hand across goroutines.
func (m *Model) Clone() Model {
	out := *m
	if m.Lobby != nil {
		l := *m.Lobby
		l.Players = slices.Clone(m.Lobby.Players)
		out.Lobby = &l
	}
	if m.Active != nil {
		a := *m.Active
		a.Players = slices.Clone(m.Active.Players)
		a.MyCards = slices.Clone(m.Active.MyCards)
		a.FaceUpCards = cloneCards(m.Active.FaceUpCards)
		a.ZeroCoinCards = cloneZeroCoin(m.Active.ZeroCoinCards)
		a.CanQuestion = slices.Clone(m.Active.CanQuestion)
		a.History = cloneHistory(m.Active.History)
		out.Active = &a
	}
	if m.Conclusion != nil {
		c := *m.Conclusion
		c.Solution = slices.Clone(m.Conclusion.Solution)
		out.Conclusion = &c
	}
	return out
}

func cloneCards(in []Card) []Card {
	out := slices.Clone(in)
	for i := range out {
		out[i].Letters = slices.Clone(out[i].Letters)
	}
	return out
}

func cloneZeroCoin(in []ZeroCoinCard) []ZeroCoinCard {
	out := slices.Clone(in)
	for i := range out {
		out[i].Letters = slices.Clone(out[i].Letters)
	}
	return out
}

func cloneHistory(in []InvestigationRecord) []InvestigationRecord {
	out := slices.Clone(in)
	for i := range out {
		out[i].Letters = slices.Clone(out[i].Letters)
	}
	return out
}
