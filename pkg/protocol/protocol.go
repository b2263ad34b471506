// Package protocol defines the wire vocabulary between the Black Vienna
// client and a game server: one JSON envelope per message, a named type plus
// a payload object. Field names are snake_case on the wire.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the outer frame for every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Server -> client event names.
const (
	EvtGameCreated         = "game_created"
	EvtGameJoined          = "game_joined"
	EvtLobbyUpdate         = "lobby_update"
	EvtGameStarted         = "game_started"
	EvtGameStateUpdate     = "game_state_update"
	EvtInvestigationResult = "investigation_result"
	EvtPlayerEliminated    = "player_eliminated"
	EvtPlayerDisconnected  = "player_disconnected"
	EvtGameWon             = "game_won"
	EvtGameEnded           = "game_ended"
	EvtError               = "error"
)

// Suspects is the full 27-symbol alphabet: A-Z plus Ω.
var Suspects = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z", "Ω",
}

// Client -> server command names.
const (
	CmdCreateGame  = "create_game"
	CmdJoinGame    = "join_game"
	CmdStartGame   = "start_game"
	CmdLeaveGame   = "leave_game"
	CmdInvestigate = "investigate"
	CmdMakeGuess   = "make_guess"
)

// GameCreated / GameJoined carry the identity the server assigned us.
type GameCreated struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
	IsHost   bool   `json:"is_host"`
}

type LobbyPlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LobbyUpdate is a full lobby snapshot, never a delta.
type LobbyUpdate struct {
	GameID     string        `json:"game_id,omitempty"`
	Players    []LobbyPlayer `json:"players"`
	HostID     string        `json:"host_id"`
	MinPlayers int           `json:"min_players"`
	MaxPlayers int           `json:"max_players"`
	CanStart   bool          `json:"can_start"`
}

// Player statuses inside a GameState snapshot.
const (
	StatusActive     = "active"
	StatusEliminated = "eliminated"
	StatusWinner     = "winner"
)

type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CardCount int    `json:"card_count"`
}

type Card struct {
	ID      string   `json:"id"`
	Letters []string `json:"letters"`
}

// ZeroCoinCard is an investigation card that produced no coins; it records
// who spent it and is reusable for a double investigation.
type ZeroCoinCard struct {
	ID         string   `json:"id"`
	Letters    []string `json:"letters"`
	UsedBy     string   `json:"used_by"`
	Questioned string   `json:"questioned"`
}

type InvestigationRecord struct {
	Round            int      `json:"round"`
	InvestigatorName string   `json:"investigator_name"`
	QuestionedName   string   `json:"questioned_name"`
	Letters          []string `json:"letters"`
	CoinsTaken       int      `json:"coins_taken"`
	IsDouble         bool     `json:"is_double"`
}

// GameState is the full personalized active-game snapshot. The server sends
// it whole on game_started and game_state_update; the client replaces its
// copy wholesale rather than merging.
type GameState struct {
	GameID                     string                `json:"game_id,omitempty"`
	Players                    []Player              `json:"players"`
	CurrentInvestigator        int                   `json:"current_investigator"`
	CentralCoins               int                   `json:"central_coins"`
	CoinsUsed                  int                   `json:"coins_used"`
	RoundCount                 int                   `json:"round_count"`
	MyCards                    []string              `json:"my_cards"`
	FaceUpCards                []Card                `json:"face_up_cards"`
	ZeroCoinCards              []ZeroCoinCard        `json:"zero_coin_cards"`
	CanQuestion                []LobbyPlayer         `json:"can_question"`
	InvestigationHistory       []InvestigationRecord `json:"investigation_history"`
	DoubleInvestigationEnabled bool                  `json:"double_investigation_enabled"`
	TotalInvestigations        int                   `json:"total_investigations"`
}

type InvestigationOutcome struct {
	InvestigatorID   string   `json:"investigator_id,omitempty"`
	InvestigatorName string   `json:"investigator_name"`
	QuestionedID     string   `json:"questioned_player_id,omitempty"`
	QuestionedName   string   `json:"questioned_player_name"`
	CardLetters      []string `json:"card_letters"`
	CoinsTaken       int      `json:"coins_taken"`
}

type DoubleOutcome struct {
	CardLetters []string `json:"card_letters"`
	CoinsTaken  int      `json:"coins_taken"`
}

type InvestigationResult struct {
	GameID       string               `json:"game_id,omitempty"`
	Result       InvestigationOutcome `json:"result"`
	DoubleResult *DoubleOutcome       `json:"double_result,omitempty"`
}

type PlayerEliminated struct {
	GameID     string   `json:"game_id,omitempty"`
	PlayerID   string   `json:"player_id,omitempty"`
	PlayerName string   `json:"player_name"`
	WrongGuess []string `json:"wrong_guess,omitempty"`
}

type PlayerDisconnected struct {
	GameID   string `json:"game_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Message  string `json:"message"`
}

type GameWon struct {
	GameID     string   `json:"game_id,omitempty"`
	WinnerID   string   `json:"winner_id,omitempty"`
	WinnerName string   `json:"winner_name"`
	Solution   []string `json:"solution"`
}

// Reasons a game ends without a winner.
const (
	ReasonConditionsMet = "conditions_met"
	ReasonAllEliminated = "all_eliminated"
)

type GameEnded struct {
	GameID   string   `json:"game_id,omitempty"`
	Reason   string   `json:"reason"`
	Solution []string `json:"solution"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type CreateGame struct {
	PlayerName string `json:"player_name"`
}

type JoinGame struct {
	GameID     string `json:"game_id"`
	PlayerName string `json:"player_name"`
}

type StartGame struct {
	GameID string `json:"game_id"`
}

type LeaveGame struct {
	GameID string `json:"game_id"`
}

type Investigate struct {
	GameID             string `json:"game_id"`
	CardIndex          int    `json:"card_index"`
	QuestionedPlayerID string `json:"questioned_player_id"`
	DoubleCardID       string `json:"double_card_id,omitempty"`
}

type MakeGuess struct {
	GameID   string   `json:"game_id"`
	Suspects []string `json:"suspects"`
}

// Encode wraps a payload in an envelope of the given type.
func Encode(msgType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return Envelope{Type: msgType, Data: data}, nil
}

// Decode unmarshals an envelope's payload into dst.
func Decode(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return nil
}
