package server

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"blackvienna/pkg/protocol"
)

// Join refusals. The text goes to the client verbatim.
var (
	errGameStarted = errors.New("Game has already started")
	errGameFull    = errors.New("Game is full (max 8 players)")
)

type GameMsg interface{ isGameMsg() }

// Join adds a player in the lobby phase. Created marks the game's creator,
// who becomes host. The outcome comes back on Reply: nil for accepted, or
// the refusal to relay to the client. Done is closed by the game when it
// drops the player; the game never closes Outbox, whose owner is the
// connection handler.
type Join struct {
	PlayerID string
	Name     string
	Created  bool
	Outbox   chan protocol.Envelope
	Done     chan struct{}
	Reply    chan error
}

// Leave removes a player. Disconnected distinguishes a dropped connection
// from an explicit leave_game.
type Leave struct {
	PlayerID     string
	Disconnected bool
}

// FromClient carries any other command envelope from a joined player.
type FromClient struct {
	PlayerID string
	Env      protocol.Envelope
}

type GetGameView struct{ Reply chan GameView }

type ShutdownGame struct{}

func (Join) isGameMsg()         {}
func (Leave) isGameMsg()        {}
func (FromClient) isGameMsg()   {}
func (GetGameView) isGameMsg()  {}
func (ShutdownGame) isGameMsg() {}

// GameView reflects internal state for tests without data races.
type GameView struct {
	Code       string
	NumPlayers int
	Started    bool
	Over       bool
}

// client is the game's handle on one connection. The outbox belongs to the
// connection handler; dropping a player is signalled by closing done, so no
// send here can ever race a close.
type client struct {
	outbox chan protocol.Envelope
	done   chan struct{}
}

// Game owns one session from lobby to conclusion. All state is confined to
// the loop goroutine; everything reaches it through the inbox.
type Game struct {
	inbox   chan GameMsg
	code    string
	seats   []seat
	hostID  string
	match   *match
	clients map[string]client
	rng     *rand.Rand
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewGame(parent context.Context, code string, log *zap.Logger) *Game {
	ctx, cancel := context.WithCancel(parent)
	g := &Game{
		inbox:   make(chan GameMsg, 64),
		code:    code,
		clients: make(map[string]client),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     log.With(zap.String("game", code)),
		ctx:     ctx,
		cancel:  cancel,
	}
	go g.loop()
	return g
}

func (g *Game) Inbox() chan<- GameMsg { return g.inbox }

func (g *Game) loop() {
	for {
		select {
		case <-g.ctx.Done():
			g.shutdown()
			return

		case m := <-g.inbox:
			switch msg := m.(type) {
			case Join:
				g.handleJoin(msg)
			case Leave:
				g.handleLeave(msg)
			case FromClient:
				g.handleCommand(msg)
			case GetGameView:
				msg.Reply <- GameView{
					Code:       g.code,
					NumPlayers: len(g.seats),
					Started:    g.match != nil,
					Over:       g.match != nil && g.match.Over,
				}
			case ShutdownGame:
				g.shutdown()
				return
			}
		}
	}
}

func (g *Game) shutdown() {
	for id, c := range g.clients {
		close(c.done)
		delete(g.clients, id)
	}
	g.cancel()
}

func (g *Game) handleJoin(msg Join) {
	if g.match != nil {
		reply(msg.Reply, errGameStarted)
		return
	}
	if len(g.seats) >= maxPlayers {
		reply(msg.Reply, errGameFull)
		return
	}

	g.seats = append(g.seats, seat{ID: msg.PlayerID, Name: msg.Name})
	g.clients[msg.PlayerID] = client{outbox: msg.Outbox, done: msg.Done}
	if msg.Created {
		g.hostID = msg.PlayerID
	}
	reply(msg.Reply, nil)

	ack := protocol.EvtGameJoined
	if msg.Created {
		ack = protocol.EvtGameCreated
	}
	g.sendTo(msg.Outbox, ack, protocol.GameCreated{
		GameID:   g.code,
		PlayerID: msg.PlayerID,
		IsHost:   msg.PlayerID == g.hostID,
	})
	g.broadcastLobby()
	g.log.Info("player joined", zap.String("player", msg.Name))
}

func (g *Game) handleLeave(msg Leave) {
	if _, ok := g.clients[msg.PlayerID]; !ok {
		return
	}
	delete(g.clients, msg.PlayerID)

	if g.match == nil {
		for i, s := range g.seats {
			if s.ID == msg.PlayerID {
				g.seats = append(g.seats[:i], g.seats[i+1:]...)
				break
			}
		}
		g.broadcastLobby()
		return
	}

	if msg.Disconnected {
		g.broadcast(protocol.EvtPlayerDisconnected, protocol.PlayerDisconnected{
			GameID:   g.code,
			PlayerID: msg.PlayerID,
			Message:  "A player has disconnected",
		})
	}
}

func (g *Game) handleCommand(msg FromClient) {
	switch msg.Env.Type {
	case protocol.CmdStartGame:
		g.handleStart(msg.PlayerID)
	case protocol.CmdInvestigate:
		g.handleInvestigate(msg)
	case protocol.CmdMakeGuess:
		g.handleGuess(msg)
	case protocol.CmdLeaveGame:
		g.handleLeave(Leave{PlayerID: msg.PlayerID})
	default:
		g.errorTo(msg.PlayerID, "Unknown command")
	}
}

func (g *Game) handleStart(playerID string) {
	if g.match != nil {
		g.errorTo(playerID, "Game has already started")
		return
	}
	if playerID != g.hostID {
		g.errorTo(playerID, "Only the host can start the game")
		return
	}
	if len(g.seats) < minPlayers {
		g.errorTo(playerID, "Need at least 3 players to start")
		return
	}

	g.match = deal(g.seats, g.rng)
	for id, c := range g.clients {
		g.sendTo(c.outbox, protocol.EvtGameStarted, g.match.view(g.code, id))
	}
	g.log.Info("game started", zap.Int("players", len(g.seats)))
}

func (g *Game) handleInvestigate(msg FromClient) {
	if g.match == nil {
		g.errorTo(msg.PlayerID, "Game has not started")
		return
	}
	var cmd protocol.Investigate
	if err := protocol.Decode(msg.Env, &cmd); err != nil {
		g.errorTo(msg.PlayerID, "Malformed investigate command")
		return
	}

	outcome, double, err := g.match.investigate(msg.PlayerID, cmd.QuestionedPlayerID, cmd.CardIndex, cmd.DoubleCardID)
	if err != nil {
		g.errorTo(msg.PlayerID, err.Error())
		return
	}

	g.broadcast(protocol.EvtInvestigationResult, protocol.InvestigationResult{
		GameID:       g.code,
		Result:       outcome,
		DoubleResult: double,
	})
	g.broadcastState()

	if g.match.Over {
		g.broadcast(protocol.EvtGameEnded, protocol.GameEnded{
			GameID:   g.code,
			Reason:   protocol.ReasonConditionsMet,
			Solution: g.match.Hidden,
		})
	}
}

func (g *Game) handleGuess(msg FromClient) {
	if g.match == nil {
		g.errorTo(msg.PlayerID, "Game has not started")
		return
	}
	var cmd protocol.MakeGuess
	if err := protocol.Decode(msg.Env, &cmd); err != nil {
		g.errorTo(msg.PlayerID, "Malformed guess command")
		return
	}

	correct, allOut, err := g.match.makeGuess(msg.PlayerID, cmd.Suspects)
	if err != nil {
		g.errorTo(msg.PlayerID, err.Error())
		return
	}

	p := g.match.player(msg.PlayerID)
	if correct {
		g.broadcast(protocol.EvtGameWon, protocol.GameWon{
			GameID:     g.code,
			WinnerID:   p.ID,
			WinnerName: p.Name,
			Solution:   g.match.Hidden,
		})
		return
	}

	g.broadcast(protocol.EvtPlayerEliminated, protocol.PlayerEliminated{
		GameID:     g.code,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		WrongGuess: cmd.Suspects,
	})
	g.broadcastState()

	if allOut {
		g.broadcast(protocol.EvtGameEnded, protocol.GameEnded{
			GameID:   g.code,
			Reason:   protocol.ReasonAllEliminated,
			Solution: g.match.Hidden,
		})
	}
}

func (g *Game) broadcastLobby() {
	players := make([]protocol.LobbyPlayer, len(g.seats))
	for i, s := range g.seats {
		players[i] = protocol.LobbyPlayer{ID: s.ID, Name: s.Name}
	}
	g.broadcast(protocol.EvtLobbyUpdate, protocol.LobbyUpdate{
		GameID:     g.code,
		Players:    players,
		HostID:     g.hostID,
		MinPlayers: minPlayers,
		MaxPlayers: maxPlayers,
		CanStart:   len(g.seats) >= minPlayers,
	})
}

// broadcastState sends each joined player their personalized snapshot.
func (g *Game) broadcastState() {
	for id, c := range g.clients {
		g.sendTo(c.outbox, protocol.EvtGameStateUpdate, g.match.view(g.code, id))
	}
}

func (g *Game) broadcast(msgType string, payload any) {
	env, err := protocol.Encode(msgType, payload)
	if err != nil {
		g.log.Error("encode broadcast", zap.String("type", msgType), zap.Error(err))
		return
	}
	for id, c := range g.clients {
		select {
		case c.outbox <- env:
		default:
			// Client is slow/full - drop them. Closing done lets the
			// connection handler tear the socket down itself.
			close(c.done)
			delete(g.clients, id)
		}
	}
}

func (g *Game) sendTo(ch chan protocol.Envelope, msgType string, payload any) {
	env, err := protocol.Encode(msgType, payload)
	if err != nil {
		g.log.Error("encode", zap.String("type", msgType), zap.Error(err))
		return
	}
	select {
	case ch <- env:
	default:
	}
}

func (g *Game) errorTo(playerID, message string) {
	if c, ok := g.clients[playerID]; ok {
		g.sendTo(c.outbox, protocol.EvtError, protocol.ErrorPayload{Message: message})
	}
}

func reply(ch chan error, err error) {
	if ch != nil {
		select {
		case ch <- err:
		default:
		}
	}
}
