// Package controller is the client's session state machine. One goroutine
// owns the model: inbound server events and local user intents go through a
// single inbox, so every event is fully applied before the next is looked
// at. Commands go out fire-and-forget; their effects come back later as
// ordinary events through the same serialized path.
package controller

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"blackvienna/internal/channel"
	"blackvienna/internal/notify"
	"blackvienna/internal/session"
	"blackvienna/internal/workflow"
	"blackvienna/pkg/protocol"
)

type Msg interface{ isCtrlMsg() }

// User intents. Each is validated locally before any command is emitted.
type CreateGame struct{ PlayerName string }
type JoinGame struct {
	GameID     string
	PlayerName string
}
type StartGame struct{}
type LeaveGame struct{}
type SelectCard struct{ Index int }
type SelectTarget struct{ PlayerID string }
type ToggleDouble struct{ CardID string }
type SubmitInvestigation struct{}
type EnterGuess struct{}
type SetGuessSlot struct {
	Slot   int
	Letter string
}
type SubmitGuess struct{}
type ConfirmGuess struct{}
type CancelConfirm struct{}
type ExitGuess struct{}
type DismissNote struct{ ID int64 }

// GetView reads a race-free snapshot of everything the UI renders.
type GetView struct{ Reply chan View }

type Shutdown struct{}

func (CreateGame) isCtrlMsg()          {}
func (JoinGame) isCtrlMsg()            {}
func (StartGame) isCtrlMsg()           {}
func (LeaveGame) isCtrlMsg()           {}
func (SelectCard) isCtrlMsg()          {}
func (SelectTarget) isCtrlMsg()        {}
func (ToggleDouble) isCtrlMsg()        {}
func (SubmitInvestigation) isCtrlMsg() {}
func (EnterGuess) isCtrlMsg()          {}
func (SetGuessSlot) isCtrlMsg()        {}
func (SubmitGuess) isCtrlMsg()         {}
func (ConfirmGuess) isCtrlMsg()        {}
func (CancelConfirm) isCtrlMsg()       {}
func (ExitGuess) isCtrlMsg()           {}
func (DismissNote) isCtrlMsg()         {}
func (GetView) isCtrlMsg()             {}
func (Shutdown) isCtrlMsg()            {}

type View struct {
	Model     session.Model
	Flow      workflow.View
	Notes     []notify.Notification
	Connected bool
}

type Controller struct {
	inbox    chan Msg
	model    *session.Model
	flow     *workflow.Workflow
	ch       channel.Channel
	notes    *notify.Queue
	log      *zap.Logger
	onChange func()
	ctx      context.Context
	cancel   context.CancelFunc
}

// New starts the controller loop. onChange, if non-nil, is poked after every
// applied message so a UI can re-read its view.
func New(parent context.Context, ch channel.Channel, notes *notify.Queue, log *zap.Logger, onChange func()) *Controller {
	ctx, cancel := context.WithCancel(parent)
	c := &Controller{
		inbox:    make(chan Msg, 64),
		model:    session.New(),
		flow:     workflow.New(),
		ch:       ch,
		notes:    notes,
		log:      log,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}
	go c.loop()
	return c
}

func (c *Controller) Inbox() chan<- Msg { return c.inbox }

func (c *Controller) loop() {
	events := c.ch.Events()
	for {
		select {
		case <-c.ctx.Done():
			return

		case env, ok := <-events:
			if !ok {
				events = nil
				c.notes.Push("Connection to server lost", notify.Error)
				c.changed()
				continue
			}
			c.handleEvent(env)
			c.changed()

		case m := <-c.inbox:
			switch msg := m.(type) {
			case GetView:
				msg.Reply <- View{
					Model:     c.model.Clone(),
					Flow:      c.flow.View(),
					Notes:     c.notes.Snapshot(),
					Connected: events != nil,
				}
				continue
			case Shutdown:
				c.cancel()
				return
			default:
				c.handleIntent(m)
				c.changed()
			}
		}
	}
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

// ---- inbound events ----

func (c *Controller) handleEvent(env protocol.Envelope) {
	switch env.Type {
	case protocol.EvtGameCreated:
		var p protocol.GameCreated
		if !c.decode(env, &p) {
			return
		}
		if err := c.model.BeginSession(p.GameID, p.PlayerID, p.IsHost); err != nil {
			c.log.Warn("game_created rejected", zap.Error(err))
			return
		}
		c.notes.Push(fmt.Sprintf("Game created! ID: %s", p.GameID), notify.Success)

	case protocol.EvtGameJoined:
		var p protocol.GameCreated
		if !c.decode(env, &p) {
			return
		}
		if err := c.model.BeginSession(p.GameID, p.PlayerID, p.IsHost); err != nil {
			c.log.Warn("game_joined rejected", zap.Error(err))
			return
		}
		c.notes.Push("Successfully joined game!", notify.Success)

	case protocol.EvtLobbyUpdate:
		var p protocol.LobbyUpdate
		if !c.decode(env, &p) || c.foreign(p.GameID) {
			return
		}
		if err := c.model.ReplaceLobby(toLobby(p)); err != nil {
			c.log.Warn("lobby_update rejected", zap.Error(err))
		}

	case protocol.EvtGameStarted:
		var p protocol.GameState
		if !c.decode(env, &p) || c.foreign(p.GameID) {
			return
		}
		if err := c.model.Start(toActive(p)); err != nil {
			c.log.Warn("game_started rejected", zap.Error(err))
			return
		}
		c.flow.Sync(c.model)
		c.notes.Push("Game has started!", notify.Success)

	case protocol.EvtGameStateUpdate:
		var p protocol.GameState
		if !c.decode(env, &p) || c.foreign(p.GameID) {
			return
		}
		if err := c.model.ReplaceActive(toActive(p)); err != nil {
			c.log.Warn("game_state_update rejected", zap.Error(err))
			return
		}
		c.flow.Sync(c.model)

	case protocol.EvtInvestigationResult:
		var p protocol.InvestigationResult
		if !c.decode(env, &p) || c.foreign(p.GameID) {
			return
		}
		r := p.Result
		c.notes.Push(fmt.Sprintf("%s questioned %s about %s → %s",
			r.InvestigatorName, r.QuestionedName,
			strings.Join(r.CardLetters, ", "), coins(r.CoinsTaken)), notify.Info)
		if p.DoubleResult != nil {
			d := p.DoubleResult
			c.notes.Push(fmt.Sprintf("Double Investigation: %s → %s",
				strings.Join(d.CardLetters, ", "), coins(d.CoinsTaken)), notify.Info)
		}

	case protocol.EvtPlayerEliminated:
		var p protocol.PlayerEliminated
		if !c.decode(env, &p) || c.foreign(p.GameID) {
			return
		}
		c.notes.Push(fmt.Sprintf("%s has been eliminated!", p.PlayerName), notify.Warning)

	case protocol.EvtPlayerDisconnected:
		var p protocol.PlayerDisconnected
		if !c.decode(env, &p) || c.foreign(p.GameID) {
			return
		}
		c.notes.Push(p.Message, notify.Warning)

	case protocol.EvtGameWon:
		var p protocol.GameWon
		if !c.decode(env, &p) || c.foreign(p.GameID) {
			return
		}
		err := c.model.Conclude(session.Conclusion{
			Kind:       session.ConclusionWon,
			WinnerName: p.WinnerName,
			Solution:   p.Solution,
		})
		if err != nil {
			c.log.Warn("game_won rejected", zap.Error(err))
			return
		}
		c.flow.Sync(c.model)
		c.notes.Push(fmt.Sprintf("%s has won the game!", p.WinnerName), notify.Success)

	case protocol.EvtGameEnded:
		var p protocol.GameEnded
		if !c.decode(env, &p) || c.foreign(p.GameID) {
			return
		}
		err := c.model.Conclude(session.Conclusion{
			Kind:     session.ConclusionEnded,
			Reason:   p.Reason,
			Solution: p.Solution,
		})
		if err != nil {
			c.log.Warn("game_ended rejected", zap.Error(err))
			return
		}
		c.flow.Sync(c.model)
		if p.Reason == protocol.ReasonAllEliminated {
			c.notes.Push("Game ended - all players eliminated!", notify.Warning)
		} else {
			c.notes.Push("Game ended - conditions met!", notify.Info)
		}

	case protocol.EvtError:
		var p protocol.ErrorPayload
		if !c.decode(env, &p) {
			return
		}
		c.notes.Push(p.Message, notify.Error)

	default:
		c.log.Warn("unknown event", zap.String("type", env.Type))
	}
}

func (c *Controller) decode(env protocol.Envelope, dst any) bool {
	if err := protocol.Decode(env, dst); err != nil {
		c.log.Warn("bad event payload", zap.String("type", env.Type), zap.Error(err))
		return false
	}
	return true
}

// foreign drops events that name a different session than the one we joined.
// A reused channel must never corrupt this session's state.
func (c *Controller) foreign(gameID string) bool {
	if gameID == "" || c.model.SessionID == "" || gameID == c.model.SessionID {
		return false
	}
	c.log.Warn("dropping event for foreign session",
		zap.String("got", gameID), zap.String("session", c.model.SessionID))
	return true
}

func coins(n int) string {
	if n == 1 {
		return "1 coin"
	}
	return fmt.Sprintf("%d coins", n)
}

func toLobby(p protocol.LobbyUpdate) session.Lobby {
	players := make([]session.LobbyPlayer, len(p.Players))
	for i, lp := range p.Players {
		players[i] = session.LobbyPlayer{ID: lp.ID, Name: lp.Name}
	}
	return session.Lobby{
		Players:    players,
		HostID:     p.HostID,
		MinPlayers: p.MinPlayers,
		MaxPlayers: p.MaxPlayers,
		CanStart:   p.CanStart,
	}
}

func toActive(p protocol.GameState) session.Active {
	players := make([]session.Player, len(p.Players))
	for i, pl := range p.Players {
		players[i] = session.Player{
			ID:        pl.ID,
			Name:      pl.Name,
			Status:    session.PlayerStatus(pl.Status),
			CardCount: pl.CardCount,
		}
	}
	faceUp := make([]session.Card, len(p.FaceUpCards))
	for i, card := range p.FaceUpCards {
		faceUp[i] = session.Card{ID: card.ID, Letters: card.Letters}
	}
	zero := make([]session.ZeroCoinCard, len(p.ZeroCoinCards))
	for i, card := range p.ZeroCoinCards {
		zero[i] = session.ZeroCoinCard{
			ID:         card.ID,
			Letters:    card.Letters,
			UsedBy:     card.UsedBy,
			Questioned: card.Questioned,
		}
	}
	candidates := make([]session.LobbyPlayer, len(p.CanQuestion))
	for i, cp := range p.CanQuestion {
		candidates[i] = session.LobbyPlayer{ID: cp.ID, Name: cp.Name}
	}
	history := make([]session.InvestigationRecord, len(p.InvestigationHistory))
	for i, rec := range p.InvestigationHistory {
		history[i] = session.InvestigationRecord{
			Round:            rec.Round,
			InvestigatorName: rec.InvestigatorName,
			QuestionedName:   rec.QuestionedName,
			Letters:          rec.Letters,
			CoinsTaken:       rec.CoinsTaken,
			IsDouble:         rec.IsDouble,
		}
	}
	return session.Active{
		Players:                    players,
		CurrentInvestigator:        p.CurrentInvestigator,
		CentralCoins:               p.CentralCoins,
		CoinsUsed:                  p.CoinsUsed,
		RoundCount:                 p.RoundCount,
		MyCards:                    p.MyCards,
		FaceUpCards:                faceUp,
		ZeroCoinCards:              zero,
		CanQuestion:                candidates,
		History:                    history,
		DoubleInvestigationEnabled: p.DoubleInvestigationEnabled,
		TotalInvestigations:        p.TotalInvestigations,
	}
}

// ---- user intents ----

func (c *Controller) handleIntent(m Msg) {
	switch msg := m.(type) {
	case CreateGame:
		if strings.TrimSpace(msg.PlayerName) == "" {
			c.notes.Push("Please enter your name", notify.Error)
			return
		}
		c.emit(protocol.CmdCreateGame, protocol.CreateGame{PlayerName: strings.TrimSpace(msg.PlayerName)})

	case JoinGame:
		name := strings.TrimSpace(msg.PlayerName)
		id := strings.ToUpper(strings.TrimSpace(msg.GameID))
		if name == "" || id == "" {
			c.notes.Push("Please enter your name and game ID", notify.Error)
			return
		}
		c.emit(protocol.CmdJoinGame, protocol.JoinGame{GameID: id, PlayerName: name})

	case StartGame:
		if c.model.Phase != session.PhaseLobby {
			return
		}
		if !c.model.IsHost {
			c.notes.Push("Only the host can start the game", notify.Error)
			return
		}
		if c.model.Lobby == nil || !c.model.Lobby.CanStart {
			c.notes.Push("Need at least 3 players to start", notify.Error)
			return
		}
		c.emit(protocol.CmdStartGame, protocol.StartGame{GameID: c.model.SessionID})

	case LeaveGame:
		if c.model.Phase == session.PhaseLobby || c.model.Phase == session.PhaseActive {
			c.emit(protocol.CmdLeaveGame, protocol.LeaveGame{GameID: c.model.SessionID})
		}
		c.model.Reset()
		c.flow.Sync(c.model)
		c.notes.Clear()

	case SelectCard:
		if err := c.flow.SelectCard(msg.Index, c.model.Active); err != nil {
			c.log.Debug("select card", zap.Error(err))
		}

	case SelectTarget:
		if err := c.flow.SelectTarget(msg.PlayerID, c.model.Active); err != nil {
			c.log.Debug("select target", zap.Error(err))
		}

	case ToggleDouble:
		if err := c.flow.ToggleDouble(msg.CardID, c.model.Active); err != nil {
			c.log.Debug("toggle double", zap.Error(err))
		}

	case SubmitInvestigation:
		card, target, double, err := c.flow.SubmitInvestigation()
		if err != nil {
			c.notes.Push("Select a card and a player first", notify.Error)
			return
		}
		c.emit(protocol.CmdInvestigate, protocol.Investigate{
			GameID:             c.model.SessionID,
			CardIndex:          card,
			QuestionedPlayerID: target,
			DoubleCardID:       double,
		})

	case EnterGuess:
		if err := c.flow.EnterGuess(); err != nil {
			c.log.Debug("enter guess", zap.Error(err))
		}

	case SetGuessSlot:
		if err := c.flow.SetSlot(msg.Slot, msg.Letter); err != nil {
			c.log.Debug("set guess slot", zap.Error(err))
		}

	case SubmitGuess:
		if err := c.flow.SubmitGuess(); err != nil {
			c.notes.Push("Please select exactly 3 suspects", notify.Error)
		}

	case ConfirmGuess:
		guess, err := c.flow.ConfirmGuess()
		if err != nil {
			c.log.Debug("confirm guess", zap.Error(err))
			return
		}
		c.emit(protocol.CmdMakeGuess, protocol.MakeGuess{
			GameID:   c.model.SessionID,
			Suspects: guess,
		})

	case CancelConfirm:
		if err := c.flow.CancelConfirm(); err != nil {
			c.log.Debug("cancel confirm", zap.Error(err))
		}

	case ExitGuess:
		if err := c.flow.ExitGuess(); err != nil {
			c.log.Debug("exit guess", zap.Error(err))
		}

	case DismissNote:
		c.notes.Dismiss(msg.ID)
	}
}

// emit encodes and queues one outbound command. No reply is awaited; the
// server answers through the event stream or not at all.
func (c *Controller) emit(cmdType string, payload any) {
	env, err := protocol.Encode(cmdType, payload)
	if err != nil {
		c.log.Error("encode command", zap.String("type", cmdType), zap.Error(err))
		return
	}
	if err := c.ch.Send(c.ctx, env); err != nil {
		c.log.Error("send command", zap.String("type", cmdType), zap.Error(err))
		c.notes.Push("Failed to reach the server", notify.Error)
	}
}
