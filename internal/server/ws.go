package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"blackvienna/pkg/protocol"
)

// WSHandler upgrades each connection and runs one session: create_game and
// join_game are resolved against the hub here; every other command is
// forwarded to the joined game's inbox.
func WSHandler(h *Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		playerID := uuid.NewString()
		outbox := make(chan protocol.Envelope, 16)
		done := make(chan struct{})
		log := log.With(zap.String("player", playerID))

		// Writer goroutine. The game never closes the outbox; it signals a
		// drop by closing done, and closing the connection here unblocks
		// the reader loop.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case env := <-outbox:
					payload, _ := json.Marshal(env)
					ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				case <-done:
					conn.Close(websocket.StatusGoingAway, "dropped")
					return
				case <-writeCtx.Done():
					return
				}
			}
		}()

		var game *Game
		defer func() {
			if game != nil {
				game.Inbox() <- Leave{PlayerID: playerID, Disconnected: true}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				sendError(outbox, "bad json")
				continue
			}
			log.Debug("command received", zap.String("type", env.Type))

			switch env.Type {
			case protocol.CmdCreateGame:
				var cmd protocol.CreateGame
				name := ""
				if protocol.Decode(env, &cmd) == nil {
					name = strings.TrimSpace(cmd.PlayerName)
				}
				if name == "" {
					sendError(outbox, "Player name is required")
					continue
				}
				if game != nil {
					sendError(outbox, "Already in a game")
					continue
				}
				reply := make(chan *Game, 1)
				h.Inbox() <- CreateGame{Reply: reply}
				game = join(<-reply, Join{PlayerID: playerID, Name: name, Created: true, Outbox: outbox, Done: done}, outbox)

			case protocol.CmdJoinGame:
				var cmd protocol.JoinGame
				if err := protocol.Decode(env, &cmd); err != nil {
					sendError(outbox, "bad json")
					continue
				}
				name := strings.TrimSpace(cmd.PlayerName)
				code := strings.ToUpper(strings.TrimSpace(cmd.GameID))
				if name == "" || code == "" {
					sendError(outbox, "Game ID and player name are required")
					continue
				}
				if game != nil {
					sendError(outbox, "Already in a game")
					continue
				}
				reply := make(chan *Game, 1)
				h.Inbox() <- GetGame{Code: code, Reply: reply}
				g := <-reply
				if g == nil {
					sendError(outbox, "Game not found")
					continue
				}
				game = join(g, Join{PlayerID: playerID, Name: name, Outbox: outbox, Done: done}, outbox)

			case protocol.CmdLeaveGame:
				if game != nil {
					game.Inbox() <- FromClient{PlayerID: playerID, Env: env}
					game = nil
				}

			default:
				if game == nil {
					sendError(outbox, "Join a game first")
					continue
				}
				game.Inbox() <- FromClient{PlayerID: playerID, Env: env}
			}
		}
	}
}

// join submits a Join and waits for the verdict. The connection stays
// unbound on refusal, so the player can still create or join another game.
func join(g *Game, msg Join, outbox chan protocol.Envelope) *Game {
	msg.Reply = make(chan error, 1)
	select {
	case g.Inbox() <- msg:
	case <-g.ctx.Done():
		sendError(outbox, "Game not found")
		return nil
	}
	select {
	case err := <-msg.Reply:
		if err != nil {
			sendError(outbox, err.Error())
			return nil
		}
		return g
	case <-g.ctx.Done():
		sendError(outbox, "Game not found")
		return nil
	}
}

func sendError(outbox chan protocol.Envelope, message string) {
	env, err := protocol.Encode(protocol.EvtError, protocol.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	select {
	case outbox <- env:
	default:
	}
}
