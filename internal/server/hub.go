package server

import (
	"context"
	"crypto/rand"
	"math/big"

	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

// CreateGame makes a fresh game under a newly generated code.
type CreateGame struct {
	Reply chan *Game
}

type GetGame struct {
	Code  string
	Reply chan *Game
}

type RemoveGame struct {
	Code string
}

type ShutdownHub struct{}

func (CreateGame) isHubMsg()  {}
func (GetGame) isHubMsg()     {}
func (RemoveGame) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the set of live games, keyed by their share code.
type Hub struct {
	inbox  chan HubMsg
	games  map[string]*Game
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		games:  make(map[string]*Game),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateGame:
				code := h.freshCode()
				g := NewGame(h.ctx, code, h.log)
				h.games[code] = g
				msg.Reply <- g

			case GetGame:
				msg.Reply <- h.games[msg.Code] // May be nil

			case RemoveGame:
				delete(h.games, msg.Code)

			case ShutdownHub:
				for _, g := range h.games {
					g.Inbox() <- ShutdownGame{}
				}
				clear(h.games)
				h.cancel()
			}
		}
	}
}

func (h *Hub) freshCode() string {
	for {
		code, err := generateCode()
		if err != nil {
			h.log.Error("generate code", zap.Error(err))
			continue
		}
		if _, taken := h.games[code]; !taken {
			return code
		}
	}
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
