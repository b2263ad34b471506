package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"blackvienna/pkg/protocol"
)

func dialWS(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func writeCommand(t *testing.T, ctx context.Context, conn *websocket.Conn, cmdType string, payload any) {
	t.Helper()
	env, err := protocol.Encode(cmdType, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", cmdType, err)
	}
	data, _ := json.Marshal(env)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write %s: %v", cmdType, err)
	}
}

func readEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(readCtx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

// A refused join must leave the connection free to create or join another
// game without reconnecting.
func TestWSHandler_RefusedJoinLeavesConnectionUsable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, zap.NewNop())
	srv := httptest.NewServer(Routes(h, zap.NewNop()))
	t.Cleanup(srv.Close)

	// Fill one game to capacity.
	gameReply := make(chan *Game, 1)
	h.Inbox() <- CreateGame{Reply: gameReply}
	g := <-gameReply
	viewReply := make(chan GameView, 1)
	g.Inbox() <- GetGameView{Reply: viewReply}
	code := recvGameView(t, viewReply, time.Second).Code
	for i := 0; i < maxPlayers; i++ {
		c := newTestClient(fmt.Sprintf("p%d", i), 64)
		if err := joinAs(t, g, c, fmt.Sprintf("Player%d", i), i == 0); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	conn := dialWS(t, ctx, srv)
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	writeCommand(t, ctx, conn, protocol.CmdJoinGame, protocol.JoinGame{GameID: code, PlayerName: "Zed"})
	env := readEnvelope(t, ctx, conn)
	if env.Type != protocol.EvtError {
		t.Fatalf("type = %q, want error", env.Type)
	}
	var e protocol.ErrorPayload
	if err := protocol.Decode(env, &e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if e.Message != "Game is full (max 8 players)" {
		t.Fatalf("message = %q", e.Message)
	}

	// Same connection, fresh game: must not be treated as already joined.
	writeCommand(t, ctx, conn, protocol.CmdCreateGame, protocol.CreateGame{PlayerName: "Zed"})
	env = readEnvelope(t, ctx, conn)
	if env.Type != protocol.EvtGameCreated {
		t.Fatalf("type = %q, want game_created", env.Type)
	}
	var created protocol.GameCreated
	if err := protocol.Decode(env, &created); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !created.IsHost || created.GameID == code {
		t.Fatalf("ack = %+v", created)
	}
}

func TestWSHandler_CreateThenLobbyUpdate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, zap.NewNop())
	srv := httptest.NewServer(Routes(h, zap.NewNop()))
	t.Cleanup(srv.Close)

	conn := dialWS(t, ctx, srv)
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	writeCommand(t, ctx, conn, protocol.CmdCreateGame, protocol.CreateGame{PlayerName: "Ada"})
	env := readEnvelope(t, ctx, conn)
	if env.Type != protocol.EvtGameCreated {
		t.Fatalf("type = %q, want game_created", env.Type)
	}
	env = readEnvelope(t, ctx, conn)
	if env.Type != protocol.EvtLobbyUpdate {
		t.Fatalf("type = %q, want lobby_update", env.Type)
	}
	var lobby protocol.LobbyUpdate
	if err := protocol.Decode(env, &lobby); err != nil {
		t.Fatalf("decode lobby: %v", err)
	}
	if len(lobby.Players) != 1 || lobby.Players[0].Name != "Ada" {
		t.Fatalf("lobby = %+v", lobby)
	}
}
