package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"blackvienna/pkg/protocol"
)

// echoServer accepts one websocket and echoes every frame back with the
// type prefixed, so tests can tell their own frames apart.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			env.Type = "echo_" + env.Type
			out, _ := json.Marshal(env)
			if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRoundTrip(t *testing.T) {
	srv := echoServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Dial(ctx, wsURL(srv), zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	env, err := protocol.Encode(protocol.CmdCreateGame, protocol.CreateGame{PlayerName: "Ada"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := ch.Send(ctx, env); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-ch.Events():
		if got.Type != "echo_"+protocol.CmdCreateGame {
			t.Fatalf("type = %q", got.Type)
		}
		var p protocol.CreateGame
		if err := protocol.Decode(got, &p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.PlayerName != "Ada" {
			t.Fatalf("payload = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("no echo received")
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		_ = conn.Write(ctx, websocket.MessageText, []byte("not json"))
		out, _ := json.Marshal(protocol.Envelope{Type: "ok"})
		_ = conn.Write(ctx, websocket.MessageText, out)
		// Hold the socket open until the client goes away.
		_, _, _ = conn.Read(ctx)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := Dial(ctx, wsURL(srv), zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	select {
	case got := <-ch.Events():
		if got.Type != "ok" {
			t.Fatalf("type = %q, want the frame after the malformed one", got.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("good frame never arrived")
	}
}

func TestEventsCloseOnServerDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.Close(websocket.StatusGoingAway, "restarting")
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := Dial(ctx, wsURL(srv), zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	select {
	case _, ok := <-ch.Events():
		if ok {
			t.Fatal("expected closed events channel")
		}
	case <-time.After(time.Second):
		t.Fatal("events channel never closed")
	}
}
