package server

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"blackvienna/pkg/protocol"
)

// recvType skips envelopes until one of the wanted type arrives, with a
// deadline so tests never hang.
func recvType(t *testing.T, ch <-chan protocol.Envelope, msgType string) protocol.Envelope {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", msgType)
			}
			if env.Type == msgType {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func recvGameView(t *testing.T, ch <-chan GameView, within time.Duration) GameView {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for game view")
		return GameView{} // unreachable
	}
}

type testClient struct {
	id     string
	outbox chan protocol.Envelope
	done   chan struct{}
}

func newTestClient(id string, buffer int) testClient {
	return testClient{
		id:     id,
		outbox: make(chan protocol.Envelope, buffer),
		done:   make(chan struct{}),
	}
}

// joinAs submits a Join and returns the game's verdict.
func joinAs(t *testing.T, g *Game, c testClient, name string, created bool) error {
	t.Helper()
	reply := make(chan error, 1)
	g.Inbox() <- Join{
		PlayerID: c.id, Name: name, Created: created,
		Outbox: c.outbox, Done: c.done, Reply: reply,
	}
	select {
	case err := <-reply:
		return err
	case <-time.After(time.Second):
		t.Fatalf("no join verdict for %s", c.id)
		return nil // unreachable
	}
}

func joinThree(t *testing.T, g *Game) []testClient {
	t.Helper()
	clients := []testClient{
		newTestClient("p1", 32),
		newTestClient("p2", 32),
		newTestClient("p3", 32),
	}
	names := []string{"Ada", "Ben", "Cy"}
	for i, c := range clients {
		if err := joinAs(t, g, c, names[i], i == 0); err != nil {
			t.Fatalf("join %s: %v", c.id, err)
		}
	}
	return clients
}

func TestGame_JoinBroadcastsLobby(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := NewGame(ctx, "TEST01", zap.NewNop())

	clients := joinThree(t, g)

	ack := recvType(t, clients[0].outbox, protocol.EvtGameCreated)
	var created protocol.GameCreated
	if err := protocol.Decode(ack, &created); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if created.GameID != "TEST01" || !created.IsHost {
		t.Fatalf("creator ack = %+v", created)
	}

	joined := recvType(t, clients[1].outbox, protocol.EvtGameJoined)
	var j protocol.GameCreated
	_ = protocol.Decode(joined, &j)
	if j.IsHost {
		t.Fatalf("second player marked host")
	}

	// The third join's lobby_update reaches all players and enables start.
	lu := recvType(t, clients[2].outbox, protocol.EvtLobbyUpdate)
	var lobby protocol.LobbyUpdate
	if err := protocol.Decode(lu, &lobby); err != nil {
		t.Fatalf("decode lobby: %v", err)
	}
	if len(lobby.Players) != 3 || !lobby.CanStart || lobby.HostID != "p1" {
		t.Fatalf("lobby = %+v", lobby)
	}
}

func TestGame_StartGating(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := NewGame(ctx, "TEST02", zap.NewNop())

	host := newTestClient("p1", 32)
	other := newTestClient("p2", 32)
	if err := joinAs(t, g, host, "Ada", true); err != nil {
		t.Fatalf("join host: %v", err)
	}
	if err := joinAs(t, g, other, "Ben", false); err != nil {
		t.Fatalf("join other: %v", err)
	}

	startEnv, _ := protocol.Encode(protocol.CmdStartGame, protocol.StartGame{GameID: "TEST02"})

	// Non-host start is refused.
	g.Inbox() <- FromClient{PlayerID: other.id, Env: startEnv}
	errEnv := recvType(t, other.outbox, protocol.EvtError)
	var e protocol.ErrorPayload
	_ = protocol.Decode(errEnv, &e)
	if e.Message != "Only the host can start the game" {
		t.Fatalf("error = %q", e.Message)
	}

	// Host below the minimum is refused.
	g.Inbox() <- FromClient{PlayerID: host.id, Env: startEnv}
	errEnv = recvType(t, host.outbox, protocol.EvtError)
	_ = protocol.Decode(errEnv, &e)
	if e.Message != "Need at least 3 players to start" {
		t.Fatalf("error = %q", e.Message)
	}

	reply := make(chan GameView, 1)
	g.Inbox() <- GetGameView{Reply: reply}
	if v := recvGameView(t, reply, time.Second); v.Started {
		t.Fatalf("game started despite refusals")
	}
}

func TestGame_StartDealsPersonalizedSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := NewGame(ctx, "TEST03", zap.NewNop())
	clients := joinThree(t, g)

	startEnv, _ := protocol.Encode(protocol.CmdStartGame, protocol.StartGame{GameID: "TEST03"})
	g.Inbox() <- FromClient{PlayerID: "p1", Env: startEnv}

	hands := map[string]bool{}
	for _, c := range clients {
		env := recvType(t, c.outbox, protocol.EvtGameStarted)
		var state protocol.GameState
		if err := protocol.Decode(env, &state); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		if len(state.MyCards) != 8 {
			t.Fatalf("player %s got %d cards", c.id, len(state.MyCards))
		}
		if len(state.Players) != 3 || state.CentralCoins != startingCoins {
			t.Fatalf("snapshot = %+v", state)
		}
		key := state.MyCards[0] + state.MyCards[1] + state.MyCards[2]
		if hands[key] {
			t.Fatalf("two players share a hand prefix %q", key)
		}
		hands[key] = true
	}
}

func TestGame_InvestigateFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := NewGame(ctx, "TEST04", zap.NewNop())
	clients := joinThree(t, g)

	startEnv, _ := protocol.Encode(protocol.CmdStartGame, protocol.StartGame{GameID: "TEST04"})
	g.Inbox() <- FromClient{PlayerID: "p1", Env: startEnv}
	for _, c := range clients {
		recvType(t, c.outbox, protocol.EvtGameStarted)
	}

	inv, _ := protocol.Encode(protocol.CmdInvestigate, protocol.Investigate{
		GameID:             "TEST04",
		CardIndex:          0,
		QuestionedPlayerID: "p2",
	})
	g.Inbox() <- FromClient{PlayerID: "p1", Env: inv}

	// Everyone sees the result and a fresh snapshot.
	for _, c := range clients {
		res := recvType(t, c.outbox, protocol.EvtInvestigationResult)
		var r protocol.InvestigationResult
		if err := protocol.Decode(res, &r); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if r.Result.InvestigatorName != "Ada" || r.Result.QuestionedName != "Ben" {
			t.Fatalf("result = %+v", r.Result)
		}

		upd := recvType(t, c.outbox, protocol.EvtGameStateUpdate)
		var state protocol.GameState
		_ = protocol.Decode(upd, &state)
		if state.CurrentInvestigator != 1 {
			t.Fatalf("turn did not advance: %d", state.CurrentInvestigator)
		}
	}

	// Acting out of turn is refused.
	g.Inbox() <- FromClient{PlayerID: "p1", Env: inv}
	recvType(t, clients[0].outbox, protocol.EvtError)
}

func TestGame_LeaveInLobbyShrinksRoster(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := NewGame(ctx, "TEST05", zap.NewNop())
	clients := joinThree(t, g)

	g.Inbox() <- Leave{PlayerID: "p2"}

	lu := recvType(t, clients[0].outbox, protocol.EvtLobbyUpdate)
	var lobby protocol.LobbyUpdate
	for {
		if err := protocol.Decode(lu, &lobby); err != nil {
			t.Fatalf("decode lobby: %v", err)
		}
		if len(lobby.Players) == 2 {
			break
		}
		lu = recvType(t, clients[0].outbox, protocol.EvtLobbyUpdate)
	}
	if lobby.CanStart {
		// 2 players is below the minimum.
		t.Fatalf("lobby = %+v", lobby)
	}
}

func TestHub_CreateAndGetSameGame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, zap.NewNop())

	reply := make(chan *Game, 1)
	h.Inbox() <- CreateGame{Reply: reply}
	g1 := <-reply

	view := make(chan GameView, 1)
	g1.Inbox() <- GetGameView{Reply: view}
	code := recvGameView(t, view, time.Second).Code
	if len(code) != 6 {
		t.Fatalf("code = %q, want 6 chars", code)
	}

	h.Inbox() <- GetGame{Code: code, Reply: reply}
	g2 := <-reply
	if g1 != g2 {
		t.Fatalf("expected same game pointer")
	}

	h.Inbox() <- GetGame{Code: "NOPE42", Reply: reply}
	if g := <-reply; g != nil {
		t.Fatalf("expected nil for unknown code")
	}
}

func TestGame_SlowClientDropSignalsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := NewGame(ctx, "TEST06", zap.NewNop())

	fast1 := newTestClient("p1", 32)
	fast2 := newTestClient("p2", 32)
	slow := newTestClient("p3", 0) // unbuffered and never drained
	if err := joinAs(t, g, fast1, "Ada", true); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := joinAs(t, g, fast2, "Ben", false); err != nil {
		t.Fatalf("join: %v", err)
	}
	// The lobby broadcast after this join cannot be delivered to the slow
	// client, so the game drops them.
	if err := joinAs(t, g, slow, "Cy", false); err != nil {
		t.Fatalf("join: %v", err)
	}

	select {
	case <-slow.done:
	case <-time.After(time.Second):
		t.Fatal("done never closed for the dropped client")
	}

	// The outbox must remain open: only the connection handler owns it, and
	// it keeps writing errors there after the drop.
	sendError(slow.outbox, "bad json")

	// The fast clients are unaffected.
	recvType(t, fast1.outbox, protocol.EvtLobbyUpdate)
	select {
	case <-fast1.done:
		t.Fatal("done closed for a healthy client")
	default:
	}
}

func TestGame_JoinRefusedWhenStarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := NewGame(ctx, "TEST07", zap.NewNop())
	joinThree(t, g)

	startEnv, _ := protocol.Encode(protocol.CmdStartGame, protocol.StartGame{GameID: "TEST07"})
	g.Inbox() <- FromClient{PlayerID: "p1", Env: startEnv}

	late := newTestClient("p4", 32)
	err := joinAs(t, g, late, "Di", false)
	if !errors.Is(err, errGameStarted) {
		t.Fatalf("err = %v, want errGameStarted", err)
	}

	reply := make(chan GameView, 1)
	g.Inbox() <- GetGameView{Reply: reply}
	if v := recvGameView(t, reply, time.Second); v.NumPlayers != 3 {
		t.Fatalf("refused join changed the roster: %d players", v.NumPlayers)
	}
	select {
	case <-late.done:
		t.Fatal("done closed for a player who never joined")
	default:
	}
}

func TestGame_JoinRefusedWhenFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := NewGame(ctx, "TEST08", zap.NewNop())

	for i := 0; i < maxPlayers; i++ {
		c := newTestClient(fmt.Sprintf("p%d", i), 64)
		if err := joinAs(t, g, c, fmt.Sprintf("Player%d", i), i == 0); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	extra := newTestClient("p9", 32)
	if err := joinAs(t, g, extra, "Ed", false); !errors.Is(err, errGameFull) {
		t.Fatalf("err = %v, want errGameFull", err)
	}
}
