package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blackvienna/pkg/protocol"
)

var ErrChannelClosed = errors.New("channel closed")

const writeTimeout = 3 * time.Second

// WS is a Channel over one websocket connection. A reader goroutine decodes
// envelopes into the events channel; a writer goroutine drains the outbox so
// Send never blocks on the network.
type WS struct {
	conn   *websocket.Conn
	events chan protocol.Envelope
	outbox chan protocol.Envelope
	log    *zap.Logger
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Dial connects to the server's websocket endpoint and starts the pumps.
func Dial(ctx context.Context, url string, log *zap.Logger) (*WS, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)

	ws := &WS{
		conn:   conn,
		events: make(chan protocol.Envelope, 16),
		outbox: make(chan protocol.Envelope, 16),
		log:    log,
		cancel: cancel,
		group:  g,
	}

	g.Go(func() error { return ws.readLoop(gctx) })
	g.Go(func() error { return ws.writeLoop(gctx) })
	return ws, nil
}

func (ws *WS) Events() <-chan protocol.Envelope { return ws.events }

// Send queues one envelope for the writer goroutine.
func (ws *WS) Send(ctx context.Context, env protocol.Envelope) error {
	select {
	case ws.outbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears both pumps down and closes the connection.
func (ws *WS) Close() error {
	ws.cancel()
	err := ws.conn.Close(websocket.StatusNormalClosure, "bye")
	_ = ws.group.Wait()
	if err != nil && websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}
	return err
}

func (ws *WS) readLoop(ctx context.Context) error {
	defer close(ws.events)
	for {
		_, data, err := ws.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			ws.log.Warn("channel read failed", zap.Error(err))
			return err
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			ws.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}

		select {
		case ws.events <- env:
		case <-ctx.Done():
			return nil
		}
	}
}

func (ws *WS) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-ws.outbox:
			payload, err := json.Marshal(env)
			if err != nil {
				ws.log.Warn("dropping unencodable command", zap.String("type", env.Type), zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = ws.conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				ws.log.Warn("channel write failed", zap.String("type", env.Type), zap.Error(err))
				return err
			}
		}
	}
}
