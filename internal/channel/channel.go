// Package channel is the event channel between the client and the game
// server: named commands out, named events in, delivered in arrival order.
// Reconnection is not handled here; a dead channel stays dead and its event
// stream closes.
package channel

import (
	"context"

	"blackvienna/pkg/protocol"
)

// Channel is what the session controller talks through. Send is
// fire-and-forget: it queues the command and returns; all effects come back
// later as ordinary events.
type Channel interface {
	Send(ctx context.Context, env protocol.Envelope) error
	Events() <-chan protocol.Envelope
	Close() error
}
