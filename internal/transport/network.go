package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robalobadob/wordduel/internal/game"
)

var ErrUnknownPeer = errors.New("unknown peer")

// Deliverer accepts inbound envelopes; *game.Replica satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, env game.Envelope) error
}

// Network is an in-process game.Messenger for tests and single-process
// harnesses. Sends are queued in one FIFO and handed to the addressed replica
// by Pump, never from inside Send.
type Network struct {
	mu    sync.Mutex
	nodes map[string]Deliverer
	queue []game.Envelope
}

func NewNetwork() *Network {
	return &Network{nodes: make(map[string]Deliverer)}
}

// Attach registers a replica under its identity.
func (n *Network) Attach(id string, d Deliverer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes[id] = d
}

// Detach removes a replica; later sends to it fail.
func (n *Network) Detach(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.nodes, id)
}

// Send queues env for its addressee.
func (n *Network) Send(_ context.Context, env game.Envelope) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.nodes[env.To]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, env.To)
	}
	n.queue = append(n.queue, env)
	return nil
}

// Pending reports how many envelopes are waiting.
func (n *Network) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Pump delivers queued envelopes, including ones produced while pumping,
// until the queue is empty. Delivery errors are collected, not fatal.
func (n *Network) Pump(ctx context.Context) (int, error) {
	var (
		delivered int
		errs      []error
	)
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return delivered, errors.Join(errs...)
		}
		env := n.queue[0]
		n.queue = n.queue[1:]
		node, ok := n.nodes[env.To]
		n.mu.Unlock()

		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownPeer, env.To))
			continue
		}
		if err := node.Deliver(ctx, env); err != nil {
			errs = append(errs, fmt.Errorf("deliver %s to %s: %w", env.ID, env.To, err))
			continue
		}
		delivered++
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
	}
}
