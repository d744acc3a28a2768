// internal/transport/outbox.go
//
// HTTP messenger between replicas.
// Responsibilities:
//   - Queue outbound envelopes so Send never waits on the peer.
//   - Drain the queue with a single worker, preserving send order.
//   - POST each envelope as JSON to <identity>/peer/inbox with a signed peer token.
//
// Notes:
//   - There are no retries; a failed post is logged and dropped.
//   - A full queue rejects the envelope instead of blocking the replica.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/game"
)

// InboxPath is where a replica accepts peer envelopes.
const InboxPath = "/peer/inbox"

var (
	ErrOutboxFull   = errors.New("outbox full")
	ErrOutboxClosed = errors.New("outbox closed")
)

// Outbox is a game.Messenger posting envelopes over HTTP.
type Outbox struct {
	client  *http.Client
	secret  []byte
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.RWMutex // guards closed and queue close
	closed bool
	queue  chan game.Envelope
	done   chan struct{}
}

// NewOutbox starts the delivery worker. Call Close to stop it.
func NewOutbox(secret []byte, size int, timeout time.Duration, log zerolog.Logger) *Outbox {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	o := &Outbox{
		client:  &http.Client{},
		secret:  secret,
		timeout: timeout,
		log:     log,
		queue:   make(chan game.Envelope, size),
		done:    make(chan struct{}),
	}
	go o.run()
	return o
}

// Send enqueues env for delivery to env.To.
func (o *Outbox) Send(ctx context.Context, env game.Envelope) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.queue <- env:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Close stops accepting envelopes and waits for queued ones to be posted.
func (o *Outbox) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	<-o.done
}

func (o *Outbox) run() {
	defer close(o.done)
	for env := range o.queue {
		if err := o.post(env); err != nil {
			o.log.Warn().Err(err).Str("id", env.ID).Str("to", env.To).Str("matchId", env.MatchID).Msg("peer delivery failed")
			continue
		}
		o.log.Debug().Str("id", env.ID).Str("kind", string(env.Message.Kind())).Str("to", env.To).Msg("delivered")
	}
}

func (o *Outbox) post(env game.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	tok, err := SignPeerToken(o.secret, env.From, env.ID, time.Now())
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, InboxURL(env.To), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("peer answered %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// InboxURL maps a replica identity (its base URL) to its inbox endpoint.
func InboxURL(identity string) string {
	return strings.TrimRight(identity, "/") + InboxPath
}
