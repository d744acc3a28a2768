// internal/game/messages.go
//
// Wire schema for replica-to-replica messages.
//
// Every message travels inside an Envelope that names the sender, the
// addressee, and the match it concerns (empty for JoinRequest, which precedes
// any shared match). The payload is encoded as JSON under "payload" with its
// kind alongside, so transports only ever move Envelope bytes.

package game

import (
	"encoding/json"
	"fmt"
)

// MessageKind tags the payload carried by an Envelope.
type MessageKind string

const (
	KindJoinRequest      MessageKind = "join_request"
	KindInitialStateSync MessageKind = "initial_state_sync"
	KindWordSubmitted    MessageKind = "word_submitted"
	KindRoundSync        MessageKind = "round_sync"
	KindLeaveNotice      MessageKind = "leave_notice"
)

// Message is one of the payload types below.
type Message interface {
	Kind() MessageKind
}

// JoinRequest asks a host to seat the requester as guest.
type JoinRequest struct {
	RequesterID string `json:"requesterId"`
	DisplayName string `json:"displayName"`
}

// InitialStateSync hands the freshly joined guest the full match.
type InitialStateSync struct {
	Game *Match `json:"game"`
}

// WordSubmitted carries one participant's word for a round.
type WordSubmitted struct {
	Round uint32 `json:"round"`
	Word  string `json:"word"`
}

// RoundSync is the host's post-resolution snapshot.
type RoundSync struct {
	Game *Match `json:"game"`
}

// LeaveNotice tells the opponent the sender walked away.
type LeaveNotice struct {
	SenderID string `json:"senderId"`
}

func (JoinRequest) Kind() MessageKind      { return KindJoinRequest }
func (InitialStateSync) Kind() MessageKind { return KindInitialStateSync }
func (WordSubmitted) Kind() MessageKind    { return KindWordSubmitted }
func (RoundSync) Kind() MessageKind        { return KindRoundSync }
func (LeaveNotice) Kind() MessageKind      { return KindLeaveNotice }

// Envelope addresses a Message to a replica.
type Envelope struct {
	ID      string  `json:"id"`
	From    string  `json:"from"`
	To      string  `json:"to"`
	MatchID string  `json:"matchId,omitempty"`
	Message Message `json:"-"`
}

type envelopeWire struct {
	ID      string          `json:"id"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	MatchID string          `json:"matchId,omitempty"`
	Kind    MessageKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the envelope with a kind tag and raw payload.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Message == nil {
		return nil, fmt.Errorf("envelope %s: %w", e.ID, ErrUnknownMessage)
	}
	payload, err := json.Marshal(e.Message)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Message.Kind(), err)
	}
	return json.Marshal(envelopeWire{
		ID:      e.ID,
		From:    e.From,
		To:      e.To,
		MatchID: e.MatchID,
		Kind:    e.Message.Kind(),
		Payload: payload,
	})
}

// UnmarshalJSON decodes the payload according to its kind tag.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var w envelopeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var msg Message
	switch w.Kind {
	case KindJoinRequest:
		var m JoinRequest
		if err := json.Unmarshal(w.Payload, &m); err != nil {
			return fmt.Errorf("decode %s: %w", w.Kind, err)
		}
		msg = m
	case KindInitialStateSync:
		var m InitialStateSync
		if err := json.Unmarshal(w.Payload, &m); err != nil {
			return fmt.Errorf("decode %s: %w", w.Kind, err)
		}
		msg = m
	case KindWordSubmitted:
		var m WordSubmitted
		if err := json.Unmarshal(w.Payload, &m); err != nil {
			return fmt.Errorf("decode %s: %w", w.Kind, err)
		}
		msg = m
	case KindRoundSync:
		var m RoundSync
		if err := json.Unmarshal(w.Payload, &m); err != nil {
			return fmt.Errorf("decode %s: %w", w.Kind, err)
		}
		msg = m
	case KindLeaveNotice:
		var m LeaveNotice
		if err := json.Unmarshal(w.Payload, &m); err != nil {
			return fmt.Errorf("decode %s: %w", w.Kind, err)
		}
		msg = m
	default:
		return fmt.Errorf("kind %q: %w", w.Kind, ErrUnknownMessage)
	}
	*e = Envelope{ID: w.ID, From: w.From, To: w.To, MatchID: w.MatchID, Message: msg}
	return nil
}
