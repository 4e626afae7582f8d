// Package protocol defines the wire messages exchanged with the ordering
// agent and decodes inbound frames into typed events.
//
// Every inbound frame is an envelope {type, data?, delta?}. Unknown types
// and malformed payloads never fail the session: they decode to Unknown,
// which downstream consumers treat as a no-op.
package protocol

import (
	"encoding/json"

	"github.com/Nuwanga-Wijamuni/voice-order/internal/menu"
)

// Envelope type discriminators.
const (
	TypeText           = "text"
	TypeCarouselUpdate = "carousel_update"
	TypeCartUpdate     = "cart_update"
	TypeResponseDelta  = "response.text.delta"
	TypeResponseDone   = "response.text.done"
)

// TextMessage is the sole outbound message kind: a recognized utterance.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextMessage wraps an utterance for the wire.
func NewTextMessage(text string) TextMessage {
	return TextMessage{Type: TypeText, Text: text}
}

// Event is a decoded inbound frame.
type Event interface {
	eventType() string
}

// CarouselUpdate carries an authoritative carousel index.
type CarouselUpdate struct {
	Index int
}

func (CarouselUpdate) eventType() string { return TypeCarouselUpdate }

// CartUpdate carries an authoritative full cart replacement.
type CartUpdate struct {
	Cart []menu.Item
}

func (CartUpdate) eventType() string { return TypeCartUpdate }

// ResponseDelta appends streamed agent text.
type ResponseDelta struct {
	Delta string
}

func (ResponseDelta) eventType() string { return TypeResponseDelta }

// ResponseDone terminates a streamed agent turn.
type ResponseDone struct{}

func (ResponseDone) eventType() string { return TypeResponseDone }

// Unknown is any frame that carries no applicable update: unrecognized
// types, recognized types with missing required fields, and frames that do
// not parse at all (Type empty in that case).
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (e Unknown) eventType() string { return e.Type }

type inboundEnvelope struct {
	Type  string `json:"type"`
	Data  *struct {
		Index *int        `json:"index"`
		Cart  []menu.Item `json:"cart"`
	} `json:"data"`
	Delta *string `json:"delta"`
}

// Decode parses one inbound frame. It always returns a usable event; a
// malformed frame degrades to Unknown rather than an error so that a bad
// envelope can never take the session down.
func Decode(data []byte) Event {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Unknown{Raw: append(json.RawMessage(nil), data...)}
	}
	switch env.Type {
	case TypeCarouselUpdate:
		if env.Data == nil || env.Data.Index == nil {
			return Unknown{Type: env.Type}
		}
		return CarouselUpdate{Index: *env.Data.Index}
	case TypeCartUpdate:
		if env.Data == nil || env.Data.Cart == nil {
			return Unknown{Type: env.Type}
		}
		return CartUpdate{Cart: env.Data.Cart}
	case TypeResponseDelta:
		if env.Delta == nil || *env.Delta == "" {
			return Unknown{Type: env.Type}
		}
		return ResponseDelta{Delta: *env.Delta}
	case TypeResponseDone:
		return ResponseDone{}
	default:
		return Unknown{Type: env.Type, Raw: append(json.RawMessage(nil), data...)}
	}
}
