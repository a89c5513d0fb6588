package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is returned for frames that are not valid JSON envelopes.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownEvent is returned for frames naming an event clients may not send.
	ErrUnknownEvent = errors.New("unknown event")
)

// Frame is the JSON shape of every websocket text message.
type Frame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is a decoded client event. Exactly one of Join and Chat is set for
// join and chat-message events; typing events carry no payload.
type Inbound struct {
	Event EventName
	Join  *JoinRequest
	Chat  *ChatRequest
}

// Encode renders an envelope as a frame.
func Encode(env Envelope) ([]byte, error) {
	name := env.Kind.Event()
	if name == "" {
		return nil, fmt.Errorf("encode kind %d: %w", env.Kind, ErrUnknownEvent)
	}

	data, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}

	return json.Marshal(Frame{Event: name, Data: data})
}

// Decode parses a client frame and its payload. Payload content is not
// validated here; see Validator.
func Decode(raw []byte) (Inbound, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	in := Inbound{Event: frame.Event}
	switch frame.Event {
	case EventJoin:
		var join JoinRequest
		if err := decodeData(frame.Data, &join); err != nil {
			return Inbound{}, err
		}
		in.Join = &join
	case EventChatMessage:
		var chat ChatRequest
		if err := decodeData(frame.Data, &chat); err != nil {
			return Inbound{}, err
		}
		in.Chat = &chat
	case EventTypingStart, EventTypingStop:
	case "":
		return Inbound{}, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}
	return in, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformedFrame)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}
