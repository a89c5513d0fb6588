package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Chat_Frame(t *testing.T) {
	req := require.New(t)
	ts := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	raw, err := Encode(Envelope{
		Kind: KindChat,
		Payload: ChatPayload{
			Username:  "Ann",
			Avatar:    "cat",
			Color:     "#336699",
			Message:   "hi",
			Timestamp: ts,
		},
		Timestamp: ts,
		Scope:     ScopeAll(),
	})
	req.NoError(err)

	var frame map[string]any
	req.NoError(json.Unmarshal(raw, &frame))
	req.Equal("chat-message", frame["event"])
	data := frame["data"].(map[string]any)
	req.Equal("Ann", data["username"])
	req.Equal("hi", data["message"])
	req.Equal("2026-10-17T12:00:00Z", data["timestamp"])
}

func TestEncode_Wire_Names(t *testing.T) {
	tests := []struct {
		kind  Kind
		event string
	}{
		{KindChat, "chat-message"},
		{KindTypingStart, "user-typing"},
		{KindTypingStop, "user-stop-typing"},
		{KindPresenceJoined, "presence-joined"},
		{KindPresenceLeft, "presence-left"},
		{KindUserCount, "user-count"},
		{KindWelcome, "welcome"},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			raw, err := Encode(Envelope{Kind: tt.kind, Payload: struct{}{}})
			require.NoError(t, err)
			var frame Frame
			require.NoError(t, json.Unmarshal(raw, &frame))
			assert.Equal(t, EventName(tt.event), frame.Event)
			assert.Equal(t, tt.event, tt.kind.String())
		})
	}
}

func TestEncode_Presence_Field_Names(t *testing.T) {
	req := require.New(t)

	raw, err := Encode(Envelope{Kind: KindPresenceLeft, Payload: PresencePayload{Message: "Bo left the chat", UserCount: 1}})

	req.NoError(err)
	req.JSONEq(`{"event":"presence-left","data":{"message":"Bo left the chat","userCount":1}}`, string(raw))
}

func TestEncode_Unknown_Kind(t *testing.T) {
	_, err := Encode(Envelope{Kind: Kind(99)})
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		event   EventName
		wantErr error
	}{
		{name: "join", raw: `{"event":"join","data":{"username":"Ann","avatar":"a","color":"red"}}`, event: EventJoin},
		{name: "chat", raw: `{"event":"chat-message","data":{"message":"hi","username":"spoof"}}`, event: EventChatMessage},
		{name: "typing start", raw: `{"event":"typing-start","data":{}}`, event: EventTypingStart},
		{name: "typing stop without data", raw: `{"event":"typing-stop"}`, event: EventTypingStop},
		{name: "not json", raw: `hello`, wantErr: ErrMalformedFrame},
		{name: "missing event", raw: `{"data":{}}`, wantErr: ErrMalformedFrame},
		{name: "join without data", raw: `{"event":"join"}`, wantErr: ErrMalformedFrame},
		{name: "chat with wrong type", raw: `{"event":"chat-message","data":{"message":5}}`, wantErr: ErrMalformedFrame},
		{name: "server event from client", raw: `{"event":"user-count","data":{"count":9}}`, wantErr: ErrUnknownEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Decode([]byte(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.event, in.Event)
		})
	}
}

func TestDecode_Payloads(t *testing.T) {
	req := require.New(t)

	in, err := Decode([]byte(`{"event":"join","data":{"username":"Ann","avatar":"cat","color":"#fff"}}`))
	req.NoError(err)
	req.NotNil(in.Join)
	req.Equal(JoinRequest{Username: "Ann", Avatar: "cat", Color: "#fff"}, *in.Join)

	in, err = Decode([]byte(`{"event":"chat-message","data":{"message":"hi"}}`))
	req.NoError(err)
	req.NotNil(in.Chat)
	req.Equal("hi", in.Chat.Message)
}

func TestValidator_Join(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name    string
		in      JoinRequest
		want    string
		wantErr bool
	}{
		{name: "trims username", in: JoinRequest{Username: "  Ann "}, want: "Ann"},
		{name: "empty username", in: JoinRequest{Username: "   "}, wantErr: true},
		{name: "long username", in: JoinRequest{Username: strings.Repeat("x", 33)}, wantErr: true},
		{name: "multibyte username at limit", in: JoinRequest{Username: strings.Repeat("é", 32)}, want: strings.Repeat("é", 32)},
		{name: "long color", in: JoinRequest{Username: "Ann", Color: strings.Repeat("c", 33)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Join(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Username)
		})
	}
}

func TestValidator_Chat(t *testing.T) {
	req := require.New(t)
	v := NewValidator()

	got, err := v.Chat(ChatRequest{Message: " hi "})
	req.NoError(err)
	req.Equal("hi", got.Message)

	_, err = v.Chat(ChatRequest{Message: "\n\t"})
	req.ErrorIs(err, ErrInvalidPayload)

	_, err = v.Chat(ChatRequest{Message: strings.Repeat("m", 1001)})
	req.ErrorIs(err, ErrInvalidPayload)
}

func TestScope_String(t *testing.T) {
	assert.Equal(t, "all", ScopeAll().String())
	assert.Equal(t, "all-except(a)", ScopeAllExcept("a").String())
	assert.Equal(t, "only(b)", ScopeOnly("b").String())
}
