package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types - Client → Server
const (
	EventTypeSetup      = "setup"
	EventTypeJoinChat   = "join chat"
	EventTypeLeaveChat  = "leave chat"
	EventTypeNewMessage = "new message"
)

// Event types - both directions. Typing events are relayed as received.
const (
	EventTypeTyping     = "typing"
	EventTypeStopTyping = "stop typing"
)

// Event types - Server → Client
const (
	EventTypeConnected       = "connected"
	EventTypeMessageSent     = "message sent"
	EventTypeMessageReceived = "message received"
	EventTypeError           = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type SetupPayload struct {
	UserID uuid.UUID `json:"_id"`
}

type NewMessagePayload struct {
	SenderID  uuid.UUID `json:"senderId"`
	Content   string    `json:"content"`
	ChatID    uuid.UUID `json:"chatId"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	MediaType string    `json:"mediaType,omitempty"`
}

// RoomPayload names a conversation room. Clients may also send the bare
// conversation id as a JSON string.
type RoomPayload struct {
	ChatID uuid.UUID  `json:"chatId"`
	UserID *uuid.UUID `json:"userId,omitempty"`
}

// --- Server → Client payloads ---

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

var (
	errMissingRoom    = errors.New("conversation id required")
	errMissingPayload = errors.New("payload required")
)

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errMissingPayload
	}
	return json.Unmarshal(raw, v)
}

func decodeRoom(raw json.RawMessage) (uuid.UUID, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return uuid.Parse(id)
	}

	var p RoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return uuid.Nil, err
	}
	if p.ChatID == uuid.Nil {
		return uuid.Nil, errMissingRoom
	}
	return p.ChatID, nil
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	evt := &Event{Type: eventType, Timestamp: time.Now().Unix()}
	if payload == nil {
		return evt, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	evt.Payload = data
	return evt, nil
}
