package realtime

import (
	"encoding/json"
	"time"
)

// Inbound intents.
const (
	EventJoinRoom      = "join_room"
	EventLeaveRoom     = "leave_room"
	EventSendMessage   = "send_message"
	EventEditMessage   = "edit_message"
	EventDeleteMessage = "delete_message"
	EventPing          = "ping"
)

// Outbound events.
const (
	EventReceiveMessage = "receive_message"
	EventPong           = "pong"
	EventError          = "error"
)

// Event is the envelope of every frame in both directions.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type RoomPayload struct {
	ChatID string `json:"chatId"`
}

type SendMessagePayload struct {
	ChatID     string  `json:"chatId"`
	Text       *string `json:"text,omitempty"`
	Attachment *string `json:"attachment,omitempty"`
}

type EditMessagePayload struct {
	MessageID  string  `json:"messageId"`
	Text       *string `json:"text,omitempty"`
	Attachment *string `json:"attachment,omitempty"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

// --- Server → Client payloads ---

type ErrorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Intent  string            `json:"intent,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Encode builds a server→client frame with the current timestamp.
func Encode(eventType string, payload any) ([]byte, error) {
	evt := Event{Type: eventType, Timestamp: time.Now().Unix()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Payload = data
	}
	return json.Marshal(evt)
}
