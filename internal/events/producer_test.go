package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
)

func TestEncode(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := &domain.Message{ID: uuid.New(), ChatID: uuid.New(), SenderID: uuid.New(), Text: "hi", CreatedAt: now, UpdatedAt: now}

	record, err := encode("message.created", msg, now)
	if err != nil {
		t.Fatal(err)
	}
	if string(record.Key) != msg.ChatID.String() {
		t.Fatalf("key = %q, want chat id", record.Key)
	}

	var got struct {
		Kind    string         `json:"kind"`
		Message map[string]any `json:"message"`
	}
	if err := json.Unmarshal(record.Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != "message.created" || got.Message["text"] != "hi" || got.Message["isEdited"] != false {
		t.Fatalf("payload = %s", record.Value)
	}
}
