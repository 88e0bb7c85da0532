package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names the change an ExpenseEvent announces.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	default:
		return false
	}
}

// ExpenseEvent is a lightweight change notification. It carries only the
// expense ID; consumers read the current row from the database.
type ExpenseEvent struct {
	MessageID string    `json:"message_id"`
	Type      EventType `json:"type"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent creates an event with a fresh message ID
func NewExpenseEvent(t EventType, id int64) *ExpenseEvent {
	return &ExpenseEvent{
		MessageID: uuid.NewString(),
		Type:      t,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes and validates an event.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.ID <= 0 {
		return nil, fmt.Errorf("invalid expense id %d", ev.ID)
	}
	return &ev, nil
}
