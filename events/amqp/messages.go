package amqp

import (
	"encoding/json"
	"time"

	"github.com/warp/budget-engine/ledger"
)

// EventMessage is the wire form of a ledger event.
type EventMessage struct {
	Type      ledger.EventType `json:"type"`
	ExpenseID string           `json:"expense_id,omitempty"`
	Period    string           `json:"period,omitempty"`
	At        time.Time        `json:"at"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewEventMessage converts a ledger event.
func NewEventMessage(e ledger.Event) *EventMessage {
	msg := &EventMessage{
		Type:      e.Type,
		ExpenseID: e.ExpenseID,
		At:        e.At,
		Timestamp: time.Now(),
	}
	if !e.Period.IsZero() {
		msg.Period = e.Period.String()
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
