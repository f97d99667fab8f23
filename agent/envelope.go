package agent

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the kind of envelope.
type MessageType string

const (
	TypeInit             MessageType = "init"
	TypeUser             MessageType = "user"
	TypeAgentPartial     MessageType = "agent_partial"
	TypeAgentFinal       MessageType = "agent_final"
	TypeLoadCode         MessageType = "load_code"
	TypeEditCode         MessageType = "edit_code"
	TypeUpdateInProgress MessageType = "update_in_progress"
	TypeUpdateFile       MessageType = "update_file"
	TypeUpdateCompleted  MessageType = "update_completed"
)

// Message is the wire envelope exchanged with the client. Messages are
// immutable once created.
type Message struct {
	ID        string         `json:"id"`
	Timestamp int64          `json:"timestamp"` // milliseconds since epoch
	Type      MessageType    `json:"type"`
	Data      map[string]any `json:"data"`
}

// Sink receives envelopes in emission order. An error aborts the operation
// that is emitting.
type Sink func(Message) error

// NewMessage creates an envelope with a fresh id.
func NewMessage(t MessageType, data map[string]any) Message {
	return NewMessageWithID(uuid.NewString(), t, data)
}

// NewMessageWithID creates an envelope that continues the logical unit
// identified by id, such as the partial and final parts of one plan.
func NewMessageWithID(id string, t MessageType, data map[string]any) Message {
	if data == nil {
		data = map[string]any{}
	}
	return Message{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Type:      t,
		Data:      data,
	}
}

// EmptyAck is the reply to a request of unknown type. It encodes as {}.
func EmptyAck() Message {
	return Message{}
}

// IsEmpty reports whether m is an empty acknowledgement.
func (m Message) IsEmpty() bool {
	return m.ID == "" && m.Type == "" && m.Timestamp == 0 && len(m.Data) == 0
}

// Text returns data.text, the field carrying free text in user, plan and
// progress envelopes.
func (m Message) Text() string {
	s, _ := m.Data["text"].(string)
	return s
}

// Field returns data[key] when it is a string.
func (m Message) Field(key string) string {
	s, _ := m.Data[key].(string)
	return s
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.IsEmpty() {
		return []byte("{}"), nil
	}
	type wire Message
	return json.Marshal(wire(m))
}
