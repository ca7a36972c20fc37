package amqp

import (
	"encoding/json"
	"time"

	"gigledger/internal/core"
	"gigledger/internal/entitlement"
)

// RecordEventMessage is published after every committed mutation.
type RecordEventMessage struct {
	core.RecordEvent
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordEventMessage(ev core.RecordEvent) *RecordEventMessage {
	return &RecordEventMessage{RecordEvent: ev, Timestamp: time.Now()}
}

func (m *RecordEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordEventMessageFromJSON(data []byte) (*RecordEventMessage, error) {
	var msg RecordEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EntitlementMessage carries the active entitlement of one user. A nil
// Entitlement means the user has none.
type EntitlementMessage struct {
	UserID      string                   `json:"userId"`
	Entitlement *entitlement.Entitlement `json:"entitlement,omitempty"`
	Timestamp   time.Time                `json:"timestamp"`
}

func NewEntitlementMessage(userID string, e *entitlement.Entitlement) *EntitlementMessage {
	return &EntitlementMessage{UserID: userID, Entitlement: e, Timestamp: time.Now()}
}

func (m *EntitlementMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntitlementMessageFromJSON(data []byte) (*EntitlementMessage, error) {
	var msg EntitlementMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Status converts the message into an entitlement status.
func (m *EntitlementMessage) Status() entitlement.Status {
	return entitlement.StatusFromEntitlement(m.Entitlement)
}
