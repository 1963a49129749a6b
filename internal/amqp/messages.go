package amqp

import (
	"encoding/json"
	"time"
)

// RefreshMessage asks the worker to refetch analysis results. Kinds lists
// the analysis kinds to refresh; an empty list means all of them. Reason is
// free text recorded for the refresh log.
type RefreshMessage struct {
	Kinds     []string  `json:"kinds"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRefreshMessage creates a refresh request for the given kinds.
func NewRefreshMessage(kinds []string, reason string) *RefreshMessage {
	return &RefreshMessage{
		Kinds:     kinds,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshMessageFromJSON creates a message from JSON bytes
func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
