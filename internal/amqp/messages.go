package amqp

import (
	"encoding/json"
	"time"
)

// SummariesWrittenMessage announces that an account's spending summaries
// were rewritten. Consumers re-read the summaries from the store; the message
// only carries identifiers and counts.
type SummariesWrittenMessage struct {
	RunID     string    `json:"run_id"`
	AccountID string    `json:"account_id"`
	Months    int       `json:"months"`
	Days      int       `json:"days"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSummariesWrittenMessage creates a message stamped with the current time
func NewSummariesWrittenMessage(runID, accountID string, months, days int) *SummariesWrittenMessage {
	return &SummariesWrittenMessage{
		RunID:     runID,
		AccountID: accountID,
		Months:    months,
		Days:      days,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SummariesWrittenMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SummariesWrittenMessageFromJSON creates a message from JSON bytes
func SummariesWrittenMessageFromJSON(data []byte) (*SummariesWrittenMessage, error) {
	var msg SummariesWrittenMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
