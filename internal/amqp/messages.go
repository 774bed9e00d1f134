package amqp

import (
	"encoding/json"
	"time"
)

// SectionSavedMessage announces that a section was persisted. Consumers
// re-read the document from the store, so the message only identifies what
// changed.
type SectionSavedMessage struct {
	Section    string    `json:"section"`
	Index      int       `json:"index"`
	TotalValue string    `json:"total_value"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewSectionSavedMessage(section string, index int, totalValue string) *SectionSavedMessage {
	return &SectionSavedMessage{
		Section:    section,
		Index:      index,
		TotalValue: totalValue,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SectionSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SectionSavedMessageFromJSON creates a message from JSON bytes
func SectionSavedMessageFromJSON(data []byte) (*SectionSavedMessage, error) {
	var msg SectionSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
