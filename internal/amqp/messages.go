package amqp

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage tells the worker that an account's ledger grew. It
// carries only identifiers; the worker recomputes from the database.
type LedgerChangedMessage struct {
	UserID    int64     `json:"user_id"`
	AccountID int64     `json:"account_id"`
	Inserted  int       `json:"inserted"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(userID, accountID int64, inserted int) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		UserID:    userID,
		AccountID: accountID,
		Inserted:  inserted,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
