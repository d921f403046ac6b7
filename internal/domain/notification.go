package domain

import (
	"encoding/json"
	"time"
)

// Notification is a structured event addressed to a single user. It is
// delivered live when the target is connected and always persisted so an
// offline user sees it later. Deleted only by explicit acknowledgement.
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	OpCode    string          `json:"op_code"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}
