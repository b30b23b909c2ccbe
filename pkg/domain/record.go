package domain

import (
	"encoding/json"
	"time"
)

// Record is a persisted diagnosis result.
// Only final results are persisted, never the intermediate tag tree.
type Record struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Source    string          `json:"source,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}
