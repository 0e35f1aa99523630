package audit

import (
	"encoding/json"
	"time"
)

// Entry is one immutable audit log row.
type Entry struct {
	ID        int64           `json:"id"`
	ActorID   int64           `json:"actor_id"`
	ActorName string          `json:"actor_name,omitempty"`
	Action    string          `json:"action"`
	Entity    string          `json:"entity"`
	EntityID  string          `json:"entity_id"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	At        time.Time       `json:"occurred_at"`
}

// ListRequest filters audit listings.
type ListRequest struct {
	ActorID  int64
	Entity   string
	EntityID string
	Action   string
	From     time.Time
	To       time.Time
	Page     int
	PerPage  int
}
