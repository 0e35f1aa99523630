package approval

import "time"

// Status of an approval request or a single step within it.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Step is one level in an ordered approval chain. Steps act strictly in
// level order; a rejection at any level closes the whole request.
type Step struct {
	ID           int64      `json:"id"`
	RequestID    int64      `json:"request_id"`
	Level        int        `json:"level"`
	ApproverID   int64      `json:"approver_id"`
	ApproverName string     `json:"approver_name,omitempty"`
	Status       Status     `json:"status"`
	Note         string     `json:"note,omitempty"`
	ActedAt      *time.Time `json:"acted_at,omitempty"`
}

// Request is an approval chain bound to a business document.
type Request struct {
	ID           int64     `json:"id"`
	EntityKind   string    `json:"entity_kind"`
	EntityID     int64     `json:"entity_id"`
	Status       Status    `json:"status"`
	CurrentLevel int       `json:"current_level"`
	RequestedBy  int64     `json:"requested_by"`
	Steps        []Step    `json:"steps"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CurrentStep returns the pending step the chain is waiting on, or nil once
// the request is closed.
func (r *Request) CurrentStep() *Step {
	if r.Status != StatusPending {
		return nil
	}
	for i := range r.Steps {
		if r.Steps[i].Level == r.CurrentLevel {
			return &r.Steps[i]
		}
	}
	return nil
}

// Entity kinds routed through approval chains.
const (
	EntityQuotation       = "quotation"
	EntityPurchaseRequest = "purchase_request"
)

// ListRequest filters approval listings.
type ListRequest struct {
	EntityKind string
	Status     Status
	ApproverID int64
	Page       int
	PerPage    int
}
