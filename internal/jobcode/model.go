package jobcode

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a project.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// transitions lists the allowed status moves.
var transitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Project is a unit of work tracked under a generated job code. Every
// downstream document (quotation, delivery, invoice) hangs off a project.
type Project struct {
	ID           int64      `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	CustomerID   int64      `json:"customer_id"`
	CustomerName string     `json:"customer_name,omitempty"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	StartDate    time.Time  `json:"start_date"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	CreatedBy    int64      `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FormatCode renders a job code for the given registration date and yearly
// sequence number: WK2{yy}-{seq:04d}-{MMdd}.
func FormatCode(registeredAt time.Time, seq int) string {
	return fmt.Sprintf("WK2%02d-%04d-%s", registeredAt.Year()%100, seq, registeredAt.Format("0102"))
}

// Summary is the financial rollup for one project: the accepted quotation
// value against what has been invoiced and paid so far.
type Summary struct {
	ProjectID   int64   `json:"project_id"`
	Code        string  `json:"code"`
	Quoted      float64 `json:"quoted"`
	Invoiced    float64 `json:"invoiced"`
	Paid        float64 `json:"paid"`
	Outstanding float64 `json:"outstanding"`
}

// ListRequest filters project listings.
type ListRequest struct {
	Status     Status
	CustomerID int64
	Search     string
	Page       int
	PerPage    int
}
