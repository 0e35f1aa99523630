package quotation

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of a quotation.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
)

var transitions = map[Status][]Status{
	StatusDraft:    {StatusPending},
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusSent},
	StatusSent:     {StatusAccepted},
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

// Line is one priced row on a quotation.
type Line struct {
	ID          int64   `json:"id"`
	QuotationID int64   `json:"quotation_id"`
	ProductID   int64   `json:"product_id"`
	ProductSKU  string  `json:"product_sku,omitempty"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
	DiscountPct float64 `json:"discount_pct"`
	LineTotal   float64 `json:"line_total"`
}

// Quotation is a priced offer against a project. Revisions of the same
// project share the project but carry increasing version numbers; only the
// latest version is editable.
type Quotation struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	ProjectID   int64      `json:"project_id"`
	ProjectCode string     `json:"project_code,omitempty"`
	CustomerID  int64      `json:"customer_id"`
	Version     int        `json:"version"`
	Status      Status     `json:"status"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	Notes       string     `json:"notes"`
	TaxRate     float64    `json:"tax_rate"`
	Subtotal    float64    `json:"subtotal"`
	TaxAmount   float64    `json:"tax_amount"`
	Total       float64    `json:"total"`
	Lines       []Line     `json:"lines"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// round2 rounds to 2 decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recalculate derives line totals and header amounts from the lines.
func (q *Quotation) Recalculate() {
	var subtotal float64
	for i := range q.Lines {
		l := &q.Lines[i]
		gross := l.Qty * l.UnitPrice
		l.LineTotal = round2(gross * (1 - l.DiscountPct/100))
		subtotal += l.LineTotal
	}
	q.Subtotal = round2(subtotal)
	q.TaxAmount = round2(q.Subtotal * q.TaxRate / 100)
	q.Total = round2(q.Subtotal + q.TaxAmount)
}

// FormatNumber renders a quotation number: QT-{yyyy}-{seq:04d}.
func FormatNumber(issuedAt time.Time, seq int) string {
	return fmt.Sprintf("QT-%d-%04d", issuedAt.Year(), seq)
}

// ListRequest filters quotation listings.
type ListRequest struct {
	ProjectID  int64
	CustomerID int64
	Status     Status
	Page       int
	PerPage    int
}
