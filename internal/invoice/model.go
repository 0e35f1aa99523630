package invoice

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of a tax invoice.
type Status string

const (
	StatusIssued    Status = "ISSUED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// Line is one invoiced row. Quantities are guarded against the project's
// delivery balance at creation time.
type Line struct {
	ID         int64   `json:"id"`
	InvoiceID  int64   `json:"invoice_id"`
	ProductID  int64   `json:"product_id"`
	ProductSKU string  `json:"product_sku,omitempty"`
	Qty        float64 `json:"qty"`
	UnitPrice  float64 `json:"unit_price"`
	LineTotal  float64 `json:"line_total"`
}

// Invoice is an issued tax invoice against a project. Invoices are immutable
// once issued; corrections go through cancellation and re-issue.
type Invoice struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	ProjectID   int64     `json:"project_id"`
	ProjectCode string    `json:"project_code,omitempty"`
	CustomerID  int64     `json:"customer_id"`
	Status      Status    `json:"status"`
	IssueDate   time.Time `json:"issue_date"`
	DueDate     time.Time `json:"due_date"`
	TaxRate     float64   `json:"tax_rate"`
	Subtotal    float64   `json:"subtotal"`
	TaxAmount   float64   `json:"tax_amount"`
	Total       float64   `json:"total"`
	PaidAmount  float64   `json:"paid_amount"`
	Lines       []Line    `json:"lines"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Outstanding is the unpaid remainder.
func (i *Invoice) Outstanding() float64 {
	return round2(i.Total - i.PaidAmount)
}

// Payment is money received against an invoice.
type Payment struct {
	ID        int64     `json:"id"`
	InvoiceID int64     `json:"invoice_id"`
	Amount    float64   `json:"amount"`
	PaidAt    time.Time `json:"paid_at"`
	Method    string    `json:"method"`
	Reference string    `json:"reference"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recalculate derives line totals and header amounts from the lines.
func (i *Invoice) Recalculate() {
	var subtotal float64
	for idx := range i.Lines {
		l := &i.Lines[idx]
		l.LineTotal = round2(l.Qty * l.UnitPrice)
		subtotal += l.LineTotal
	}
	i.Subtotal = round2(subtotal)
	i.TaxAmount = round2(i.Subtotal * i.TaxRate / 100)
	i.Total = round2(i.Subtotal + i.TaxAmount)
}

// FormatNumber renders an invoice number: INV-{yyyy}-{seq:04d}.
func FormatNumber(issuedAt time.Time, seq int) string {
	return fmt.Sprintf("INV-%d-%04d", issuedAt.Year(), seq)
}

// ListRequest filters invoice listings.
type ListRequest struct {
	ProjectID  int64
	CustomerID int64
	Status     Status
	Page       int
	PerPage    int
}
