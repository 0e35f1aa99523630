package report

import "time"

// ProjectSummary is the financial rollup for one project.
type ProjectSummary struct {
	ProjectID   int64   `json:"project_id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Customer    string  `json:"customer"`
	Status      string  `json:"status"`
	Quoted      float64 `json:"quoted"`
	Invoiced    float64 `json:"invoiced"`
	Paid        float64 `json:"paid"`
	Outstanding float64 `json:"outstanding"`
}

// Dashboard is the landing-page rollup.
type Dashboard struct {
	OpenProjects      int     `json:"open_projects"`
	PendingApprovals  int     `json:"pending_approvals"`
	OpenInvoices      int     `json:"open_invoices"`
	ReceivableTotal   float64 `json:"receivable_total"`
	PayableTotal      float64 `json:"payable_total"`
	InvoicedThisMonth float64 `json:"invoiced_this_month"`
}

// Snapshot wraps a cached report payload with its build time.
type Snapshot[T any] struct {
	BuiltAt time.Time `json:"built_at"`
	Data    T         `json:"data"`
}
