package ar

import "time"

// Bucket labels for receivable aging. Classification is by days past due at
// the report date; invoices not yet due fall into Current.
const (
	BucketCurrent = "CURRENT"
	Bucket1to30   = "1_30"
	Bucket31to60  = "31_60"
	Bucket61to90  = "61_90"
	BucketOver90  = "OVER_90"
)

// BucketFor classifies an outstanding amount by its due date.
func BucketFor(asOf, dueDate time.Time) string {
	days := int(asOf.Sub(dueDate).Hours() / 24)
	switch {
	case days <= 0:
		return BucketCurrent
	case days <= 30:
		return Bucket1to30
	case days <= 60:
		return Bucket31to60
	case days <= 90:
		return Bucket61to90
	default:
		return BucketOver90
	}
}

// Aging is the bucketed outstanding balance for one customer.
type Aging struct {
	CustomerID   int64   `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	Current      float64 `json:"current"`
	Days1to30    float64 `json:"days_1_30"`
	Days31to60   float64 `json:"days_31_60"`
	Days61to90   float64 `json:"days_61_90"`
	Over90       float64 `json:"over_90"`
	Total        float64 `json:"total"`
}

// Add accumulates an outstanding amount into the right bucket.
func (a *Aging) Add(bucket string, amount float64) {
	switch bucket {
	case BucketCurrent:
		a.Current += amount
	case Bucket1to30:
		a.Days1to30 += amount
	case Bucket31to60:
		a.Days31to60 += amount
	case Bucket61to90:
		a.Days61to90 += amount
	case BucketOver90:
		a.Over90 += amount
	}
	a.Total += amount
}

// OpenItem is one unpaid invoice on a customer statement.
type OpenItem struct {
	InvoiceID   int64     `json:"invoice_id"`
	Number      string    `json:"number"`
	ProjectCode string    `json:"project_code"`
	IssueDate   time.Time `json:"issue_date"`
	DueDate     time.Time `json:"due_date"`
	Total       float64   `json:"total"`
	PaidAmount  float64   `json:"paid_amount"`
	Outstanding float64   `json:"outstanding"`
	Bucket      string    `json:"bucket"`
}

// Statement is the open-item list for one customer.
type Statement struct {
	CustomerID   int64      `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	AsOf         time.Time  `json:"as_of"`
	Items        []OpenItem `json:"items"`
	Aging        Aging      `json:"aging"`
}
