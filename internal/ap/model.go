package ap

import "time"

// BillStatus is the lifecycle state of a vendor bill.
type BillStatus string

const (
	BillOpen      BillStatus = "OPEN"
	BillPaid      BillStatus = "PAID"
	BillCancelled BillStatus = "CANCELLED"
)

// Bill is a payable registered from a vendor's invoice document.
type Bill struct {
	ID              int64      `json:"id"`
	BillNo          string     `json:"bill_no"`
	VendorID        int64      `json:"vendor_id"`
	VendorName      string     `json:"vendor_name,omitempty"`
	PurchaseOrderID *int64     `json:"purchase_order_id,omitempty"`
	Status          BillStatus `json:"status"`
	IssueDate       time.Time  `json:"issue_date"`
	DueDate         time.Time  `json:"due_date"`
	Amount          float64    `json:"amount"`
	PaidAmount      float64    `json:"paid_amount"`
	Notes           string     `json:"notes"`
	CreatedBy       int64      `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Outstanding is the unpaid remainder.
func (b *Bill) Outstanding() float64 {
	return b.Amount - b.PaidAmount
}

// Payment is money paid out against a bill.
type Payment struct {
	ID        int64     `json:"id"`
	BillID    int64     `json:"bill_id"`
	Amount    float64   `json:"amount"`
	PaidAt    time.Time `json:"paid_at"`
	Method    string    `json:"method"`
	Reference string    `json:"reference"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// VendorAging is the bucketed outstanding payable balance for one vendor.
type VendorAging struct {
	VendorID   int64   `json:"vendor_id"`
	VendorName string  `json:"vendor_name"`
	Current    float64 `json:"current"`
	Days1to30  float64 `json:"days_1_30"`
	Days31to60 float64 `json:"days_31_60"`
	Days61to90 float64 `json:"days_61_90"`
	Over90     float64 `json:"over_90"`
	Total      float64 `json:"total"`
}

// Add accumulates an outstanding amount into the right bucket.
func (a *VendorAging) Add(bucket string, amount float64) {
	switch bucket {
	case "CURRENT":
		a.Current += amount
	case "1_30":
		a.Days1to30 += amount
	case "31_60":
		a.Days31to60 += amount
	case "61_90":
		a.Days61to90 += amount
	case "OVER_90":
		a.Over90 += amount
	}
	a.Total += amount
}

// ListRequest filters bill listings.
type ListRequest struct {
	VendorID int64
	Status   BillStatus
	Page     int
	PerPage  int
}
