package purchase

import (
	"fmt"
	"math"
	"time"
)

// RequestStatus is the lifecycle state of a purchase request.
type RequestStatus string

const (
	RequestDraft     RequestStatus = "DRAFT"
	RequestSubmitted RequestStatus = "SUBMITTED"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestClosed    RequestStatus = "CLOSED"
)

// OrderStatus is the lifecycle state of a purchase order.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "DRAFT"
	OrderIssued    OrderStatus = "ISSUED"
	OrderReceived  OrderStatus = "RECEIVED"
	OrderClosed    OrderStatus = "CLOSED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:    {OrderIssued, OrderCancelled},
	OrderIssued:   {OrderReceived, OrderCancelled},
	OrderReceived: {OrderClosed},
}

// CanTransition reports whether moving from s to next is allowed.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RFQStatus is the lifecycle state of a request for quotation.
type RFQStatus string

const (
	RFQSent   RFQStatus = "SENT"
	RFQClosed RFQStatus = "CLOSED"
)

// RFQ is a request for quotation sent to a single vendor for the lines of a
// purchase request. Issuing to several vendors creates one RFQ per vendor.
type RFQ struct {
	ID         int64     `json:"id"`
	Number     string    `json:"number"`
	RequestID  int64     `json:"request_id"`
	VendorID   int64     `json:"vendor_id"`
	VendorName string    `json:"vendor_name,omitempty"`
	Status     RFQStatus `json:"status"`
	SentAt     time.Time `json:"sent_at"`
	Note       string    `json:"note"`
}

// RequestLine is one requested item.
type RequestLine struct {
	ID          int64   `json:"id"`
	RequestID   int64   `json:"request_id"`
	ProductID   int64   `json:"product_id"`
	ProductSKU  string  `json:"product_sku,omitempty"`
	Qty         float64 `json:"qty"`
	EstUnitCost float64 `json:"est_unit_cost"`
	Note        string  `json:"note"`
}

// Request is an internal purchase request, routed through an approval chain
// before it may become an order.
type Request struct {
	ID          int64         `json:"id"`
	Number      string        `json:"number"`
	ProjectID   *int64        `json:"project_id,omitempty"`
	RequesterID int64         `json:"requester_id"`
	Status      RequestStatus `json:"status"`
	Notes       string        `json:"notes"`
	Lines       []RequestLine `json:"lines"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// OrderLine is one ordered item.
type OrderLine struct {
	ID         int64   `json:"id"`
	OrderID    int64   `json:"order_id"`
	ProductID  int64   `json:"product_id"`
	ProductSKU string  `json:"product_sku,omitempty"`
	Qty        float64 `json:"qty"`
	UnitCost   float64 `json:"unit_cost"`
	LineTotal  float64 `json:"line_total"`
}

// Order is a purchase order placed with a vendor, optionally tracing back to
// an approved purchase request.
type Order struct {
	ID         int64       `json:"id"`
	Number     string      `json:"number"`
	RequestID  *int64      `json:"request_id,omitempty"`
	VendorID   int64       `json:"vendor_id"`
	VendorName string      `json:"vendor_name,omitempty"`
	Status     OrderStatus `json:"status"`
	OrderDate  time.Time   `json:"order_date"`
	ExpectedAt *time.Time  `json:"expected_at,omitempty"`
	Total      float64     `json:"total"`
	Notes      string      `json:"notes"`
	Lines      []OrderLine `json:"lines"`
	CreatedBy  int64       `json:"created_by"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recalculate derives line totals and the order total from the lines.
func (o *Order) Recalculate() {
	var total float64
	for i := range o.Lines {
		l := &o.Lines[i]
		l.LineTotal = round2(l.Qty * l.UnitCost)
		total += l.LineTotal
	}
	o.Total = round2(total)
}

// FormatRequestNumber renders a PR number: PR-{yyyy}-{seq:04d}.
func FormatRequestNumber(at time.Time, seq int) string {
	return fmt.Sprintf("PR-%d-%04d", at.Year(), seq)
}

// FormatOrderNumber renders a PO number: PO-{yyyy}-{seq:04d}.
func FormatOrderNumber(at time.Time, seq int) string {
	return fmt.Sprintf("PO-%d-%04d", at.Year(), seq)
}

// FormatRFQNumber renders an RFQ number: RFQ-{yyyy}-{seq:04d}.
func FormatRFQNumber(at time.Time, seq int) string {
	return fmt.Sprintf("RFQ-%d-%04d", at.Year(), seq)
}

// RequestListRequest filters purchase request listings.
type RequestListRequest struct {
	Status      RequestStatus
	RequesterID int64
	Page        int
	PerPage     int
}

// OrderListRequest filters purchase order listings.
type OrderListRequest struct {
	Status   OrderStatus
	VendorID int64
	Page     int
	PerPage  int
}
