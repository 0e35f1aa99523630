package delivery

import "time"

// Direction distinguishes outbound deliveries from customer returns.
type Direction string

const (
	DirectionDelivered Direction = "DELIVERED"
	DirectionReturned  Direction = "RETURNED"
)

// Valid reports whether the direction is known.
func (d Direction) Valid() bool {
	return d == DirectionDelivered || d == DirectionReturned
}

// Record is one delivery or return event for a product on a project. The
// running balance (delivered minus returned) caps what may be invoiced.
type Record struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	ProjectCode string    `json:"project_code,omitempty"`
	ProductID   int64     `json:"product_id"`
	ProductSKU  string    `json:"product_sku,omitempty"`
	Direction   Direction `json:"direction"`
	Qty         float64   `json:"qty"`
	DeliveredAt time.Time `json:"delivered_at"`
	Note        string    `json:"note"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Balance is the net delivered quantity for a product on a project.
type Balance struct {
	ProductID  int64   `json:"product_id"`
	ProductSKU string  `json:"product_sku"`
	Delivered  float64 `json:"delivered"`
	Returned   float64 `json:"returned"`
	Net        float64 `json:"net"`
}

// ListRequest filters delivery listings.
type ListRequest struct {
	ProjectID int64
	ProductID int64
	Direction Direction
	Page      int
	PerPage   int
}
