package ar

import (
	"context"
	"fmt"
	"time"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Service computes receivable aging and customer statements.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// AgingReport buckets all outstanding invoices per customer as of the given
// date. A zero asOf means today.
func (s *Service) AgingReport(ctx context.Context, asOf time.Time) ([]Aging, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	rows, err := s.repo.OpenRows(ctx, 0, asOf)
	if err != nil {
		return nil, fmt.Errorf("ar aging: %w", err)
	}

	byCustomer := map[int64]*Aging{}
	var order []int64
	for _, row := range rows {
		a, ok := byCustomer[row.CustomerID]
		if !ok {
			a = &Aging{CustomerID: row.CustomerID, CustomerName: row.CustomerName}
			byCustomer[row.CustomerID] = a
			order = append(order, row.CustomerID)
		}
		a.Add(row.Item.Bucket, row.Item.Outstanding)
	}

	report := make([]Aging, 0, len(order))
	for _, id := range order {
		report = append(report, *byCustomer[id])
	}
	return report, nil
}

// Statement lists the open items for one customer with bucketed totals.
func (s *Service) Statement(ctx context.Context, customerID int64, asOf time.Time) (*Statement, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer id required", shared.ErrValidation)
	}
	if asOf.IsZero() {
		asOf = s.now()
	}

	rows, err := s.repo.OpenRows(ctx, customerID, asOf)
	if err != nil {
		return nil, fmt.Errorf("ar statement: %w", err)
	}

	st := &Statement{CustomerID: customerID, AsOf: asOf}
	st.Aging.CustomerID = customerID
	for _, row := range rows {
		st.CustomerName = row.CustomerName
		st.Aging.CustomerName = row.CustomerName
		st.Items = append(st.Items, row.Item)
		st.Aging.Add(row.Item.Bucket, row.Item.Outstanding)
	}
	return st, nil
}
