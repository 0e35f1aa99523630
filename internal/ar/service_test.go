package ar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

type mockRepository struct {
	rows []OpenRow
}

func (m *mockRepository) OpenRows(ctx context.Context, customerID int64, asOf time.Time) ([]OpenRow, error) {
	var out []OpenRow
	for _, row := range m.rows {
		if customerID != 0 && row.CustomerID != customerID {
			continue
		}
		row.Item.Bucket = BucketFor(asOf, row.Item.DueDate)
		out = append(out, row)
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBucketFor(t *testing.T) {
	asOf := day("2026-08-25")

	require.Equal(t, BucketCurrent, BucketFor(asOf, day("2026-09-01")))
	require.Equal(t, BucketCurrent, BucketFor(asOf, day("2026-08-25")))
	require.Equal(t, Bucket1to30, BucketFor(asOf, day("2026-08-24")))
	require.Equal(t, Bucket1to30, BucketFor(asOf, day("2026-07-26")))
	require.Equal(t, Bucket31to60, BucketFor(asOf, day("2026-07-25")))
	require.Equal(t, Bucket31to60, BucketFor(asOf, day("2026-06-26")))
	require.Equal(t, Bucket61to90, BucketFor(asOf, day("2026-06-25")))
	require.Equal(t, Bucket61to90, BucketFor(asOf, day("2026-05-27")))
	require.Equal(t, BucketOver90, BucketFor(asOf, day("2026-05-26")))
	require.Equal(t, BucketOver90, BucketFor(asOf, day("2025-01-01")))
}

func TestAgingAdd(t *testing.T) {
	var a Aging
	a.Add(BucketCurrent, 100)
	a.Add(Bucket1to30, 50)
	a.Add(Bucket1to30, 25)
	a.Add(BucketOver90, 10)

	require.Equal(t, 100.0, a.Current)
	require.Equal(t, 75.0, a.Days1to30)
	require.Equal(t, 10.0, a.Over90)
	require.Equal(t, 185.0, a.Total)
}

func TestAgingReportGroupsByCustomer(t *testing.T) {
	repo := &mockRepository{rows: []OpenRow{
		{CustomerID: 1, CustomerName: "Acme", Item: OpenItem{Number: "INV-2026-0001", DueDate: day("2026-09-10"), Outstanding: 500}},
		{CustomerID: 1, CustomerName: "Acme", Item: OpenItem{Number: "INV-2026-0002", DueDate: day("2026-07-01"), Outstanding: 200}},
		{CustomerID: 2, CustomerName: "Bolt", Item: OpenItem{Number: "INV-2026-0003", DueDate: day("2026-01-01"), Outstanding: 80}},
	}}
	svc := NewService(repo)
	svc.now = func() time.Time { return day("2026-08-25") }

	report, err := svc.AgingReport(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, report, 2)

	require.Equal(t, "Acme", report[0].CustomerName)
	require.Equal(t, 500.0, report[0].Current)
	require.Equal(t, 200.0, report[0].Days31to60)
	require.Equal(t, 700.0, report[0].Total)

	require.Equal(t, "Bolt", report[1].CustomerName)
	require.Equal(t, 80.0, report[1].Over90)
	require.Equal(t, 80.0, report[1].Total)
}

func TestStatement(t *testing.T) {
	repo := &mockRepository{rows: []OpenRow{
		{CustomerID: 1, CustomerName: "Acme", Item: OpenItem{Number: "INV-2026-0001", DueDate: day("2026-08-01"), Outstanding: 120}},
		{CustomerID: 2, CustomerName: "Bolt", Item: OpenItem{Number: "INV-2026-0003", DueDate: day("2026-08-01"), Outstanding: 60}},
	}}
	svc := NewService(repo)

	st, err := svc.Statement(context.Background(), 1, day("2026-08-25"))
	require.NoError(t, err)
	require.Equal(t, "Acme", st.CustomerName)
	require.Len(t, st.Items, 1)
	require.Equal(t, 120.0, st.Aging.Days1to30)
	require.Equal(t, 120.0, st.Aging.Total)

	_, err = svc.Statement(context.Background(), 0, day("2026-08-25"))
	require.ErrorIs(t, err, shared.ErrValidation)
}
