package report

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/ap"
	"github.com/workdesk-erp/workdesk-erp/internal/ar"
)

type mockRepository struct {
	mu        sync.Mutex
	summaries []ProjectSummary
	dashboard Dashboard
	calls     int
}

func (m *mockRepository) ProjectSummaries(ctx context.Context) ([]ProjectSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return append([]ProjectSummary(nil), m.summaries...), nil
}

func (m *mockRepository) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	d := m.dashboard
	return &d, nil
}

type arRepoStub struct {
	rows []ar.OpenRow
}

func (s *arRepoStub) OpenRows(ctx context.Context, customerID int64, asOf time.Time) ([]ar.OpenRow, error) {
	out := make([]ar.OpenRow, 0, len(s.rows))
	for _, row := range s.rows {
		row.Item.Bucket = ar.BucketFor(asOf, row.Item.DueDate)
		out = append(out, row)
	}
	return out, nil
}

type apRepoStub struct {
	bills []ap.Bill
}

func (s *apRepoStub) Get(ctx context.Context, id int64) (*ap.Bill, error) { return nil, nil }
func (s *apRepoStub) List(ctx context.Context, req ap.ListRequest) ([]ap.Bill, int, error) {
	return nil, 0, nil
}
func (s *apRepoStub) Create(ctx context.Context, b ap.Bill) (int64, error)       { return 0, nil }
func (s *apRepoStub) Cancel(ctx context.Context, id int64) error                 { return nil }
func (s *apRepoStub) AddPayment(ctx context.Context, p ap.Payment) (*ap.Bill, error) {
	return nil, nil
}
func (s *apRepoStub) Payments(ctx context.Context, billID int64) ([]ap.Payment, error) {
	return nil, nil
}
func (s *apRepoStub) OpenBills(ctx context.Context, vendorID int64, asOf time.Time) ([]ap.Bill, error) {
	return append([]ap.Bill(nil), s.bills...), nil
}

func newTestService(t *testing.T) (*Service, *mockRepository, *arRepoStub) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := &mockRepository{
		summaries: []ProjectSummary{{ProjectID: 1, Code: "WK226-0001-0309", Quoted: 1000, Invoiced: 600}},
		dashboard: Dashboard{OpenProjects: 3, ReceivableTotal: 1840.4},
	}
	arRepo := &arRepoStub{rows: []ar.OpenRow{
		{CustomerID: 1, CustomerName: "Acme", Item: ar.OpenItem{
			Number: "INV-2026-0001", DueDate: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC), Outstanding: 1234.5,
		}},
	}}
	apRepo := &apRepoStub{bills: []ap.Bill{
		{ID: 1, BillNo: "B-77", VendorID: 9, VendorName: "Bolt Supplies", Status: ap.BillOpen,
			DueDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), Amount: 900, PaidAmount: 100},
	}}

	svc := NewService(repo, ar.NewService(arRepo), ap.NewService(apRepo, nil, nil), rdb, time.Minute)
	svc.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
	return svc, repo, arRepo
}

func TestProjectSummariesCached(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	snap, err := svc.ProjectSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Data, 1)
	require.Equal(t, 1, repo.calls)

	// data change is invisible until the cache expires.
	repo.summaries[0].Invoiced = 999
	snap, err = svc.ProjectSummaries(ctx)
	require.NoError(t, err)
	require.Equal(t, 600.0, snap.Data[0].Invoiced)
	require.Equal(t, 1, repo.calls)
}

func TestDashboardSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t)

	snap, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, snap.Data.OpenProjects)
	require.Equal(t, 1840.4, snap.Data.ReceivableTotal)
	require.Equal(t, svc.now(), snap.BuiltAt)
}

func TestConcurrentMissesCollapse(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProjectSummaries(ctx)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	repo.mu.Lock()
	calls := repo.calls
	repo.mu.Unlock()
	require.LessOrEqual(t, calls, 2)
}

func TestRefreshAgingOverwritesCache(t *testing.T) {
	svc, _, arRepo := newTestService(t)
	ctx := context.Background()

	snap, err := svc.AgingSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1234.5, snap.Data[0].Total)

	arRepo.rows[0].Item.Outstanding = 500
	require.NoError(t, svc.RefreshAging(ctx))

	snap, err = svc.AgingSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 500.0, snap.Data[0].Total)
}

func TestPayablesAgingSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t)

	snap, err := svc.PayablesAgingSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Data, 1)
	require.Equal(t, "Bolt Supplies", snap.Data[0].VendorName)
	// due 1 July, as of 25 August: 55 days overdue.
	require.Equal(t, 800.0, snap.Data[0].Days31to60)
	require.Equal(t, 800.0, snap.Data[0].Total)
}

func TestWritePayablesAgingCSV(t *testing.T) {
	svc, _, _ := newTestService(t)

	var buf bytes.Buffer
	require.NoError(t, svc.WritePayablesAgingCSV(context.Background(), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "vendor_id,vendor,current,1-30,31-60,61-90,over_90,total", lines[0])
	require.Contains(t, lines[1], "Bolt Supplies")
	require.Contains(t, lines[1], "800.00")
}

func TestWriteAgingCSV(t *testing.T) {
	svc, _, _ := newTestService(t)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteAgingCSV(context.Background(), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "customer_id,customer,current,1-30,31-60,61-90,over_90,total", lines[0])
	require.Contains(t, lines[1], "Acme")
	// thousands separated amounts are quoted by the csv writer.
	require.Contains(t, lines[1], `"1,234.50"`)
}
