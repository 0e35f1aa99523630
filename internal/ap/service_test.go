package ap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

type auditStub struct{}

func (auditStub) Record(ctx context.Context, log shared.AuditLog) error { return nil }

type mockRepository struct {
	bills    map[int64]*Bill
	payments map[int64][]Payment
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{bills: map[int64]*Bill{}, payments: map[int64][]Payment{}, nextID: 1}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Bill, error) {
	b, ok := m.bills[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (m *mockRepository) List(ctx context.Context, req ListRequest) ([]Bill, int, error) {
	var out []Bill
	for _, b := range m.bills {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, b Bill) (int64, error) {
	b.ID = m.nextID
	m.nextID++
	b.Status = BillOpen
	m.bills[b.ID] = &b
	return b.ID, nil
}

func (m *mockRepository) Cancel(ctx context.Context, id int64) error {
	b, ok := m.bills[id]
	if !ok {
		return shared.ErrNotFound
	}
	if b.Status != BillOpen || b.PaidAmount > 0 {
		return fmt.Errorf("%w: bill is %s", shared.ErrInvalidState, b.Status)
	}
	b.Status = BillCancelled
	return nil
}

func (m *mockRepository) AddPayment(ctx context.Context, p Payment) (*Bill, error) {
	b, ok := m.bills[p.BillID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if b.Status != BillOpen {
		return nil, fmt.Errorf("%w: bill is %s", shared.ErrInvalidState, b.Status)
	}
	if p.Amount <= 0 || b.PaidAmount+p.Amount > b.Amount {
		return nil, fmt.Errorf("%w: invalid payment amount", shared.ErrValidation)
	}
	b.PaidAmount += p.Amount
	if b.PaidAmount >= b.Amount {
		b.Status = BillPaid
	}
	m.payments[p.BillID] = append(m.payments[p.BillID], p)
	return m.Get(ctx, p.BillID)
}

func (m *mockRepository) Payments(ctx context.Context, billID int64) ([]Payment, error) {
	return append([]Payment(nil), m.payments[billID]...), nil
}

func (m *mockRepository) OpenBills(ctx context.Context, vendorID int64, asOf time.Time) ([]Bill, error) {
	var out []Bill
	for _, b := range m.bills {
		if b.Status != BillOpen || b.PaidAmount >= b.Amount {
			continue
		}
		if vendorID != 0 && b.VendorID != vendorID {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

type companyRepoStub struct {
	roles map[int64][]company.RoleKind
}

func (s *companyRepoStub) Get(ctx context.Context, id int64) (*company.Company, error) {
	roles, ok := s.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &company.Company{ID: id, Name: fmt.Sprintf("Vendor %d", id), Roles: roles}, nil
}
func (s *companyRepoStub) List(ctx context.Context, req company.ListRequest) ([]company.Company, int, error) {
	return nil, 0, nil
}
func (s *companyRepoStub) Create(ctx context.Context, c company.Company) (int64, error) {
	return 0, nil
}
func (s *companyRepoStub) Update(ctx context.Context, c company.Company) error { return nil }
func (s *companyRepoStub) AttachRole(ctx context.Context, companyID int64, kind company.RoleKind) error {
	return nil
}
func (s *companyRepoStub) DetachRole(ctx context.Context, companyID int64, kind company.RoleKind) error {
	return nil
}
func (s *companyRepoStub) RoleInUse(ctx context.Context, companyID int64, kind company.RoleKind) (bool, error) {
	return false, nil
}

func newTestService(t *testing.T) (*Service, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	companies := company.NewService(&companyRepoStub{roles: map[int64][]company.RoleKind{
		1: {company.RoleVendor},
		2: {company.RoleCustomer},
	}}, auditStub{})
	svc := NewService(repo, companies, auditStub{})
	svc.now = func() time.Time { return time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestRegisterBill(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.RegisterBill(ctx, Bill{VendorID: 1, BillNo: "V-1001", Amount: 400}, 5)
	require.NoError(t, err)
	require.Equal(t, BillOpen, b.Status)
	require.Equal(t, b.IssueDate.AddDate(0, 0, 30), b.DueDate)

	_, err = svc.RegisterBill(ctx, Bill{VendorID: 1, Amount: 400}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RegisterBill(ctx, Bill{VendorID: 1, BillNo: "V-1002", Amount: 0}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	// customer-only company cannot be billed against.
	_, err = svc.RegisterBill(ctx, Bill{VendorID: 2, BillNo: "V-1003", Amount: 100}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCancelBillOnlyWhenUnpaid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.RegisterBill(ctx, Bill{VendorID: 1, BillNo: "V-1001", Amount: 400}, 5)
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, Payment{BillID: b.ID, Amount: 100}, 5)
	require.NoError(t, err)

	_, err = svc.CancelBill(ctx, b.ID, 5)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRecordPaymentFlipsToPaid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.RegisterBill(ctx, Bill{VendorID: 1, BillNo: "V-1001", Amount: 400}, 5)
	require.NoError(t, err)

	b, err = svc.RecordPayment(ctx, Payment{BillID: b.ID, Amount: 250, Method: "TRANSFER"}, 5)
	require.NoError(t, err)
	require.Equal(t, BillOpen, b.Status)
	require.Equal(t, 150.0, b.Outstanding())

	_, err = svc.RecordPayment(ctx, Payment{BillID: b.ID, Amount: 200}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	b, err = svc.RecordPayment(ctx, Payment{BillID: b.ID, Amount: 150}, 5)
	require.NoError(t, err)
	require.Equal(t, BillPaid, b.Status)
}

func TestVendorAgingReport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	asOf := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	_, err := svc.RegisterBill(ctx, Bill{VendorID: 1, BillNo: "V-1", Amount: 300,
		IssueDate: asOf.AddDate(0, 0, -60), DueDate: asOf.AddDate(0, 0, -10)}, 5)
	require.NoError(t, err)
	_, err = svc.RegisterBill(ctx, Bill{VendorID: 1, BillNo: "V-2", Amount: 100,
		IssueDate: asOf.AddDate(0, 0, -150), DueDate: asOf.AddDate(0, 0, -120)}, 5)
	require.NoError(t, err)

	// partially paid bills only age their outstanding remainder.
	_, err = svc.RecordPayment(ctx, Payment{BillID: 1, Amount: 100}, 5)
	require.NoError(t, err)

	report, err := svc.AgingReport(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, report, 1)
	require.Equal(t, 200.0, report[0].Days1to30)
	require.Equal(t, 100.0, report[0].Over90)
	require.Equal(t, 300.0, report[0].Total)
}
