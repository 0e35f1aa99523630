package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/catalog"
	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/jobcode"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

type auditStub struct{}

func (auditStub) Record(ctx context.Context, log shared.AuditLog) error { return nil }

type mockRepository struct {
	records map[int64]*Record
	nextID  int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{records: map[int64]*Record{}, nextID: 1}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *mockRepository) List(ctx context.Context, req ListRequest) ([]Record, int, error) {
	var out []Record
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, rec Record) (int64, error) {
	rec.ID = m.nextID
	m.nextID++
	m.records[rec.ID] = &rec
	return rec.ID, nil
}

func (m *mockRepository) NetDelivered(ctx context.Context, projectID, productID int64) (float64, error) {
	var net float64
	for _, rec := range m.records {
		if rec.ProjectID != projectID || rec.ProductID != productID {
			continue
		}
		if rec.Direction == DirectionDelivered {
			net += rec.Qty
		} else {
			net -= rec.Qty
		}
	}
	return net, nil
}

func (m *mockRepository) Balances(ctx context.Context, projectID int64) ([]Balance, error) {
	byProduct := map[int64]*Balance{}
	for _, rec := range m.records {
		if rec.ProjectID != projectID {
			continue
		}
		b, ok := byProduct[rec.ProductID]
		if !ok {
			b = &Balance{ProductID: rec.ProductID}
			byProduct[rec.ProductID] = b
		}
		if rec.Direction == DirectionDelivered {
			b.Delivered += rec.Qty
		} else {
			b.Returned += rec.Qty
		}
		b.Net = b.Delivered - b.Returned
	}
	var out []Balance
	for _, b := range byProduct {
		out = append(out, *b)
	}
	return out, nil
}

type projectRepoStub struct {
	projects map[int64]*jobcode.Project
}

func (s *projectRepoStub) Get(ctx context.Context, id int64) (*jobcode.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}
func (s *projectRepoStub) GetByCode(ctx context.Context, code string) (*jobcode.Project, error) {
	return nil, shared.ErrNotFound
}
func (s *projectRepoStub) List(ctx context.Context, req jobcode.ListRequest) ([]jobcode.Project, int, error) {
	return nil, 0, nil
}
func (s *projectRepoStub) CreateWithCode(ctx context.Context, p jobcode.Project, registeredAt time.Time) (*jobcode.Project, error) {
	return nil, nil
}
func (s *projectRepoStub) Update(ctx context.Context, p jobcode.Project) error { return nil }
func (s *projectRepoStub) SetStatus(ctx context.Context, id int64, status jobcode.Status) error {
	return nil
}
func (s *projectRepoStub) Summary(ctx context.Context, id int64) (*jobcode.Summary, error) {
	return nil, shared.ErrNotFound
}

type companyRepoStub struct{}

func (companyRepoStub) Get(ctx context.Context, id int64) (*company.Company, error) {
	return &company.Company{ID: id, Roles: []company.RoleKind{company.RoleCustomer}}, nil
}
func (companyRepoStub) List(ctx context.Context, req company.ListRequest) ([]company.Company, int, error) {
	return nil, 0, nil
}
func (companyRepoStub) Create(ctx context.Context, c company.Company) (int64, error) { return 0, nil }
func (companyRepoStub) Update(ctx context.Context, c company.Company) error          { return nil }
func (companyRepoStub) AttachRole(ctx context.Context, companyID int64, kind company.RoleKind) error {
	return nil
}
func (companyRepoStub) DetachRole(ctx context.Context, companyID int64, kind company.RoleKind) error {
	return nil
}
func (companyRepoStub) RoleInUse(ctx context.Context, companyID int64, kind company.RoleKind) (bool, error) {
	return false, nil
}

type productRepoStub struct{}

func (productRepoStub) Get(ctx context.Context, id int64) (*catalog.Product, error) {
	return &catalog.Product{ID: id, SKU: "SKU", IsActive: true}, nil
}
func (productRepoStub) GetBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	return nil, shared.ErrNotFound
}
func (productRepoStub) List(ctx context.Context, req catalog.ListRequest) ([]catalog.Product, int, error) {
	return nil, 0, nil
}
func (productRepoStub) Create(ctx context.Context, p catalog.Product) (int64, error) { return 0, nil }
func (productRepoStub) Update(ctx context.Context, p catalog.Product) error          { return nil }
func (productRepoStub) Deactivate(ctx context.Context, id int64) error               { return nil }

func newTestService(t *testing.T) (*Service, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	projects := jobcode.NewService(&projectRepoStub{projects: map[int64]*jobcode.Project{
		1: {ID: 1, Code: "WK226-0001-0309", CustomerID: 1, Status: jobcode.StatusInProgress},
	}}, company.NewService(companyRepoStub{}, auditStub{}), auditStub{})
	products := catalog.NewService(productRepoStub{}, auditStub{})
	return NewService(repo, projects, products, auditStub{}), repo
}

func TestRecordDelivery(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Record(ctx, Record{ProjectID: 1, ProductID: 10, Direction: DirectionDelivered, Qty: 4}, 5)
	require.NoError(t, err)
	require.Equal(t, DirectionDelivered, rec.Direction)
	require.False(t, rec.DeliveredAt.IsZero())
}

func TestRecordValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, Record{ProjectID: 1, ProductID: 10, Direction: "SHIPPED", Qty: 1}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(ctx, Record{ProjectID: 1, ProductID: 10, Direction: DirectionDelivered, Qty: 0}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(ctx, Record{ProjectID: 99, ProductID: 10, Direction: DirectionDelivered, Qty: 1}, 5)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReturnCappedByNetDelivered(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, Record{ProjectID: 1, ProductID: 10, Direction: DirectionDelivered, Qty: 4}, 5)
	require.NoError(t, err)

	// returning more than was delivered is rejected.
	_, err = svc.Record(ctx, Record{ProjectID: 1, ProductID: 10, Direction: DirectionReturned, Qty: 5}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(ctx, Record{ProjectID: 1, ProductID: 10, Direction: DirectionReturned, Qty: 3}, 5)
	require.NoError(t, err)

	// net is now 1; a second return of 2 exceeds it.
	_, err = svc.Record(ctx, Record{ProjectID: 1, ProductID: 10, Direction: DirectionReturned, Qty: 2}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestBalances(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, Record{ProjectID: 1, ProductID: 10, Direction: DirectionDelivered, Qty: 6}, 5)
	require.NoError(t, err)
	_, err = svc.Record(ctx, Record{ProjectID: 1, ProductID: 10, Direction: DirectionReturned, Qty: 2}, 5)
	require.NoError(t, err)

	balances, err := svc.Balances(ctx, 1)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.Equal(t, 6.0, balances[0].Delivered)
	require.Equal(t, 2.0, balances[0].Returned)
	require.Equal(t, 4.0, balances[0].Net)
}
