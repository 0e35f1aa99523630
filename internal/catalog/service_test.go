package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

type auditStub struct{}

func (auditStub) Record(ctx context.Context, log shared.AuditLog) error { return nil }

type mockRepository struct {
	products map[int64]*Product
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{products: map[int64]*Product{}, nextID: 1}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockRepository) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	for _, p := range m.products {
		if p.SKU == sku {
			clone := *p
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) List(ctx context.Context, req ListRequest) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, p Product) (int64, error) {
	if _, err := m.GetBySKU(ctx, p.SKU); err == nil {
		return 0, shared.ErrConflict
	}
	p.ID = m.nextID
	m.nextID++
	p.IsActive = true
	m.products[p.ID] = &p
	return p.ID, nil
}

func (m *mockRepository) Update(ctx context.Context, p Product) error {
	existing, ok := m.products[p.ID]
	if !ok {
		return shared.ErrNotFound
	}
	p.IsActive = existing.IsActive
	m.products[p.ID] = &p
	return nil
}

func (m *mockRepository) Deactivate(ctx context.Context, id int64) error {
	p, ok := m.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.IsActive = false
	return nil
}

func TestCreateProduct(t *testing.T) {
	svc := NewService(newMockRepository(), auditStub{})
	ctx := context.Background()

	p, err := svc.Create(ctx, Product{SKU: "STL-001", Name: "Steel frame", UnitPrice: 2500}, 5)
	require.NoError(t, err)
	require.True(t, p.IsActive)

	_, err = svc.Create(ctx, Product{SKU: "STL-002", Name: "Bad", UnitPrice: -1}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{SKU: "STL-001", Name: "Duplicate", UnitPrice: 1}, 5)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestRequireActive(t *testing.T) {
	svc := NewService(newMockRepository(), auditStub{})
	ctx := context.Background()

	p, err := svc.Create(ctx, Product{SKU: "STL-001", Name: "Steel frame", UnitPrice: 2500}, 5)
	require.NoError(t, err)

	got, err := svc.RequireActive(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	require.NoError(t, svc.Deactivate(ctx, p.ID, 5))
	_, err = svc.RequireActive(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrValidation)

	// the record itself is kept for historical documents.
	got, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	_, err = svc.RequireActive(ctx, 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
