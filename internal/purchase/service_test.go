package purchase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/approval"
	"github.com/workdesk-erp/workdesk-erp/internal/catalog"
	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

type auditStub struct{}

func (auditStub) Record(ctx context.Context, log shared.AuditLog) error { return nil }

type mockRepository struct {
	requests  map[int64]*Request
	orders    map[int64]*Order
	rfqs      []RFQ
	nextReqID int64
	nextOrdID int64
	reqSeq    int
	ordSeq    int
	rfqSeq    int
}

func newMockRepository() *mockRepository {
	return &mockRepository{requests: map[int64]*Request{}, orders: map[int64]*Order{}, nextReqID: 1, nextOrdID: 1}
}

func (m *mockRepository) GetRequest(ctx context.Context, id int64) (*Request, error) {
	pr, ok := m.requests[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *pr
	clone.Lines = append([]RequestLine(nil), pr.Lines...)
	return &clone, nil
}

func (m *mockRepository) ListRequests(ctx context.Context, req RequestListRequest) ([]Request, int, error) {
	var out []Request
	for _, pr := range m.requests {
		out = append(out, *pr)
	}
	return out, len(out), nil
}

func (m *mockRepository) CreateRequest(ctx context.Context, pr Request, at time.Time) (*Request, error) {
	m.reqSeq++
	pr.ID = m.nextReqID
	m.nextReqID++
	pr.Number = FormatRequestNumber(at, m.reqSeq)
	pr.Status = RequestDraft
	m.requests[pr.ID] = &pr
	return m.GetRequest(ctx, pr.ID)
}

func (m *mockRepository) ReplaceRequestLines(ctx context.Context, pr Request) error {
	existing, ok := m.requests[pr.ID]
	if !ok {
		return shared.ErrNotFound
	}
	existing.Lines = append([]RequestLine(nil), pr.Lines...)
	return nil
}

func (m *mockRepository) SetRequestStatus(ctx context.Context, id int64, status RequestStatus) error {
	pr, ok := m.requests[id]
	if !ok {
		return shared.ErrNotFound
	}
	pr.Status = status
	return nil
}

func (m *mockRepository) CreateRFQs(ctx context.Context, requestID int64, vendorIDs []int64, note string, at time.Time) ([]RFQ, error) {
	var created []RFQ
	for _, vendorID := range vendorIDs {
		m.rfqSeq++
		created = append(created, RFQ{
			ID:        int64(len(m.rfqs) + len(created) + 1),
			Number:    FormatRFQNumber(at, m.rfqSeq),
			RequestID: requestID,
			VendorID:  vendorID,
			Status:    RFQSent,
			SentAt:    at,
			Note:      note,
		})
	}
	m.rfqs = append(m.rfqs, created...)
	return created, nil
}

func (m *mockRepository) ListRFQs(ctx context.Context, requestID int64) ([]RFQ, error) {
	var out []RFQ
	for _, rfq := range m.rfqs {
		if rfq.RequestID == requestID {
			out = append(out, rfq)
		}
	}
	return out, nil
}

func (m *mockRepository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	po, ok := m.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *po
	clone.Lines = append([]OrderLine(nil), po.Lines...)
	return &clone, nil
}

func (m *mockRepository) ListOrders(ctx context.Context, req OrderListRequest) ([]Order, int, error) {
	var out []Order
	for _, po := range m.orders {
		out = append(out, *po)
	}
	return out, len(out), nil
}

func (m *mockRepository) CreateOrder(ctx context.Context, po Order, at time.Time) (*Order, error) {
	m.ordSeq++
	po.ID = m.nextOrdID
	m.nextOrdID++
	po.Number = FormatOrderNumber(at, m.ordSeq)
	po.Status = OrderDraft
	m.orders[po.ID] = &po
	return m.GetOrder(ctx, po.ID)
}

func (m *mockRepository) SetOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	po, ok := m.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	po.Status = status
	return nil
}

// cross-module stubs

type companyRepoStub struct{}

func (companyRepoStub) Get(ctx context.Context, id int64) (*company.Company, error) {
	roles := []company.RoleKind{company.RoleVendor}
	if id == 2 {
		roles = []company.RoleKind{company.RoleCustomer}
	}
	return &company.Company{ID: id, Name: fmt.Sprintf("Company %d", id), Roles: roles}, nil
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
	return &catalog.Product{ID: id, SKU: fmt.Sprintf("SKU-%d", id), IsActive: true}, nil
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

type approvalRepoStub struct {
	requests map[int64]*approval.Request
	nextID   int64
}

func newApprovalRepoStub() *approvalRepoStub {
	return &approvalRepoStub{requests: map[int64]*approval.Request{}, nextID: 1}
}

func (s *approvalRepoStub) Get(ctx context.Context, id int64) (*approval.Request, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return r, nil
}

func (s *approvalRepoStub) FindOpen(ctx context.Context, entityKind string, entityID int64) (*approval.Request, error) {
	for _, r := range s.requests {
		if r.EntityKind == entityKind && r.EntityID == entityID && r.Status == approval.StatusPending {
			return r, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *approvalRepoStub) List(ctx context.Context, req approval.ListRequest) ([]approval.Request, int, error) {
	return nil, 0, nil
}

func (s *approvalRepoStub) Create(ctx context.Context, r approval.Request) (int64, error) {
	id := s.nextID
	s.nextID++
	r.ID = id
	r.Status = approval.StatusPending
	r.CurrentLevel = 1
	for i := range r.Steps {
		r.Steps[i].Status = approval.StatusPending
	}
	s.requests[id] = &r
	return id, nil
}

func (s *approvalRepoStub) Act(ctx context.Context, requestID int64, level int, decision approval.Status, note string, nextLevel int, requestStatus approval.Status) (*approval.Request, error) {
	r, ok := s.requests[requestID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	for i := range r.Steps {
		if r.Steps[i].Level == level {
			r.Steps[i].Status = decision
		}
	}
	r.CurrentLevel = nextLevel
	r.Status = requestStatus
	return r, nil
}

type fixture struct {
	svc       *Service
	repo      *mockRepository
	approvals *approval.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMockRepository()
	approvals := approval.NewService(newApprovalRepoStub(), auditStub{})
	companies := company.NewService(companyRepoStub{}, auditStub{})
	products := catalog.NewService(productRepoStub{}, auditStub{})
	svc := NewService(repo, companies, products, approvals, auditStub{})
	svc.now = func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, repo: repo, approvals: approvals}
}

func requestLines() []RequestLine {
	return []RequestLine{
		{ProductID: 10, Qty: 20, EstUnitCost: 12.5},
		{ProductID: 11, Qty: 5, EstUnitCost: 80},
	}
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pr, err := f.svc.CreateRequest(ctx, Request{Notes: "site materials", Lines: requestLines()}, 5)
	require.NoError(t, err)
	require.Equal(t, "PR-2026-0001", pr.Number)
	require.Equal(t, RequestDraft, pr.Status)
	require.Equal(t, int64(5), pr.RequesterID)

	_, err = f.svc.CreateRequest(ctx, Request{}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSubmitAndApproveRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pr, err := f.svc.CreateRequest(ctx, Request{Lines: requestLines()}, 5)
	require.NoError(t, err)

	pr, err = f.svc.SubmitRequest(ctx, pr.ID, []int64{20}, 5)
	require.NoError(t, err)
	require.Equal(t, RequestSubmitted, pr.Status)

	_, err = f.approvals.Approve(ctx, 1, 20, "ok")
	require.NoError(t, err)

	pr, err = f.svc.GetRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, RequestApproved, pr.Status)
}

func TestSubmitRevertsWhenChainFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pr, err := f.svc.CreateRequest(ctx, Request{Lines: requestLines()}, 5)
	require.NoError(t, err)

	// the requester in the approver list fails the chain start; the request
	// must fall back to DRAFT, not stay half-submitted.
	_, err = f.svc.SubmitRequest(ctx, pr.ID, []int64{5}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	pr, err = f.svc.GetRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, RequestDraft, pr.Status)

	pr, err = f.svc.SubmitRequest(ctx, pr.ID, []int64{20}, 5)
	require.NoError(t, err)
	require.Equal(t, RequestSubmitted, pr.Status)
}

func TestSubmitRejectsNonDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pr, err := f.svc.CreateRequest(ctx, Request{Lines: requestLines()}, 5)
	require.NoError(t, err)
	_, err = f.svc.SubmitRequest(ctx, pr.ID, []int64{20}, 5)
	require.NoError(t, err)

	_, err = f.svc.SubmitRequest(ctx, pr.ID, []int64{20}, 5)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRejectedRequestCannotConvert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pr, err := f.svc.CreateRequest(ctx, Request{Lines: requestLines()}, 5)
	require.NoError(t, err)
	_, err = f.svc.SubmitRequest(ctx, pr.ID, []int64{20}, 5)
	require.NoError(t, err)
	_, err = f.approvals.Reject(ctx, 1, 20, "no budget")
	require.NoError(t, err)

	_, err = f.svc.ConvertToOrder(ctx, pr.ID, 1, 5)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestConvertToOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pr, err := f.svc.CreateRequest(ctx, Request{Notes: "site materials", Lines: requestLines()}, 5)
	require.NoError(t, err)
	_, err = f.svc.SubmitRequest(ctx, pr.ID, []int64{20}, 5)
	require.NoError(t, err)
	_, err = f.approvals.Approve(ctx, 1, 20, "")
	require.NoError(t, err)

	// a customer-only company cannot take the order.
	_, err = f.svc.ConvertToOrder(ctx, pr.ID, 2, 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	po, err := f.svc.ConvertToOrder(ctx, pr.ID, 1, 5)
	require.NoError(t, err)
	require.Equal(t, "PO-2026-0001", po.Number)
	require.Equal(t, OrderDraft, po.Status)
	require.NotNil(t, po.RequestID)
	require.Equal(t, pr.ID, *po.RequestID)
	require.Len(t, po.Lines, 2)
	require.Equal(t, 12.5, po.Lines[0].UnitCost)
	require.Equal(t, 650.0, po.Total)

	pr, err = f.svc.GetRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, RequestClosed, pr.Status)

	// closed requests convert only once.
	_, err = f.svc.ConvertToOrder(ctx, pr.ID, 1, 5)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestIssueRFQs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pr, err := f.svc.CreateRequest(ctx, Request{Lines: requestLines()}, 5)
	require.NoError(t, err)

	// drafts are still editable and cannot be quoted.
	_, err = f.svc.IssueRFQs(ctx, pr.ID, []int64{1}, "", 5)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = f.svc.SubmitRequest(ctx, pr.ID, []int64{20}, 5)
	require.NoError(t, err)

	_, err = f.svc.IssueRFQs(ctx, pr.ID, nil, "", 5)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.IssueRFQs(ctx, pr.ID, []int64{1, 1}, "", 5)
	require.ErrorIs(t, err, shared.ErrValidation)
	// a customer-only company cannot be asked to quote.
	_, err = f.svc.IssueRFQs(ctx, pr.ID, []int64{2}, "", 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	rfqs, err := f.svc.IssueRFQs(ctx, pr.ID, []int64{1, 3}, "deliver by April", 5)
	require.NoError(t, err)
	require.Len(t, rfqs, 2)
	require.Equal(t, "RFQ-2026-0001", rfqs[0].Number)
	require.Equal(t, "RFQ-2026-0002", rfqs[1].Number)
	require.Equal(t, RFQSent, rfqs[0].Status)
	require.Equal(t, "deliver by April", rfqs[1].Note)

	listed, err := f.svc.ListRFQs(ctx, pr.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	_, err = f.svc.ListRFQs(ctx, 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOrderTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	po, err := f.svc.CreateOrder(ctx, Order{VendorID: 1, Lines: []OrderLine{{ProductID: 10, Qty: 4, UnitCost: 25}}}, 5)
	require.NoError(t, err)
	require.Equal(t, 100.0, po.Total)

	po, err = f.svc.TransitionOrder(ctx, po.ID, OrderIssued, 5)
	require.NoError(t, err)
	require.Equal(t, OrderIssued, po.Status)

	_, err = f.svc.TransitionOrder(ctx, po.ID, OrderClosed, 5)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	po, err = f.svc.TransitionOrder(ctx, po.ID, OrderReceived, 5)
	require.NoError(t, err)
	po, err = f.svc.TransitionOrder(ctx, po.ID, OrderClosed, 5)
	require.NoError(t, err)
	require.Equal(t, OrderClosed, po.Status)

	_, err = f.svc.TransitionOrder(ctx, po.ID, OrderCancelled, 5)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
