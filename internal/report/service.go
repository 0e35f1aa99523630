package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/workdesk-erp/workdesk-erp/internal/ap"
	"github.com/workdesk-erp/workdesk-erp/internal/ar"
)

const (
	cacheKeyAging     = "report:ar_aging"
	cacheKeyAPAging   = "report:ap_aging"
	cacheKeyProjects  = "report:projects"
	cacheKeyDashboard = "report:dashboard"
)

// Service builds reports with a redis cache in front of the aggregation
// queries. Concurrent cache misses for the same key collapse into a single
// build via singleflight.
type Service struct {
	repo        Repository
	receivables *ar.Service
	payables    *ap.Service
	redis       *redis.Client
	ttl         time.Duration
	group       singleflight.Group
	now         func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, receivables *ar.Service, payables *ap.Service,
	rdb *redis.Client, ttl time.Duration) *Service {
	return &Service{
		repo:        repo,
		receivables: receivables,
		payables:    payables,
		redis:       rdb,
		ttl:         ttl,
		now:         time.Now,
	}
}

func cached[T any](ctx context.Context, s *Service, key string, build func() (T, error)) (*Snapshot[T], error) {
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			var snap Snapshot[T]
			if jsonErr := json.Unmarshal(raw, &snap); jsonErr == nil {
				return &snap, nil
			}
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		data, err := build()
		if err != nil {
			return nil, err
		}
		snap := &Snapshot[T]{BuiltAt: s.now(), Data: data}
		if s.redis != nil {
			if raw, err := json.Marshal(snap); err == nil {
				s.redis.Set(ctx, key, raw, s.ttl)
			}
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot[T]), nil
}

// AgingSnapshot returns the cached receivable aging report.
func (s *Service) AgingSnapshot(ctx context.Context) (*Snapshot[[]ar.Aging], error) {
	return cached(ctx, s, cacheKeyAging, func() ([]ar.Aging, error) {
		return s.receivables.AgingReport(ctx, s.now())
	})
}

// PayablesAgingSnapshot returns the cached payable aging report.
func (s *Service) PayablesAgingSnapshot(ctx context.Context) (*Snapshot[[]ap.VendorAging], error) {
	return cached(ctx, s, cacheKeyAPAging, func() ([]ap.VendorAging, error) {
		return s.payables.AgingReport(ctx, s.now())
	})
}

// ProjectSummaries returns the cached per-project financial rollup.
func (s *Service) ProjectSummaries(ctx context.Context) (*Snapshot[[]ProjectSummary], error) {
	return cached(ctx, s, cacheKeyProjects, func() ([]ProjectSummary, error) {
		return s.repo.ProjectSummaries(ctx)
	})
}

// Dashboard returns the cached landing-page rollup.
func (s *Service) Dashboard(ctx context.Context) (*Snapshot[*Dashboard], error) {
	return cached(ctx, s, cacheKeyDashboard, func() (*Dashboard, error) {
		return s.repo.Dashboard(ctx, s.now())
	})
}

// RefreshAging rebuilds both aging caches, used by the scheduled snapshot
// job.
func (s *Service) RefreshAging(ctx context.Context) error {
	receivable, err := s.receivables.AgingReport(ctx, s.now())
	if err != nil {
		return fmt.Errorf("refresh ar aging snapshot: %w", err)
	}
	if err := storeSnapshot(ctx, s, cacheKeyAging, receivable); err != nil {
		return err
	}

	payable, err := s.payables.AgingReport(ctx, s.now())
	if err != nil {
		return fmt.Errorf("refresh ap aging snapshot: %w", err)
	}
	return storeSnapshot(ctx, s, cacheKeyAPAging, payable)
}

func storeSnapshot[T any](ctx context.Context, s *Service, key string, data T) error {
	if s.redis == nil {
		return nil
	}
	snap := Snapshot[T]{BuiltAt: s.now(), Data: data}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, raw, s.ttl).Err()
}

// WriteAgingCSV streams the current aging report as CSV. Amounts are
// rendered with thousands separators.
func (s *Service) WriteAgingCSV(ctx context.Context, w io.Writer) error {
	snap, err := s.AgingSnapshot(ctx)
	if err != nil {
		return err
	}

	printer := message.NewPrinter(language.English)
	money := func(v float64) string {
		return printer.Sprintf("%.2f", v)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"customer_id", "customer", "current", "1-30", "31-60", "61-90", "over_90", "total"}); err != nil {
		return err
	}
	for _, a := range snap.Data {
		record := []string{
			fmt.Sprintf("%d", a.CustomerID),
			a.CustomerName,
			money(a.Current),
			money(a.Days1to30),
			money(a.Days31to60),
			money(a.Days61to90),
			money(a.Over90),
			money(a.Total),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePayablesAgingCSV streams the current payable aging report as CSV.
func (s *Service) WritePayablesAgingCSV(ctx context.Context, w io.Writer) error {
	snap, err := s.PayablesAgingSnapshot(ctx)
	if err != nil {
		return err
	}

	printer := message.NewPrinter(language.English)
	money := func(v float64) string {
		return printer.Sprintf("%.2f", v)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"vendor_id", "vendor", "current", "1-30", "31-60", "61-90", "over_90", "total"}); err != nil {
		return err
	}
	for _, a := range snap.Data {
		record := []string{
			fmt.Sprintf("%d", a.VendorID),
			a.VendorName,
			money(a.Current),
			money(a.Days1to30),
			money(a.Days31to60),
			money(a.Days61to90),
			money(a.Over90),
			money(a.Total),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
