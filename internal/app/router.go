package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workdesk-erp/workdesk-erp/internal/ap"
	"github.com/workdesk-erp/workdesk-erp/internal/approval"
	"github.com/workdesk-erp/workdesk-erp/internal/ar"
	"github.com/workdesk-erp/workdesk-erp/internal/audit"
	"github.com/workdesk-erp/workdesk-erp/internal/auth"
	"github.com/workdesk-erp/workdesk-erp/internal/catalog"
	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/delivery"
	"github.com/workdesk-erp/workdesk-erp/internal/invoice"
	"github.com/workdesk-erp/workdesk-erp/internal/jobcode"
	"github.com/workdesk-erp/workdesk-erp/internal/mail"
	"github.com/workdesk-erp/workdesk-erp/internal/observability"
	"github.com/workdesk-erp/workdesk-erp/internal/purchase"
	"github.com/workdesk-erp/workdesk-erp/internal/quotation"
	"github.com/workdesk-erp/workdesk-erp/internal/rbac"
	"github.com/workdesk-erp/workdesk-erp/internal/report"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
	"github.com/workdesk-erp/workdesk-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthHandler      *auth.Handler
	RolesHandler     *rbac.Handler
	CompanyHandler   *company.Handler
	CatalogHandler   *catalog.Handler
	JobCodeHandler   *jobcode.Handler
	QuotationHandler *quotation.Handler
	ApprovalHandler  *approval.Handler
	DeliveryHandler  *delivery.Handler
	InvoiceHandler   *invoice.Handler
	ARHandler        *ar.Handler
	APHandler        *ap.Handler
	PurchaseHandler  *purchase.Handler
	AuditHandler     *audit.Handler
	ReportHandler    *report.Handler
	MailHandler      *mail.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Workdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/companies", params.CompanyHandler.MountRoutes)
		r.Route("/products", params.CatalogHandler.MountRoutes)
		r.Route("/projects", params.JobCodeHandler.MountRoutes)
		r.Route("/quotations", params.QuotationHandler.MountRoutes)
		r.Route("/approvals", params.ApprovalHandler.MountRoutes)
		r.Route("/deliveries", params.DeliveryHandler.MountRoutes)
		r.Route("/invoices", params.InvoiceHandler.MountRoutes)
		r.Route("/ar", params.ARHandler.MountRoutes)
		r.Route("/ap", params.APHandler.MountRoutes)
		r.Route("/purchase", params.PurchaseHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
		r.Route("/reports", params.ReportHandler.MountRoutes)
		if params.MailHandler != nil {
			r.Route("/mail", params.MailHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
