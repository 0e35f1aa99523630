package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/workdesk-erp/workdesk-erp/internal/ap"
	"github.com/workdesk-erp/workdesk-erp/internal/approval"
	"github.com/workdesk-erp/workdesk-erp/internal/ar"
	"github.com/workdesk-erp/workdesk-erp/internal/app"
	"github.com/workdesk-erp/workdesk-erp/internal/audit"
	"github.com/workdesk-erp/workdesk-erp/internal/auth"
	"github.com/workdesk-erp/workdesk-erp/internal/catalog"
	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/delivery"
	"github.com/workdesk-erp/workdesk-erp/internal/invoice"
	"github.com/workdesk-erp/workdesk-erp/internal/jobcode"
	"github.com/workdesk-erp/workdesk-erp/internal/mail"
	"github.com/workdesk-erp/workdesk-erp/internal/observability"
	"github.com/workdesk-erp/workdesk-erp/internal/platform/cache"
	"github.com/workdesk-erp/workdesk-erp/internal/platform/db"
	"github.com/workdesk-erp/workdesk-erp/internal/purchase"
	"github.com/workdesk-erp/workdesk-erp/internal/quotation"
	"github.com/workdesk-erp/workdesk-erp/internal/rbac"
	"github.com/workdesk-erp/workdesk-erp/internal/report"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
	"github.com/workdesk-erp/workdesk-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "workdesk_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(rbac.NewRepository(dbpool))
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)
	rolesHandler := rbac.NewHandler(logger, rbacService, rbacMiddleware)

	companyService := company.NewService(company.NewRepository(dbpool), auditLogger)
	companyHandler := company.NewHandler(logger, companyService, &rbacMiddleware)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService, &rbacMiddleware)

	jobcodeService := jobcode.NewService(jobcode.NewRepository(dbpool), companyService, auditLogger)
	jobcodeHandler := jobcode.NewHandler(logger, jobcodeService, &rbacMiddleware)

	approvalService := approval.NewService(approval.NewRepository(dbpool), auditLogger)
	approvalHandler := approval.NewHandler(logger, approvalService, &rbacMiddleware)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("create job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	quotationService := quotation.NewService(quotation.NewRepository(dbpool), jobcodeService, catalogService,
		approvalService, jobClient, auditLogger)
	quotationHandler := quotation.NewHandler(logger, quotationService, &rbacMiddleware)

	deliveryService := delivery.NewService(delivery.NewRepository(dbpool), jobcodeService, catalogService, auditLogger)
	deliveryHandler := delivery.NewHandler(logger, deliveryService, &rbacMiddleware)

	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	invoiceService := invoice.NewService(invoice.NewRepository(dbpool), jobcodeService, catalogService,
		metrics, idempotencyStore, jobClient, auditLogger)
	invoiceHandler := invoice.NewHandler(logger, invoiceService, &rbacMiddleware)

	arService := ar.NewService(ar.NewRepository(dbpool))
	arHandler := ar.NewHandler(logger, arService, &rbacMiddleware)

	apService := ap.NewService(ap.NewRepository(dbpool), companyService, auditLogger)
	apHandler := ap.NewHandler(logger, apService, &rbacMiddleware)

	purchaseService := purchase.NewService(purchase.NewRepository(dbpool), companyService, catalogService,
		approvalService, auditLogger)
	purchaseHandler := purchase.NewHandler(logger, purchaseService, &rbacMiddleware)

	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditHandler := audit.NewHandler(logger, auditService, &rbacMiddleware)

	reportService := report.NewService(report.NewRepository(dbpool), arService, apService, redisClient, cfg.ReportCacheTTL)
	reportHandler := report.NewHandler(logger, reportService, &rbacMiddleware)

	var mailHandler *mail.Handler
	if cfg.MailConfigured() && cfg.MailTokenKey != "" {
		cipher, err := mail.NewTokenCipher(cfg.MailTokenKey)
		if err != nil {
			logger.Error("mail token cipher", slog.Any("error", err))
			os.Exit(1)
		}
		mailService := mail.NewService(logger, mail.NewRepository(dbpool), cipher, mail.NewGraphClient(nil),
			redisClient, auditLogger,
			cfg.GraphClientID, cfg.GraphClientSecret, cfg.GraphTenantID, cfg.GraphRedirectURL)
		mailHandler = mail.NewHandler(logger, mailService, &rbacMiddleware)
	} else {
		logger.Warn("graph mail not configured, mail endpoints disabled")
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Metrics:          metrics,
		AuthHandler:      authHandler,
		RolesHandler:     rolesHandler,
		CompanyHandler:   companyHandler,
		CatalogHandler:   catalogHandler,
		JobCodeHandler:   jobcodeHandler,
		QuotationHandler: quotationHandler,
		ApprovalHandler:  approvalHandler,
		DeliveryHandler:  deliveryHandler,
		InvoiceHandler:   invoiceHandler,
		ARHandler:        arHandler,
		APHandler:        apHandler,
		PurchaseHandler:  purchaseHandler,
		AuditHandler:     auditHandler,
		ReportHandler:    reportHandler,
		MailHandler:      mailHandler,
		JobHandler:       jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
