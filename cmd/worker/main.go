package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/workdesk-erp/workdesk-erp/internal/ap"
	"github.com/workdesk-erp/workdesk-erp/internal/app"
	"github.com/workdesk-erp/workdesk-erp/internal/approval"
	"github.com/workdesk-erp/workdesk-erp/internal/ar"
	"github.com/workdesk-erp/workdesk-erp/internal/audit"
	"github.com/workdesk-erp/workdesk-erp/internal/catalog"
	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/invoice"
	"github.com/workdesk-erp/workdesk-erp/internal/jobcode"
	"github.com/workdesk-erp/workdesk-erp/internal/mail"
	"github.com/workdesk-erp/workdesk-erp/internal/platform/cache"
	"github.com/workdesk-erp/workdesk-erp/internal/platform/db"
	"github.com/workdesk-erp/workdesk-erp/internal/quotation"
	"github.com/workdesk-erp/workdesk-erp/internal/report"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
	"github.com/workdesk-erp/workdesk-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	auditLogger := shared.NewAuditLogger(pool)

	companyService := company.NewService(company.NewRepository(pool), auditLogger)
	catalogService := catalog.NewService(catalog.NewRepository(pool), auditLogger)
	jobcodeService := jobcode.NewService(jobcode.NewRepository(pool), companyService, auditLogger)
	approvalService := approval.NewService(approval.NewRepository(pool), auditLogger)
	quotationService := quotation.NewService(quotation.NewRepository(pool), jobcodeService, catalogService,
		approvalService, nil, auditLogger)
	invoiceService := invoice.NewService(invoice.NewRepository(pool), jobcodeService, catalogService,
		nil, nil, nil, auditLogger)

	arService := ar.NewService(ar.NewRepository(pool))
	apService := ap.NewService(ap.NewRepository(pool), companyService, auditLogger)
	reportService := report.NewService(report.NewRepository(pool), arService, apService, redisClient, cfg.ReportCacheTTL)
	auditService := audit.NewService(audit.NewRepository(pool))
	idempotencyStore := shared.NewIdempotencyStore(pool)

	auditCleanupTask, err := jobs.NewAuditCleanupTask(365)
	if err != nil {
		logger.Error("build audit cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskReportAgingSnapshot, Handler: jobs.NewAgingSnapshotHandler(logger, reportService)},
		{Type: jobs.TaskAuditCleanup, Handler: jobs.NewAuditCleanupHandler(logger, auditService, idempotencyStore)},
	}
	cron := []jobs.CronRegistration{
		{Spec: "30 1 * * *", Task: jobs.NewReportAgingSnapshotTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		{Spec: "0 3 * * 0", Task: auditCleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
	}

	if cfg.MailConfigured() && cfg.MailTokenKey != "" {
		cipher, err := mail.NewTokenCipher(cfg.MailTokenKey)
		if err != nil {
			logger.Error("mail token cipher", slog.Any("error", err))
			os.Exit(1)
		}
		mailService := mail.NewService(logger, mail.NewRepository(pool), cipher, mail.NewGraphClient(nil),
			redisClient, auditLogger,
			cfg.GraphClientID, cfg.GraphClientSecret, cfg.GraphTenantID, cfg.GraphRedirectURL)
		handlers = append(handlers,
			jobs.TaskHandler{Type: jobs.TaskMailSend, Handler: jobs.NewMailSendHandler(logger, quotationService, invoiceService, companyService, mailService)},
			jobs.TaskHandler{Type: jobs.TaskMailRefreshTokens, Handler: jobs.NewMailRefreshTokensHandler(logger, mailService)},
		)
		cron = append(cron,
			jobs.CronRegistration{Spec: "0 */6 * * *", Task: jobs.NewMailRefreshTokensTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		)
	} else {
		logger.Warn("graph mail not configured, mail jobs disabled")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
