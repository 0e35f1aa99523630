package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/workdesk-erp/workdesk-erp/internal/audit"
	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/invoice"
	"github.com/workdesk-erp/workdesk-erp/internal/mail"
	"github.com/workdesk-erp/workdesk-erp/internal/quotation"
	"github.com/workdesk-erp/workdesk-erp/internal/report"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

const defaultAuditRetentionDays = 365

// NewMailSendHandler returns the handler for TaskMailSend. A payload with a
// quotation or invoice ID is composed into the customer email; otherwise the
// literal message fields are sent as-is.
func NewMailSendHandler(logger *slog.Logger, quotations *quotation.Service, invoices *invoice.Service,
	companies *company.Service, mailer *mail.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload MailSendPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		var msg mail.Message
		switch {
		case payload.QuotationID > 0:
			q, err := quotations.Get(ctx, payload.QuotationID)
			if err != nil {
				logger.Error("mail send: load quotation failed",
					slog.Int64("quotation_id", payload.QuotationID),
					slog.Any("error", err))
				return asynq.SkipRetry
			}
			customer, err := companies.Get(ctx, q.CustomerID)
			if err != nil {
				return err
			}
			if customer.Email == "" {
				logger.Warn("mail send: customer has no email",
					slog.Int64("customer_id", customer.ID),
					slog.String("quotation", q.Number))
				return asynq.SkipRetry
			}
			msg = composeQuotationMail(q, customer)
		case payload.InvoiceID > 0:
			inv, err := invoices.Get(ctx, payload.InvoiceID)
			if err != nil {
				logger.Error("mail send: load invoice failed",
					slog.Int64("invoice_id", payload.InvoiceID),
					slog.Any("error", err))
				return asynq.SkipRetry
			}
			customer, err := companies.Get(ctx, inv.CustomerID)
			if err != nil {
				return err
			}
			if customer.Email == "" {
				logger.Warn("mail send: customer has no email",
					slog.Int64("customer_id", customer.ID),
					slog.String("invoice", inv.Number))
				return asynq.SkipRetry
			}
			msg = composeInvoiceMail(inv, customer)
		default:
			if len(payload.To) == 0 {
				return asynq.SkipRetry
			}
			msg = mail.Message{To: payload.To, Subject: payload.Subject, Body: payload.Body}
		}

		if err := mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("deliver mail: %w", err)
		}
		return nil
	}
}

// composeQuotationMail renders the outbound quotation email.
func composeQuotationMail(q *quotation.Quotation, customer *company.Company) mail.Message {
	p := message.NewPrinter(language.English)

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Dear %s,</p>", html.EscapeString(customer.Name))
	fmt.Fprintf(&b, "<p>Please find quotation <strong>%s</strong> (rev %d) for project %s below.</p>",
		html.EscapeString(q.Number), q.Version, html.EscapeString(q.ProjectCode))
	b.WriteString(`<table border="1" cellpadding="4" cellspacing="0">`)
	b.WriteString("<tr><th>Description</th><th>Qty</th><th>Unit Price</th><th>Total</th></tr>")
	for _, line := range q.Lines {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(line.Description),
			p.Sprintf("%.2f", line.Qty),
			p.Sprintf("%.2f", line.UnitPrice),
			p.Sprintf("%.2f", line.LineTotal))
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Subtotal: %s<br>Tax (%.2f%%): %s<br><strong>Total: %s</strong></p>",
		p.Sprintf("%.2f", q.Subtotal), q.TaxRate,
		p.Sprintf("%.2f", q.TaxAmount), p.Sprintf("%.2f", q.Total))
	if q.ValidUntil != nil {
		fmt.Fprintf(&b, "<p>This quotation is valid until %s.</p>", q.ValidUntil.Format("2 January 2006"))
	}

	return mail.Message{
		To:      []string{customer.Email},
		Subject: fmt.Sprintf("Quotation %s - %s", q.Number, q.ProjectCode),
		Body:    b.String(),
	}
}

// composeInvoiceMail renders the outbound invoice email.
func composeInvoiceMail(inv *invoice.Invoice, customer *company.Company) mail.Message {
	p := message.NewPrinter(language.English)

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Dear %s,</p>", html.EscapeString(customer.Name))
	fmt.Fprintf(&b, "<p>Tax invoice <strong>%s</strong> has been issued for project %s.</p>",
		html.EscapeString(inv.Number), html.EscapeString(inv.ProjectCode))
	b.WriteString(`<table border="1" cellpadding="4" cellspacing="0">`)
	b.WriteString("<tr><th>Item</th><th>Qty</th><th>Unit Price</th><th>Total</th></tr>")
	for _, line := range inv.Lines {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(line.ProductSKU),
			p.Sprintf("%.2f", line.Qty),
			p.Sprintf("%.2f", line.UnitPrice),
			p.Sprintf("%.2f", line.LineTotal))
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Subtotal: %s<br>Tax (%.2f%%): %s<br><strong>Total: %s</strong></p>",
		p.Sprintf("%.2f", inv.Subtotal), inv.TaxRate,
		p.Sprintf("%.2f", inv.TaxAmount), p.Sprintf("%.2f", inv.Total))
	fmt.Fprintf(&b, "<p>Payment is due by %s.</p>", inv.DueDate.Format("2 January 2006"))

	return mail.Message{
		To:      []string{customer.Email},
		Subject: fmt.Sprintf("Tax Invoice %s - %s", inv.Number, inv.ProjectCode),
		Body:    b.String(),
	}
}

// NewMailRefreshTokensHandler returns the handler for TaskMailRefreshTokens.
func NewMailRefreshTokensHandler(logger *slog.Logger, mailer *mail.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		refreshed, err := mailer.RefreshExpiring(ctx, 24*time.Hour)
		if err != nil {
			return err
		}
		logger.Info("mail tokens refreshed", slog.Int("count", refreshed))
		return nil
	}
}

// NewAgingSnapshotHandler returns the handler for TaskReportAgingSnapshot.
func NewAgingSnapshotHandler(logger *slog.Logger, reports *report.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := reports.RefreshAging(ctx); err != nil {
			return err
		}
		logger.Info("aging snapshot refreshed")
		return nil
	}
}

// NewAuditCleanupHandler returns the handler for TaskAuditCleanup. The same
// retention window also prunes processed idempotency keys.
func NewAuditCleanupHandler(logger *slog.Logger, audits *audit.Service, idem *shared.IdempotencyStore) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.RetentionDays <= 0 {
			payload.RetentionDays = defaultAuditRetentionDays
		}
		retention := time.Duration(payload.RetentionDays) * 24 * time.Hour
		deleted, err := audits.Prune(ctx, retention)
		if err != nil {
			return err
		}
		if err := idem.Cleanup(ctx, retention); err != nil {
			logger.Warn("idempotency key cleanup failed", slog.Any("error", err))
		}
		logger.Info("audit log pruned",
			slog.Int("retention_days", payload.RetentionDays),
			slog.Int64("deleted", deleted))
		return nil
	}
}
