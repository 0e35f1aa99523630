package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskMailSend delivers one outbound email through the connected
	// mailbox.
	TaskMailSend = "mail:send"
	// TaskMailRefreshTokens proactively refreshes Graph tokens nearing
	// expiry.
	TaskMailRefreshTokens = "mail:refresh_tokens"
	// TaskReportAgingSnapshot rebuilds the cached receivable aging report.
	TaskReportAgingSnapshot = "report:aging_snapshot"
	// TaskAuditCleanup prunes audit rows past the retention window.
	TaskAuditCleanup = "audit:cleanup"
)

// MailSendPayload describes an email to deliver. A quotation or invoice ID is
// composed into the customer message by the handler; otherwise the literal
// message fields are sent as-is.
type MailSendPayload struct {
	QuotationID int64    `json:"quotation_id,omitempty"`
	InvoiceID   int64    `json:"invoice_id,omitempty"`
	To          []string `json:"to,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	Body        string   `json:"body,omitempty"`
}

// NewMailSendTask constructs a mail delivery task.
func NewMailSendTask(payload MailSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMailSend, data), nil
}

// NewMailRefreshTokensTask constructs the token refresh task.
func NewMailRefreshTokensTask() *asynq.Task {
	return asynq.NewTask(TaskMailRefreshTokens, nil)
}

// NewReportAgingSnapshotTask constructs the aging snapshot task.
func NewReportAgingSnapshotTask() *asynq.Task {
	return asynq.NewTask(TaskReportAgingSnapshot, nil)
}

// AuditCleanupPayload carries the retention window in days.
type AuditCleanupPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditCleanupTask constructs the audit retention task.
func NewAuditCleanupTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditCleanupPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}
