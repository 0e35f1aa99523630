package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/invoice"
	"github.com/workdesk-erp/workdesk-erp/internal/quotation"
)

func TestComposeQuotationMail(t *testing.T) {
	validUntil := time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC)
	q := &quotation.Quotation{
		Number:      "QT-2026-0012",
		Version:     2,
		ProjectCode: "WK226-0003-0309",
		Subtotal:    12000,
		TaxRate:     7,
		TaxAmount:   840,
		Total:       12840,
		ValidUntil:  &validUntil,
		Lines: []quotation.Line{
			{Description: "Steel frame <A>", Qty: 4, UnitPrice: 2500, LineTotal: 10000},
			{Description: "Installation", Qty: 1, UnitPrice: 2000, LineTotal: 2000},
		},
	}
	customer := &company.Company{ID: 1, Name: "Acme & Sons", Email: "ap@acme.example"}

	msg := composeQuotationMail(q, customer)

	require.Equal(t, []string{"ap@acme.example"}, msg.To)
	require.Equal(t, "Quotation QT-2026-0012 - WK226-0003-0309", msg.Subject)

	// markup in names and descriptions is escaped.
	require.Contains(t, msg.Body, "Acme &amp; Sons")
	require.Contains(t, msg.Body, "Steel frame &lt;A&gt;")
	require.NotContains(t, msg.Body, "<A>")

	require.Contains(t, msg.Body, "rev 2")
	require.Contains(t, msg.Body, "10,000.00")
	require.Contains(t, msg.Body, "Total: 12,840.00")
	require.Contains(t, msg.Body, "valid until 8 April 2026")
}

func TestComposeInvoiceMail(t *testing.T) {
	inv := &invoice.Invoice{
		Number:      "INV-2026-0005",
		ProjectCode: "WK226-0003-0309",
		DueDate:     time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC),
		Subtotal:    5000,
		TaxRate:     7,
		TaxAmount:   350,
		Total:       5350,
		Lines: []invoice.Line{
			{ProductSKU: "FRAME-01", Qty: 2, UnitPrice: 2500, LineTotal: 5000},
		},
	}
	customer := &company.Company{ID: 1, Name: "Acme & Sons", Email: "ap@acme.example"}

	msg := composeInvoiceMail(inv, customer)

	require.Equal(t, []string{"ap@acme.example"}, msg.To)
	require.Equal(t, "Tax Invoice INV-2026-0005 - WK226-0003-0309", msg.Subject)
	require.Contains(t, msg.Body, "Acme &amp; Sons")
	require.Contains(t, msg.Body, "FRAME-01")
	require.Contains(t, msg.Body, "Total: 5,350.00")
	require.Contains(t, msg.Body, "due by 8 April 2026")
}

func TestTaskPayloads(t *testing.T) {
	task, err := NewMailSendTask(MailSendPayload{QuotationID: 7})
	require.NoError(t, err)
	require.Equal(t, TaskMailSend, task.Type())

	task = NewMailRefreshTokensTask()
	require.Equal(t, TaskMailRefreshTokens, task.Type())

	task = NewReportAgingSnapshotTask()
	require.Equal(t, TaskReportAgingSnapshot, task.Type())

	task, err = NewAuditCleanupTask(90)
	require.NoError(t, err)
	require.Equal(t, TaskAuditCleanup, task.Type())
	require.Contains(t, string(task.Payload()), "90")
}
