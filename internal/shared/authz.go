package shared

// Permission scopes guarded by the RBAC middleware.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"
	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermCompaniesView = "companies.view"
	PermCompaniesEdit = "companies.edit"

	PermCatalogView = "catalog.view"
	PermCatalogEdit = "catalog.edit"

	PermJobCodesView = "jobcodes.view"
	PermJobCodesEdit = "jobcodes.edit"

	PermQuotationsView    = "quotations.view"
	PermQuotationsEdit    = "quotations.edit"
	PermQuotationsApprove = "quotations.approve"

	PermDeliveriesView = "deliveries.view"
	PermDeliveriesEdit = "deliveries.edit"

	PermInvoicesView = "invoices.view"
	PermInvoicesEdit = "invoices.edit"

	PermFinanceView = "finance.view"
	PermFinanceEdit = "finance.edit"

	PermPurchaseView    = "purchase.view"
	PermPurchaseEdit    = "purchase.edit"
	PermPurchaseApprove = "purchase.approve"

	PermApprovalsView = "approvals.view"
	PermApprovalsAct  = "approvals.act"

	PermAuditView = "audit.view"

	PermReportsView = "reports.view"

	PermMailManage = "mail.manage"
)

// Built-in role names.
const (
	RoleAdmin      = "ADMIN"
	RoleFinance    = "FINANCE"
	RoleSales      = "SALES"
	RoleProduction = "PRODUCTION"
)

// RoleScopes maps built-in roles to their granted permissions. ADMIN is
// resolved as the union of everything.
func RoleScopes() map[string][]string {
	finance := []string{
		PermCompaniesView, PermCatalogView, PermJobCodesView,
		PermQuotationsView, PermDeliveriesView,
		PermInvoicesView, PermInvoicesEdit,
		PermFinanceView, PermFinanceEdit,
		PermPurchaseView, PermApprovalsView, PermApprovalsAct,
		PermAuditView, PermReportsView, PermMailManage,
	}
	sales := []string{
		PermCompaniesView, PermCompaniesEdit,
		PermCatalogView,
		PermJobCodesView, PermJobCodesEdit,
		PermQuotationsView, PermQuotationsEdit,
		PermDeliveriesView, PermInvoicesView,
		PermPurchaseView, PermPurchaseEdit,
		PermApprovalsView, PermReportsView, PermMailManage,
	}
	production := []string{
		PermCatalogView, PermJobCodesView,
		PermDeliveriesView, PermDeliveriesEdit,
		PermPurchaseView, PermPurchaseEdit,
		PermApprovalsView,
	}

	all := map[string]struct{}{}
	for _, scopes := range [][]string{finance, sales, production} {
		for _, s := range scopes {
			all[s] = struct{}{}
		}
	}
	for _, s := range []string{
		PermUsersView, PermUsersEdit, PermRolesView, PermRolesEdit,
		PermCatalogEdit, PermQuotationsApprove, PermPurchaseApprove,
	} {
		all[s] = struct{}{}
	}
	admin := make([]string, 0, len(all))
	for s := range all {
		admin = append(admin, s)
	}

	return map[string][]string{
		RoleAdmin:      admin,
		RoleFinance:    finance,
		RoleSales:      sales,
		RoleProduction: production,
	}
}
