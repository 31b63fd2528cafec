package shared

// Permission identifiers checked by the RBAC middleware.
const (
	PermSalesView     = "sales.view"
	PermSalesCreate   = "sales.create"
	PermSalesReverse  = "sales.reverse"
	PermSalesClose    = "sales.close"
	PermInventoryView = "inventory.view"
	PermInventoryEdit = "inventory.edit"
	PermCashView      = "cash.view"
	PermCashCreate    = "cash.create"
	PermCashEdit      = "cash.edit"
	PermCustomersView = "customers.view"
	PermCustomersEdit = "customers.edit"
	PermMaintenance   = "maintenance.manage"
	PermUsersView     = "users.view"
	PermUsersEdit     = "users.edit"
	PermSettingsEdit  = "settings.edit"
	PermJobsRun       = "jobs.run"
)

// AllPermissions lists every permission known to the application.
func AllPermissions() []string {
	return []string{
		PermSalesView, PermSalesCreate, PermSalesReverse, PermSalesClose,
		PermInventoryView, PermInventoryEdit,
		PermCashView, PermCashCreate, PermCashEdit,
		PermCustomersView, PermCustomersEdit,
		PermMaintenance,
		PermUsersView, PermUsersEdit,
		PermSettingsEdit,
		PermJobsRun,
	}
}
