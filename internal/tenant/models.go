package tenant

import "time"

// AccountType classifies a company within the reseller hierarchy.
type AccountType string

const (
	AccountStandard AccountType = "Standard Account"
	AccountLinked   AccountType = "Linked Account"
	AccountReseller AccountType = "Reseller Account"
	AccountManaged  AccountType = "Managed Account"
)

// Role is a user's role inside one company (stored on the membership row).
type Role string

const (
	RoleAdministrator  Role = "Administrator"
	RolePowerUser      Role = "Power User"
	RoleReadOnly       Role = "Read Only User"
	RoleDashboardsOnly Role = "Dashboards Only"

	// RoleServiceAccount is never persisted; it is assigned to API-key callers.
	RoleServiceAccount Role = "ServiceAccount"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RolePowerUser, RoleReadOnly, RoleDashboardsOnly:
		return true
	default:
		return false
	}
}

// Company is a tenant.
//
// ParentID is empty for top-level accounts. ManagerID is the reseller company
// that manages this one, empty when unmanaged.
type Company struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address,omitempty"`
	Enabled     bool        `json:"enabled"`
	Deleted     bool        `json:"deleted"`
	AccountType AccountType `json:"accountType"`
	ParentID    string      `json:"parentId,omitempty"`
	ManagerID   string      `json:"managerId,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (c Company) TopLevel() bool { return c.ParentID == "" }

func (c Company) IsReseller() bool { return c.AccountType == AccountReseller }

// Membership is the (user, company) join row. Unique per pair.
type Membership struct {
	Role       Role       `json:"role"`
	Enabled    bool       `json:"enabled"`
	LastActive *time.Time `json:"lastActive,omitempty"`
}

// CompanyAccess is a company together with the caller's membership in it.
// Synthesized read-only access (reseller, support) uses an enabled
// Read Only membership that is not persisted.
type CompanyAccess struct {
	Company
	Membership Membership `json:"userCompany"`
}

// ReadOnlyAccess grants read-only access to c without a persisted membership.
func ReadOnlyAccess(c Company) CompanyAccess {
	return CompanyAccess{Company: c, Membership: Membership{Role: RoleReadOnly, Enabled: true}}
}

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	PrimaryCompanyID string     `json:"primaryCompanyId"`
	Enabled          bool       `json:"enabled"`
	Deleted          bool       `json:"deleted"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// UserWithCompanies is a user plus every company they can act in directly.
// Companies starts with the primary company (when it exists) followed by the
// other enabled, non-deleted companies ordered by creation time.
type UserWithCompanies struct {
	User
	PrimaryCompany *CompanyAccess  `json:"primaryCompany,omitempty"`
	Companies      []CompanyAccess `json:"companies"`
}

// UserLookup selects a user either by id (token subject) or by email
// (federated sign-in). ID wins when both are set.
type UserLookup struct {
	ID    string
	Email string
}
