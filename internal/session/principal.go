package session

import "tenant-admin/internal/tenant"

// ServiceAccountID is the fixed user id given to API-key callers.
const ServiceAccountID = "service-account"

// Principal is the request-scoped result of session resolution. It is built
// fresh for every request and never cached.
type Principal struct {
	tenant.User

	Company        tenant.CompanyAccess   `json:"company"`
	Companies      []tenant.CompanyAccess `json:"companies"`
	PrimaryCompany *tenant.CompanyAccess  `json:"primaryCompany,omitempty"`

	// Set by a reseller session switch.
	ResellerCompanyID   string `json:"resellerCompanyId,omitempty"`
	ResellerCompanyName string `json:"resellerCompanyName,omitempty"`
	// Set when a support user impersonates a customer.
	SupportCompanyID string `json:"supportCompanyId,omitempty"`

	IsSAML bool `json:"isSAML,omitempty"`

	IsSuperAdmin   bool        `json:"isSuperAdmin"`
	SuperAdminRole tenant.Role `json:"superAdminRole,omitempty"`
	IsReseller     bool        `json:"isReseller"`
	ResellerRole   tenant.Role `json:"resellerRole,omitempty"`

	// Role is only set for service accounts, whose company is not resolved.
	Role tenant.Role `json:"role,omitempty"`
}

// NewServiceAccount returns the principal for an API-key caller scoped to
// companyID. No lookups are performed.
func NewServiceAccount(companyID string) Principal {
	return Principal{
		User:    tenant.User{ID: ServiceAccountID},
		Role:    tenant.RoleServiceAccount,
		Company: tenant.CompanyAccess{Company: tenant.Company{ID: companyID}},
	}
}

func (p Principal) IsServiceAccount() bool { return p.Role == tenant.RoleServiceAccount }

func (p Principal) IsSupportSession() bool { return p.SupportCompanyID != "" }

// ActiveRole is the role the caller holds in the active company.
func (p Principal) ActiveRole() tenant.Role {
	if p.IsServiceAccount() {
		return tenant.RoleServiceAccount
	}
	return p.Company.Membership.Role
}

// HasCompany reports whether id is among the visible companies.
func (p Principal) HasCompany(id string) bool {
	return indexOf(p.Companies, id) >= 0
}

func indexOf(list []tenant.CompanyAccess, id string) int {
	for i, c := range list {
		if c.ID == id {
			return i
		}
	}
	return -1
}
