package session

import (
	"context"
	"time"

	"tenant-admin/internal/tenant"
)

// Store is the read model the resolver needs. *tenant.Repository satisfies it.
// Lookups that find nothing return tenant.ErrNotFound.
type Store interface {
	LoadUserWithCompanies(ctx context.Context, lookup tenant.UserLookup) (tenant.UserWithCompanies, error)
	GetCompany(ctx context.Context, id string) (tenant.Company, error)
	GetCompanyAccess(ctx context.Context, companyID, userID string) (tenant.CompanyAccess, error)
	GetMembership(ctx context.Context, companyID, userID string) (tenant.Membership, error)
	ListManagedCompanies(ctx context.Context, managerID, excludeID string) ([]tenant.Company, error)
	ListSubAccounts(ctx context.Context, companyID string, includeParent bool) ([]tenant.Company, error)
	TouchLastActive(ctx context.Context, userID, companyID string, at time.Time) error
}

// Recorder receives resolution telemetry. A nil Recorder is allowed.
type Recorder interface {
	ObserveStrategy(strategy string)
	ObserveLastActiveFailure()
}

type nopRecorder struct{}

func (nopRecorder) ObserveStrategy(string)    {}
func (nopRecorder) ObserveLastActiveFailure() {}
