package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-admin/internal/tenant"
)

const adminCo = "admin-co"

func newResolver(s *fakeStore) (*Resolver, *countingRecorder) {
	rec := &countingRecorder{}
	return NewResolver(s, Config{AdminCompanyID: adminCo}, rec), rec
}

func resolve(t *testing.T, r *Resolver, req Request) (Principal, error) {
	t.Helper()
	p, err := r.Resolve(context.Background(), req)
	r.Wait()
	return p, err
}

func TestResolve_SingleCompanyDefaultsToPrimary(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "A", Name: "A", Enabled: true})
	s.addUser("u", "A")
	s.addMember("u", "A", tenant.RoleAdministrator, true)

	r, rec := newResolver(s)
	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}})
	require.NoError(t, err)

	assert.Equal(t, "A", p.Company.ID)
	assert.Equal(t, tenant.RoleAdministrator, p.ActiveRole())
	assert.False(t, p.IsSuperAdmin)
	assert.False(t, p.IsReseller)
	assert.Equal(t, []string{StrategyDirect}, rec.strategies)
	// Single company: no last-active touch.
	assert.Empty(t, s.touched())
}

func TestResolve_UserNotFound(t *testing.T) {
	r, _ := newResolver(newFakeStore())
	_, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "ghost"}})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, "User not found", Message(err))
}

func TestResolve_ExplicitCompanyMembership(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "A", Enabled: true})
	s.addCompany(tenant.Company{ID: "B", Enabled: true})
	s.addUser("u", "A")
	s.addMember("u", "A", tenant.RoleAdministrator, true)
	s.addMember("u", "B", tenant.RoleDashboardsOnly, true)

	r, _ := newResolver(s)
	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}, CompanyID: "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", p.Company.ID)
	assert.Equal(t, tenant.RoleDashboardsOnly, p.ActiveRole())

	// Two companies and the active one is among them: last active is touched.
	got := s.touched()
	require.Len(t, got, 1)
	assert.Equal(t, "u", got[0].userID)
	assert.Equal(t, "B", got[0].companyID)
}

func TestResolve_DisabledParentInvalidatesSession(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "P", Enabled: false})
	s.addCompany(tenant.Company{ID: "C", Enabled: true, ParentID: "P"})
	s.addUser("u", "C")
	s.addMember("u", "C", tenant.RoleAdministrator, true)

	r, _ := newResolver(s)
	_, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}})
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestResolve_DisabledGrandparentInvalidatesSession(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "G", Enabled: false})
	s.addCompany(tenant.Company{ID: "P", Enabled: true, ParentID: "G"})
	s.addCompany(tenant.Company{ID: "C", Enabled: true, ParentID: "P"})
	s.addUser("u", "C")
	s.addMember("u", "C", tenant.RoleAdministrator, true)

	r, _ := newResolver(s)
	_, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}})
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestResolve_DisabledMembershipInvalidatesSession(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "A", Enabled: true})
	s.addUser("u", "A")
	s.addMember("u", "A", tenant.RoleAdministrator, false)

	r, _ := newResolver(s)
	_, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}})
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestResolve_NoEnabledCompanyIsInactive(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "A", Enabled: false})
	s.addCompany(tenant.Company{ID: "P", Enabled: false})
	s.addCompany(tenant.Company{ID: "B", Enabled: true, ParentID: "P"})
	s.addUser("u", "A")
	s.addMember("u", "A", tenant.RoleAdministrator, true)
	s.addMember("u", "B", tenant.RoleReadOnly, true)

	r, _ := newResolver(s)
	_, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}})
	assert.ErrorIs(t, err, ErrAccountInactive)
	assert.Equal(t, "Forbidden. Your account is not active.", Message(err))
}

func TestResolve_DisabledPrimaryFallsBackToFirstUsable(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "A", Enabled: false})
	s.addCompany(tenant.Company{ID: "P", Enabled: false})
	s.addCompany(tenant.Company{ID: "B", Enabled: true, ParentID: "P"})
	s.addCompany(tenant.Company{ID: "C", Enabled: true})
	s.addCompany(tenant.Company{ID: "D", Enabled: true})
	s.addUser("u", "A")
	s.addMember("u", "A", tenant.RoleAdministrator, true)
	s.addMember("u", "B", tenant.RoleReadOnly, true)
	s.addMember("u", "C", tenant.RolePowerUser, true)
	s.addMember("u", "D", tenant.RoleReadOnly, true)

	r, _ := newResolver(s)
	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}})
	require.NoError(t, err)
	assert.Equal(t, "C", p.Company.ID)
	assert.Equal(t, tenant.RolePowerUser, p.ActiveRole())
	assert.Equal(t, []string{"C", "D"}, ids(p.Companies))
}

func TestResolve_DeletedCompanyInvalidatesSession(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "A", Enabled: true, Deleted: true})
	s.addUser("u", "A")
	s.addMember("u", "A", tenant.RoleAdministrator, true)

	r, _ := newResolver(s)
	_, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}})
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Empty(t, s.touched())
}

func TestResolve_NoAccessWithoutSupportMembership(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "A", Enabled: true})
	s.addCompany(tenant.Company{ID: "X", Enabled: true})
	s.addUser("u", "A")
	s.addMember("u", "A", tenant.RoleAdministrator, true)

	r, _ := newResolver(s)
	_, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}, CompanyID: "X"})
	assert.ErrorIs(t, err, ErrNoCompanyAccess)
}

// reseller R manages customer M; the manager company of M is R.
func resellerFixture(role tenant.Role) *fakeStore {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "R", Name: "Reseller", Enabled: true, AccountType: tenant.AccountReseller})
	s.addCompany(tenant.Company{ID: "M", Name: "Customer", Enabled: true, AccountType: tenant.AccountManaged, ManagerID: "R"})
	s.addCompany(tenant.Company{ID: "M2", Name: "Customer 2", Enabled: true, AccountType: tenant.AccountManaged, ManagerID: "R"})
	s.addUser("u", "R")
	s.addMember("u", "R", role, true)
	return s
}

func TestResolve_ResellerSwitchRequiresManagerAdmin(t *testing.T) {
	s := resellerFixture(tenant.RolePowerUser)
	r, _ := newResolver(s)

	_, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}, CompanyID: "M", ResellerCompanyID: "R"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "You do not have permission to perform this action", Message(err))
}

func TestResolve_ResellerSwitchGrantsReadOnly(t *testing.T) {
	s := resellerFixture(tenant.RoleAdministrator)
	r, rec := newResolver(s)

	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}, CompanyID: "M", ResellerCompanyID: "R"})
	require.NoError(t, err)
	assert.Equal(t, "M", p.Company.ID)
	assert.Equal(t, tenant.RoleReadOnly, p.ActiveRole())
	assert.Equal(t, "R", p.ResellerCompanyID)
	assert.Equal(t, "Reseller", p.ResellerCompanyName)
	assert.Equal(t, []string{StrategyResellerSwitch}, rec.strategies)
	// Own companies plus the reseller's managed customers.
	assert.Equal(t, []string{"R", "M", "M2"}, ids(p.Companies))
	// The active company is in the list but the pre-merge list had one entry.
	assert.Empty(t, s.touched())
}

func TestResolve_ResellerSwitchForeignCustomerForbidden(t *testing.T) {
	s := resellerFixture(tenant.RoleAdministrator)
	s.addCompany(tenant.Company{ID: "O", Enabled: true, AccountType: tenant.AccountReseller})
	s.addCompany(tenant.Company{ID: "N", Enabled: true, AccountType: tenant.AccountManaged, ManagerID: "O"})
	r, _ := newResolver(s)

	_, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}, CompanyID: "N", ResellerCompanyID: "R"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestResolve_ResellerActiveMergesManagedCustomers(t *testing.T) {
	s := resellerFixture(tenant.RolePowerUser)
	// Direct membership in M with a stronger role; the managed entry wins.
	s.addMember("u", "M", tenant.RoleAdministrator, true)
	s.addCompany(tenant.Company{ID: "MX", Enabled: false, AccountType: tenant.AccountManaged, ManagerID: "R"})

	r, _ := newResolver(s)
	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}})
	require.NoError(t, err)

	assert.True(t, p.IsReseller)
	assert.Equal(t, tenant.RolePowerUser, p.ResellerRole)
	assert.Equal(t, []string{"R", "M", "M2"}, ids(p.Companies))
	assert.Equal(t, tenant.RoleReadOnly, p.Companies[1].Membership.Role)
}

func TestResolve_ForeignResellerIDMergesNothing(t *testing.T) {
	s := resellerFixture(tenant.RoleAdministrator)
	s.addCompany(tenant.Company{ID: "A", Name: "Plain", Enabled: true})
	s.addUser("v", "A")
	s.addMember("v", "A", tenant.RoleAdministrator, true)
	r, _ := newResolver(s)

	for _, companyID := range []string{"", "A"} {
		p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "v"}, CompanyID: companyID, ResellerCompanyID: "R"})
		require.NoError(t, err, companyID)
		assert.Equal(t, "A", p.Company.ID)
		assert.Empty(t, p.ResellerCompanyID)
		assert.Equal(t, []string{"A"}, ids(p.Companies))
	}
}

func TestResolve_SupportImpersonation(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: adminCo, Enabled: true})
	s.addCompany(tenant.Company{ID: "R", Enabled: true, AccountType: tenant.AccountReseller})
	s.addCompany(tenant.Company{ID: "B1", Enabled: true, ParentID: "P"})
	s.addCompany(tenant.Company{ID: "P", Enabled: true, ManagerID: "R"})
	s.addCompany(tenant.Company{ID: "B", Enabled: true, ParentID: "P", ManagerID: "R"})
	s.addCompany(tenant.Company{ID: "B3", Enabled: false, ParentID: "P"})
	s.addUser("sup", adminCo)
	s.addMember("sup", adminCo, tenant.RoleAdministrator, true)

	r, rec := newResolver(s)
	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "sup"}, CompanyID: "B"})
	require.NoError(t, err)

	assert.Equal(t, "B", p.Company.ID)
	assert.Equal(t, tenant.RoleReadOnly, p.ActiveRole())
	assert.Equal(t, adminCo, p.SupportCompanyID)
	assert.False(t, p.IsSuperAdmin)
	// Manager first, then siblings with the top-level account leading.
	assert.Equal(t, []string{"R", "P", "B1", "B"}, ids(p.Companies))
	for _, c := range p.Companies {
		assert.Equal(t, tenant.RoleReadOnly, c.Membership.Role)
		assert.True(t, c.Membership.Enabled)
	}
	assert.Equal(t, []string{StrategySupport}, rec.strategies)
	assert.Empty(t, s.touched())
}

func TestResolve_SupportSkipsManagerWhenAlreadyMember(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: adminCo, Enabled: true})
	s.addCompany(tenant.Company{ID: "R", Enabled: true, AccountType: tenant.AccountReseller})
	s.addCompany(tenant.Company{ID: "B", Enabled: true, ManagerID: "R", AccountType: tenant.AccountManaged})
	s.addUser("sup", adminCo)
	s.addMember("sup", adminCo, tenant.RoleAdministrator, true)
	s.addMember("sup", "R", tenant.RoleReadOnly, true)

	r, _ := newResolver(s)
	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "sup"}, CompanyID: "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, ids(p.Companies))
}

func TestResolve_SupportOnResellerDefaultsReadOnly(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: adminCo, Enabled: true})
	s.addCompany(tenant.Company{ID: "R", Enabled: true, AccountType: tenant.AccountReseller})
	s.addCompany(tenant.Company{ID: "M", Enabled: true, ManagerID: "R", AccountType: tenant.AccountManaged})
	s.addUser("sup", adminCo)
	s.addMember("sup", adminCo, tenant.RoleAdministrator, true)

	r, _ := newResolver(s)
	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "sup"}, CompanyID: "R"})
	require.NoError(t, err)
	assert.True(t, p.IsReseller)
	assert.Equal(t, tenant.RoleReadOnly, p.ResellerRole)
	assert.Equal(t, []string{"R", "M"}, ids(p.Companies))
}

func TestResolve_SupportTargetMissing(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: adminCo, Enabled: true})
	s.addUser("sup", adminCo)
	s.addMember("sup", adminCo, tenant.RoleAdministrator, true)

	r, _ := newResolver(s)
	_, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "sup"}, CompanyID: "nope"})
	assert.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestResolve_SuperAdminRoleFromMembership(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: adminCo, Enabled: true, AccountType: tenant.AccountReseller})
	s.addCompany(tenant.Company{ID: "M", Enabled: true, ManagerID: adminCo, AccountType: tenant.AccountManaged})
	s.addUser("root", adminCo)
	s.addMember("root", adminCo, tenant.RolePowerUser, true)

	r, _ := newResolver(s)
	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "root"}})
	require.NoError(t, err)
	assert.True(t, p.IsSuperAdmin)
	assert.Equal(t, tenant.RolePowerUser, p.SuperAdminRole)
	// The admin company never gets managed expansion.
	assert.Equal(t, []string{adminCo}, ids(p.Companies))
}

func TestResolve_SAMLLookupByEmail(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "A", Enabled: true})
	s.addUser("u", "A")
	s.addMember("u", "A", tenant.RoleAdministrator, true)

	r, _ := newResolver(s)
	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{Email: "u@example.com"}, SAML: true})
	require.NoError(t, err)
	assert.True(t, p.IsSAML)
	assert.Equal(t, "u", p.ID)
}

func TestResolve_LastActiveFailureIsSwallowed(t *testing.T) {
	s := newFakeStore()
	s.addCompany(tenant.Company{ID: "A", Enabled: true})
	s.addCompany(tenant.Company{ID: "B", Enabled: true})
	s.addUser("u", "A")
	s.addMember("u", "A", tenant.RoleAdministrator, true)
	s.addMember("u", "B", tenant.RoleAdministrator, true)
	s.touchErr = errors.New("db down")

	r, rec := newResolver(s)
	p, err := resolve(t, r, Request{Lookup: tenant.UserLookup{ID: "u"}})
	require.NoError(t, err)
	assert.Equal(t, "A", p.Company.ID)
	assert.Equal(t, 1, rec.failures)
}

func TestServiceAccountPrincipal(t *testing.T) {
	p := NewServiceAccount("co-9")
	assert.True(t, p.IsServiceAccount())
	assert.Equal(t, ServiceAccountID, p.ID)
	assert.Equal(t, "co-9", p.Company.ID)
	assert.Equal(t, tenant.RoleServiceAccount, p.ActiveRole())
}
