package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"tenant-admin/internal/tenant"
)

type memberKey struct{ companyID, userID string }

type touch struct {
	userID, companyID string
	at                time.Time
}

// fakeStore mirrors the repository semantics over in-memory maps.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]tenant.User
	companies   map[string]tenant.Company
	memberships map[memberKey]tenant.Membership
	touches     []touch
	touchErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]tenant.User{},
		companies:   map[string]tenant.Company{},
		memberships: map[memberKey]tenant.Membership{},
	}
}

var seq = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func (s *fakeStore) addCompany(c tenant.Company) tenant.Company {
	if c.CreatedAt.IsZero() {
		seq = seq.Add(time.Minute)
		c.CreatedAt = seq
	}
	if c.AccountType == "" {
		c.AccountType = tenant.AccountStandard
	}
	s.companies[c.ID] = c
	return c
}

func (s *fakeStore) addUser(id, primary string) {
	s.users[id] = tenant.User{ID: id, Email: id + "@example.com", PrimaryCompanyID: primary, Enabled: true}
}

func (s *fakeStore) addMember(userID, companyID string, role tenant.Role, enabled bool) {
	s.memberships[memberKey{companyID, userID}] = tenant.Membership{Role: role, Enabled: enabled}
}

func (s *fakeStore) LoadUserWithCompanies(ctx context.Context, lookup tenant.UserLookup) (tenant.UserWithCompanies, error) {
	var (
		u  tenant.User
		ok bool
	)
	if lookup.ID != "" {
		u, ok = s.users[lookup.ID]
	} else {
		for _, cand := range s.users {
			if cand.Email == lookup.Email {
				u, ok = cand, true
			}
		}
	}
	if !ok || u.Deleted {
		return tenant.UserWithCompanies{}, tenant.ErrNotFound
	}

	out := tenant.UserWithCompanies{User: u}
	if a, err := s.GetCompanyAccess(ctx, u.PrimaryCompanyID, u.ID); err == nil {
		out.PrimaryCompany = &a
		out.Companies = append(out.Companies, a)
	}

	var others []tenant.CompanyAccess
	for k, m := range s.memberships {
		if k.userID != u.ID || k.companyID == u.PrimaryCompanyID || !m.Enabled {
			continue
		}
		c := s.companies[k.companyID]
		if !c.Enabled || c.Deleted {
			continue
		}
		others = append(others, tenant.CompanyAccess{Company: c, Membership: m})
	}
	sort.Slice(others, func(i, j int) bool { return others[i].CreatedAt.Before(others[j].CreatedAt) })
	out.Companies = append(out.Companies, others...)
	return out, nil
}

func (s *fakeStore) GetCompany(ctx context.Context, id string) (tenant.Company, error) {
	c, ok := s.companies[id]
	if !ok {
		return tenant.Company{}, tenant.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) GetCompanyAccess(ctx context.Context, companyID, userID string) (tenant.CompanyAccess, error) {
	m, ok := s.memberships[memberKey{companyID, userID}]
	if !ok {
		return tenant.CompanyAccess{}, tenant.ErrNotFound
	}
	c, ok := s.companies[companyID]
	if !ok {
		return tenant.CompanyAccess{}, tenant.ErrNotFound
	}
	return tenant.CompanyAccess{Company: c, Membership: m}, nil
}

func (s *fakeStore) GetMembership(ctx context.Context, companyID, userID string) (tenant.Membership, error) {
	m, ok := s.memberships[memberKey{companyID, userID}]
	if !ok {
		return tenant.Membership{}, tenant.ErrNotFound
	}
	return m, nil
}

func (s *fakeStore) sorted(keep func(tenant.Company) bool) []tenant.Company {
	var out []tenant.Company
	for _, c := range s.companies {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *fakeStore) ListManagedCompanies(ctx context.Context, managerID, excludeID string) ([]tenant.Company, error) {
	return s.sorted(func(c tenant.Company) bool {
		return c.ManagerID == managerID && c.ID != excludeID && c.TopLevel() &&
			c.Enabled && !c.Deleted && c.AccountType == tenant.AccountManaged
	}), nil
}

func (s *fakeStore) ListSubAccounts(ctx context.Context, companyID string, includeParent bool) ([]tenant.Company, error) {
	return s.sorted(func(c tenant.Company) bool {
		return (c.ParentID == companyID && c.Enabled) || (includeParent && c.ID == companyID)
	}), nil
}

func (s *fakeStore) TouchLastActive(ctx context.Context, userID, companyID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.touchErr != nil {
		return s.touchErr
	}
	s.touches = append(s.touches, touch{userID, companyID, at})
	return nil
}

func (s *fakeStore) touched() []touch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]touch, len(s.touches))
	copy(out, s.touches)
	return out
}

type countingRecorder struct {
	mu         sync.Mutex
	strategies []string
	failures   int
}

func (r *countingRecorder) ObserveStrategy(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, s)
}

func (r *countingRecorder) ObserveLastActiveFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func ids(list []tenant.CompanyAccess) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.ID)
	}
	return out
}
