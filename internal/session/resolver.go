package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tenant-admin/internal/tenant"
	"tenant-admin/pkg/logger"
)

// Resolution strategies, reported to the Recorder.
const (
	StrategyDirect         = "direct"
	StrategyResellerSwitch = "reseller_switch"
	StrategySupport        = "support"
)

// Request carries what the authorization header and token told us.
type Request struct {
	Lookup            tenant.UserLookup
	CompanyID         string
	ResellerCompanyID string
	SAML              bool
}

type Config struct {
	// AdminCompanyID is the designated admin/support company.
	AdminCompanyID string
	// LastActiveTimeout bounds the background last-active update.
	LastActiveTimeout time.Duration
}

// Resolver turns a verified identity plus the requested company context into
// a Principal.
type Resolver struct {
	store    Store
	cfg      Config
	recorder Recorder
	clock    func() time.Time

	touches sync.WaitGroup
}

func NewResolver(store Store, cfg Config, recorder Recorder) *Resolver {
	if cfg.LastActiveTimeout <= 0 {
		cfg.LastActiveTimeout = 5 * time.Second
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Resolver{store: store, cfg: cfg, recorder: recorder, clock: time.Now}
}

// Wait blocks until in-flight last-active updates finish.
func (r *Resolver) Wait() { r.touches.Wait() }

// Resolve runs company resolution, hierarchy expansion, the enablement
// cascade and the final principal assembly, in that order.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Principal, error) {
	u, err := r.store.LoadUserWithCompanies(ctx, req.Lookup)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return Principal{}, ErrUserNotFound
		}
		return Principal{}, err
	}

	p := Principal{
		User:           u.User,
		Companies:      u.Companies,
		PrimaryCompany: u.PrimaryCompany,
		IsSAML:         req.SAML,
	}
	// Membership-backed reseller the caller belongs to, captured before any
	// strategy rewrites the visible companies.
	reseller, hasReseller := ownReseller(u.Companies, req.ResellerCompanyID)

	strategy, err := r.resolveCompany(ctx, &p, req, reseller, hasReseller)
	if err != nil {
		return Principal{}, err
	}
	r.recorder.ObserveStrategy(strategy)

	if err := checkEnablement(ctx, r.store, &p); err != nil {
		return Principal{}, err
	}

	touch := !p.IsSupportSession() && len(p.Companies) > 1 && p.HasCompany(p.Company.ID)

	r.assignRoleFlags(&p)

	managerID := r.managedCustomersOf(p, reseller, hasReseller)
	if managerID != "" {
		managed, err := r.store.ListManagedCompanies(ctx, managerID, r.cfg.AdminCompanyID)
		if err != nil {
			return Principal{}, err
		}
		p.Companies = MergeCompanies(p.Companies, readOnlyAll(managed))
	}

	if p.Company.Deleted {
		return Principal{}, ErrSessionInvalid
	}

	if touch {
		r.touchLastActive(ctx, p.ID, p.Company.ID)
	}
	return p, nil
}

func ownReseller(companies []tenant.CompanyAccess, id string) (tenant.CompanyAccess, bool) {
	if id == "" {
		return tenant.CompanyAccess{}, false
	}
	i := indexOf(companies, id)
	if i < 0 || !companies[i].IsReseller() {
		return tenant.CompanyAccess{}, false
	}
	return companies[i], true
}

// resolveCompany picks exactly one strategy from the available context:
// direct membership first, then a reseller switch when the caller names a
// reseller they belong to, then support impersonation.
func (r *Resolver) resolveCompany(ctx context.Context, p *Principal, req Request, reseller tenant.CompanyAccess, hasReseller bool) (string, error) {
	company, ok, err := r.direct(ctx, *p, req.CompanyID)
	if err != nil {
		return "", err
	}
	switch {
	case ok:
		p.Company = company
		return StrategyDirect, nil
	case req.CompanyID == "":
		return "", ErrNoCompanyAccess
	case hasReseller:
		return StrategyResellerSwitch, r.resellerSwitch(ctx, p, req.CompanyID, reseller)
	default:
		return StrategySupport, r.support(ctx, p, req.CompanyID)
	}
}

// direct resolves the company through the caller's own membership. With no
// company id the primary company is used.
func (r *Resolver) direct(ctx context.Context, p Principal, companyID string) (tenant.CompanyAccess, bool, error) {
	if companyID == "" {
		if p.PrimaryCompany == nil {
			return tenant.CompanyAccess{}, false, nil
		}
		return *p.PrimaryCompany, true, nil
	}
	a, err := r.store.GetCompanyAccess(ctx, companyID, p.ID)
	if errors.Is(err, tenant.ErrNotFound) {
		return tenant.CompanyAccess{}, false, nil
	}
	if err != nil {
		return tenant.CompanyAccess{}, false, err
	}
	return a, true, nil
}

// resellerSwitch grants read-only access to a customer of the reseller when
// the caller administers the customer's manager company.
func (r *Resolver) resellerSwitch(ctx context.Context, p *Principal, companyID string, reseller tenant.CompanyAccess) error {
	target, err := r.store.GetCompany(ctx, companyID)
	if errors.Is(err, tenant.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if target.ManagerID == "" {
		return ErrForbidden
	}

	m, err := r.store.GetMembership(ctx, target.ManagerID, p.ID)
	if errors.Is(err, tenant.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if !m.Enabled || m.Role != tenant.RoleAdministrator {
		return ErrForbidden
	}

	p.Company = tenant.ReadOnlyAccess(target)
	p.ResellerCompanyID = reseller.ID
	p.ResellerCompanyName = reseller.Name
	return nil
}

// support lets members of the admin company impersonate any customer with
// read-only access. The visible companies become the customer's manager (when
// the caller is not already a member of it) followed by the customer's
// sibling set, top-level account first.
func (r *Resolver) support(ctx context.Context, p *Principal, companyID string) error {
	if r.cfg.AdminCompanyID == "" || !p.HasCompany(r.cfg.AdminCompanyID) {
		return ErrNoCompanyAccess
	}

	target, err := r.store.GetCompany(ctx, companyID)
	if errors.Is(err, tenant.ErrNotFound) {
		return ErrCompanyNotFound
	}
	if err != nil {
		return err
	}

	var manager []tenant.CompanyAccess
	if target.ManagerID != "" {
		_, err := r.store.GetCompanyAccess(ctx, target.ManagerID, p.ID)
		switch {
		case errors.Is(err, tenant.ErrNotFound):
			mc, err := r.store.GetCompany(ctx, target.ManagerID)
			if err != nil && !errors.Is(err, tenant.ErrNotFound) {
				return err
			}
			if err == nil {
				manager = append(manager, tenant.ReadOnlyAccess(mc))
			}
		case err != nil:
			return err
		}
	}

	root := target.ParentID
	if root == "" {
		root = target.ID
	}
	subs, err := r.store.ListSubAccounts(ctx, root, true)
	if err != nil {
		return err
	}
	siblings := readOnlyAll(subs)
	topLevelFirst(siblings)

	p.Company = tenant.ReadOnlyAccess(target)
	p.Companies = append(manager, siblings...)
	p.SupportCompanyID = r.cfg.AdminCompanyID
	return nil
}

func (r *Resolver) assignRoleFlags(p *Principal) {
	role := p.Company.Membership.Role
	if p.Company.ID != "" && p.Company.ID == r.cfg.AdminCompanyID {
		p.IsSuperAdmin = true
		p.SuperAdminRole = role
		if p.SuperAdminRole == "" {
			p.SuperAdminRole = tenant.RoleReadOnly
		}
	}
	if p.Company.IsReseller() {
		p.IsReseller = true
		p.ResellerRole = tenant.RoleReadOnly
		if !p.IsSupportSession() && role != "" {
			p.ResellerRole = role
		}
	}
}

// managedCustomersOf returns the reseller whose managed customers should be
// merged into the visible companies, or "" when none apply. The admin
// company never gets managed expansion.
func (r *Resolver) managedCustomersOf(p Principal, reseller tenant.CompanyAccess, hasReseller bool) string {
	if p.Company.ID == r.cfg.AdminCompanyID {
		return ""
	}
	switch {
	case p.ResellerCompanyID != "":
		return p.ResellerCompanyID
	case hasReseller:
		return reseller.ID
	case p.Company.IsReseller():
		return p.Company.ID
	default:
		return ""
	}
}

// touchLastActive records activity in the background. Failures are logged
// and counted, never returned.
func (r *Resolver) touchLastActive(ctx context.Context, userID, companyID string) {
	log := logger.From(ctx)
	bg := context.WithoutCancel(ctx)
	at := r.clock().UTC()

	r.touches.Add(1)
	go func() {
		defer r.touches.Done()
		tctx, cancel := context.WithTimeout(bg, r.cfg.LastActiveTimeout)
		defer cancel()

		if err := r.store.TouchLastActive(tctx, userID, companyID, at); err != nil {
			r.recorder.ObserveLastActiveFailure()
			log.Warn("last active update failed",
				slog.String("user_id", userID),
				slog.String("company_id", companyID),
				slog.Any("err", err),
			)
		}
	}()
}
