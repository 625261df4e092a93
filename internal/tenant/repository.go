package tenant

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"tenant-admin/pkg/utils"
)

var (
	ErrNotFound  = errors.New("tenant: not found")
	ErrDuplicate = errors.New("tenant: duplicate")
)

// Repository runs the tenant queries. It works over a *sql.DB or a *sql.Tx;
// use WithTx to bind a copy to a transaction.
type Repository struct {
	db utils.DBTX
}

func NewRepository(db utils.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

const companyColumns = `c.id, c.name, COALESCE(c.address, ''), c.enabled, c.deleted, c.account_type, c.parent_id, c.manager_id, c.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner, extra ...any) (Company, error) {
	var (
		c         Company
		parentID  sql.NullString
		managerID sql.NullString
	)
	dest := []any{&c.ID, &c.Name, &c.Address, &c.Enabled, &c.Deleted, &c.AccountType, &parentID, &managerID, &c.CreatedAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return Company{}, err
	}
	c.ParentID = parentID.String
	c.ManagerID = managerID.String
	return c, nil
}

func scanAccess(row rowScanner) (CompanyAccess, error) {
	var (
		a          CompanyAccess
		lastActive sql.NullTime
	)
	c, err := scanCompany(row, &a.Membership.Role, &a.Membership.Enabled, &lastActive)
	if err != nil {
		return CompanyAccess{}, err
	}
	a.Company = c
	if lastActive.Valid {
		t := lastActive.Time
		a.Membership.LastActive = &t
	}
	return a, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *Repository) GetCompany(ctx context.Context, id string) (Company, error) {
	q := `SELECT ` + companyColumns + ` FROM companies c WHERE c.id = $1`
	c, err := scanCompany(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

// GetCompanyAccess loads the company joined with userID's membership in it.
// The membership is returned as stored, enabled or not.
func (r *Repository) GetCompanyAccess(ctx context.Context, companyID, userID string) (CompanyAccess, error) {
	q := `
SELECT ` + companyColumns + `, uc.role, uc.enabled, uc.last_active
FROM user_companies uc
JOIN companies c ON c.id = uc.company_id
WHERE uc.company_id = $1 AND uc.user_id = $2
`
	a, err := scanAccess(r.db.QueryRowContext(ctx, q, companyID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CompanyAccess{}, ErrNotFound
		}
		return CompanyAccess{}, err
	}
	return a, nil
}

// GetMembership returns userID's membership row in companyID.
func (r *Repository) GetMembership(ctx context.Context, companyID, userID string) (Membership, error) {
	const q = `SELECT role, enabled, last_active FROM user_companies WHERE company_id = $1 AND user_id = $2`
	var (
		m          Membership
		lastActive sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, q, companyID, userID).Scan(&m.Role, &m.Enabled, &lastActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Membership{}, ErrNotFound
		}
		return Membership{}, err
	}
	if lastActive.Valid {
		t := lastActive.Time
		m.LastActive = &t
	}
	return m, nil
}

func (r *Repository) getUser(ctx context.Context, where string, arg string) (User, error) {
	q := `
SELECT id, email, first_name, last_name, primary_company_id, enabled, deleted, deleted_at, created_at
FROM users
WHERE ` + where + ` AND deleted = false
`
	var (
		u         User
		deletedAt sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PrimaryCompanyID,
		&u.Enabled,
		&u.Deleted,
		&deletedAt,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return u, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (User, error) {
	return r.getUser(ctx, "id = $1", id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return r.getUser(ctx, "lower(email) = lower($1)", strings.TrimSpace(email))
}

// ListUserCompanies returns the enabled, non-deleted companies in which the
// user holds an enabled membership, oldest company first.
func (r *Repository) ListUserCompanies(ctx context.Context, userID string) ([]CompanyAccess, error) {
	q := `
SELECT ` + companyColumns + `, uc.role, uc.enabled, uc.last_active
FROM user_companies uc
JOIN companies c ON c.id = uc.company_id
WHERE uc.user_id = $1
  AND uc.enabled = true
  AND c.enabled = true
  AND c.deleted = false
ORDER BY c.created_at ASC, c.id ASC
`
	return r.listAccess(ctx, q, userID)
}

func (r *Repository) listAccess(ctx context.Context, q string, args ...any) ([]CompanyAccess, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompanyAccess
	for rows.Next() {
		a, err := scanAccess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) listCompanies(ctx context.Context, q string, args ...any) ([]Company, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadUserWithCompanies loads the user plus their directly accessible
// companies. The primary company is pinned first with the user's membership
// as stored; it is present even when disabled so the enablement cascade can
// judge it.
func (r *Repository) LoadUserWithCompanies(ctx context.Context, lookup UserLookup) (UserWithCompanies, error) {
	var (
		u   User
		err error
	)
	switch {
	case lookup.ID != "":
		u, err = r.GetUserByID(ctx, lookup.ID)
	case lookup.Email != "":
		u, err = r.GetUserByEmail(ctx, lookup.Email)
	default:
		return UserWithCompanies{}, ErrNotFound
	}
	if err != nil {
		return UserWithCompanies{}, err
	}

	out := UserWithCompanies{User: u}
	if u.PrimaryCompanyID != "" {
		primary, err := r.GetCompanyAccess(ctx, u.PrimaryCompanyID, u.ID)
		switch {
		case err == nil:
			out.PrimaryCompany = &primary
			out.Companies = append(out.Companies, primary)
		case errors.Is(err, ErrNotFound):
		default:
			return UserWithCompanies{}, err
		}
	}

	others, err := r.ListUserCompanies(ctx, u.ID)
	if err != nil {
		return UserWithCompanies{}, err
	}
	for _, c := range others {
		if c.ID == u.PrimaryCompanyID {
			continue
		}
		out.Companies = append(out.Companies, c)
	}
	return out, nil
}

// ListManagedCompanies returns the enabled, non-deleted, top-level Managed
// accounts whose manager is managerID, never including excludeID.
func (r *Repository) ListManagedCompanies(ctx context.Context, managerID, excludeID string) ([]Company, error) {
	if managerID == "" {
		return nil, nil
	}
	q := `
SELECT ` + companyColumns + `
FROM companies c
WHERE c.manager_id = $1
  AND c.id <> $2
  AND c.parent_id IS NULL
  AND c.enabled = true
  AND c.deleted = false
  AND c.account_type = $3
ORDER BY c.created_at ASC, c.id ASC
`
	return r.listCompanies(ctx, q, managerID, excludeID, string(AccountManaged))
}

// ListSubAccounts returns the enabled children of companyID, plus companyID
// itself when includeParent is set.
func (r *Repository) ListSubAccounts(ctx context.Context, companyID string, includeParent bool) ([]Company, error) {
	q := `
SELECT ` + companyColumns + `
FROM companies c
WHERE (c.parent_id = $1 AND c.enabled = true)
   OR ($2 AND c.id = $1)
ORDER BY c.created_at ASC, c.id ASC
`
	return r.listCompanies(ctx, q, companyID, includeParent)
}

// TouchLastActive stamps the user's enabled membership in companyID.
func (r *Repository) TouchLastActive(ctx context.Context, userID, companyID string, at time.Time) error {
	const q = `
UPDATE user_companies
SET last_active = $3, updated_at = $3
WHERE user_id = $1 AND company_id = $2 AND enabled = true
`
	res, err := r.db.ExecContext(ctx, q, userID, companyID, at.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CreateCompany(ctx context.Context, c Company) error {
	const q = `
INSERT INTO companies (id, name, address, enabled, deleted, account_type, parent_id, manager_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, false, $5, $6, $7, $8, $8)
`
	if c.AccountType == "" {
		c.AccountType = AccountStandard
	}
	_, err := r.db.ExecContext(ctx, q, c.ID, c.Name, c.Address, c.Enabled, string(c.AccountType), nullable(c.ParentID), nullable(c.ManagerID), c.CreatedAt.UTC())
	if utils.IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) CreateUser(ctx context.Context, u User) error {
	const q = `
INSERT INTO users (id, email, first_name, last_name, primary_company_id, enabled, deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, false, $7, $7)
`
	_, err := r.db.ExecContext(ctx, q, u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.FirstName, u.LastName, u.PrimaryCompanyID, u.Enabled, u.CreatedAt.UTC())
	if utils.IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	return err
}

// CreateMembership links a user to a company. The (user, company) pair is
// unique; a second insert fails with ErrDuplicate.
func (r *Repository) CreateMembership(ctx context.Context, id, userID, companyID string, role Role, at time.Time) error {
	const q = `
INSERT INTO user_companies (id, user_id, company_id, role, enabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, true, $5, $5)
`
	_, err := r.db.ExecContext(ctx, q, id, userID, companyID, string(role), at.UTC())
	if utils.IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	return err
}

// SetUserEnabledByEmail flips the enabled flag of a non-deleted user.
func (r *Repository) SetUserEnabledByEmail(ctx context.Context, email string, enabled bool, at time.Time) error {
	const q = `
UPDATE users SET enabled = $2, updated_at = $3
WHERE lower(email) = lower($1) AND deleted = false
`
	res, err := r.db.ExecContext(ctx, q, strings.TrimSpace(email), enabled, at.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
