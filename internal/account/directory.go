package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenant-admin/internal/session"
	"tenant-admin/internal/tenant"
	"tenant-admin/pkg/utils"
)

// Registration is everything sign-up persists.
type Registration struct {
	Company      tenant.Company
	User         tenant.User
	MembershipID string
}

// Directory is the local user store the auth flows read and write.
type Directory interface {
	UserByEmail(ctx context.Context, email string) (tenant.User, error)
	UserByID(ctx context.Context, id string) (tenant.User, error)
	// ActiveCompanies returns the user's usable companies: enabled,
	// enabled membership, enabled ancestor chain.
	ActiveCompanies(ctx context.Context, userID string) ([]tenant.CompanyAccess, error)
	Register(ctx context.Context, r Registration) error
	EnableUser(ctx context.Context, email string, at time.Time) error
	SaveRefreshToken(ctx context.Context, t RefreshToken) error
}

// PostgresDirectory implements Directory over the tenant tables.
type PostgresDirectory struct {
	db     *sql.DB
	repo   *tenant.Repository
	tokens *TokenRepository
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db, repo: tenant.NewRepository(db), tokens: NewTokenRepository(db)}
}

func userErr(err error) error {
	if errors.Is(err, tenant.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (d *PostgresDirectory) UserByEmail(ctx context.Context, email string) (tenant.User, error) {
	u, err := d.repo.GetUserByEmail(ctx, email)
	return u, userErr(err)
}

func (d *PostgresDirectory) UserByID(ctx context.Context, id string) (tenant.User, error) {
	u, err := d.repo.GetUserByID(ctx, id)
	return u, userErr(err)
}

func (d *PostgresDirectory) ActiveCompanies(ctx context.Context, userID string) ([]tenant.CompanyAccess, error) {
	all, err := d.repo.ListUserCompanies(ctx, userID)
	if err != nil {
		return nil, err
	}
	return session.FilterEnabledChains(ctx, d.repo, all)
}

// Register creates the company, its first user and the Administrator
// membership in one transaction.
func (d *PostgresDirectory) Register(ctx context.Context, r Registration) error {
	return utils.WithTx(ctx, d.db, utils.ReadCommitted, func(ctx context.Context, tx *sql.Tx) error {
		repo := d.repo.WithTx(tx)
		if err := repo.CreateCompany(ctx, r.Company); err != nil {
			return err
		}
		if err := repo.CreateUser(ctx, r.User); err != nil {
			return err
		}
		return repo.CreateMembership(ctx, r.MembershipID, r.User.ID, r.Company.ID, tenant.RoleAdministrator, r.Company.CreatedAt)
	})
}

func (d *PostgresDirectory) EnableUser(ctx context.Context, email string, at time.Time) error {
	return userErr(d.repo.SetUserEnabledByEmail(ctx, email, true, at))
}

func (d *PostgresDirectory) SaveRefreshToken(ctx context.Context, t RefreshToken) error {
	return d.tokens.Save(ctx, t)
}
