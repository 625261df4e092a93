package saml

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenant-admin/pkg/utils"
)

const configColumns = `id, provider_name, user_id, company_id, is_enabled, created_at, updated_at`

func scanConfig(row *sql.Row) (Configuration, error) {
	var c Configuration
	if err := row.Scan(
		&c.ID,
		&c.ProviderName,
		&c.UserID,
		&c.CompanyID,
		&c.IsEnabled,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Configuration{}, ErrNotFound
		}
		return Configuration{}, err
	}
	return c, nil
}

func getByCompany(ctx context.Context, db utils.DBTX, companyID string) (Configuration, error) {
	const q = `
SELECT ` + configColumns + `
FROM saml_configuration
WHERE company_id = $1
LIMIT 1
`
	return scanConfig(db.QueryRowContext(ctx, q, companyID))
}

func getEnabledByCompany(ctx context.Context, db utils.DBTX, companyID string) (Configuration, error) {
	const q = `
SELECT ` + configColumns + `
FROM saml_configuration
WHERE company_id = $1 AND is_enabled = true
LIMIT 1
`
	return scanConfig(db.QueryRowContext(ctx, q, companyID))
}

// lockEnabledByCompany serializes concurrent updates of one company's row.
func lockEnabledByCompany(ctx context.Context, tx *sql.Tx, companyID string) (Configuration, error) {
	const q = `
SELECT ` + configColumns + `
FROM saml_configuration
WHERE company_id = $1 AND is_enabled = true
FOR UPDATE
`
	return scanConfig(tx.QueryRowContext(ctx, q, companyID))
}

func insertConfig(ctx context.Context, tx *sql.Tx, c Configuration) error {
	const q = `
INSERT INTO saml_configuration (
  id, provider_name, user_id, company_id, is_enabled, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
`
	_, err := tx.ExecContext(ctx, q,
		c.ID,
		c.ProviderName,
		c.UserID,
		c.CompanyID,
		c.IsEnabled,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if utils.IsUniqueViolation(err, "") {
		return ErrAlreadyConfigured
	}
	return err
}

func touchConfig(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	const q = `UPDATE saml_configuration SET updated_at = $2 WHERE id = $1`
	res, err := tx.ExecContext(ctx, q, id, now)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteConfig(ctx context.Context, db utils.DBTX, id string) error {
	const q = `DELETE FROM saml_configuration WHERE id = $1`
	_, err := db.ExecContext(ctx, q, id)
	return err
}
