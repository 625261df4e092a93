package audit

import (
	"context"
	"database/sql"

	"tenant-admin/pkg/utils"
)

type PostgresRepo struct {
	db utils.DBTX
}

func NewPostgresRepo(db utils.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, company_id, type, actor_user_id, actor_role, ip_address, target_id, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.CompanyID,
		string(e.Type),
		nullString(e.ActorUserID),
		nullString(e.ActorRole),
		nullString(e.IPAddress),
		nullString(e.TargetID),
		nullString(e.Message),
		nullString(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
