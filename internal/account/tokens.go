package account

import (
	"context"
	"time"

	"tenant-admin/pkg/utils"
)

// RefreshTokenTTL is how long a stored refresh token is considered valid.
const RefreshTokenTTL = 30 * 24 * time.Hour

type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type TokenRepository struct {
	db utils.DBTX
}

func NewTokenRepository(db utils.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Save(ctx context.Context, t RefreshToken) error {
	const q = `
INSERT INTO tokens (id, user_id, token, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
`
	_, err := r.db.ExecContext(ctx, q, t.ID, t.UserID, t.Token, t.ExpiresAt.UTC(), t.CreatedAt.UTC())
	return err
}
