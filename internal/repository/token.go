package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/utellme/utellme/internal/model"
)

var ErrTokenNotFound = errors.New("token not found")

type TokenRepository interface {
	Create(ctx context.Context, token *model.VerificationToken) error
	Consume(ctx context.Context, token string) (*model.VerificationToken, error)
	DeleteUnused(ctx context.Context, identifier string) error
	CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type tokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *model.VerificationToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now()
	}

	query := `
		INSERT INTO verification_tokens (id, identifier, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.Identifier,
		token.Token,
		token.ExpiresAt,
		token.CreatedAt,
	)
	return err
}

// Consume marks the token as used and returns it. The conditional UPDATE is
// the single point of truth: of two concurrent requests only one matches a row,
// the other gets ErrTokenNotFound.
func (r *tokenRepository) Consume(ctx context.Context, token string) (*model.VerificationToken, error) {
	ts := now()

	result, err := r.db.ExecContext(ctx, `
		UPDATE verification_tokens
		SET used_at = $1
		WHERE token = $2
		AND used_at IS NULL
		AND expires_at > $3
	`, ts, token, ts)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrTokenNotFound
	}

	var t model.VerificationToken
	err = r.db.GetContext(ctx, &t, `SELECT * FROM verification_tokens WHERE token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func (r *tokenRepository) DeleteUnused(ctx context.Context, identifier string) error {
	query := `DELETE FROM verification_tokens WHERE identifier = $1 AND used_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, identifier)
	return err
}

// CleanupExpired removes used and expired tokens older than the given duration.
func (r *tokenRepository) CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := now().Add(-olderThan)
	query := `
		DELETE FROM verification_tokens
		WHERE (used_at IS NOT NULL AND used_at < $1)
		   OR (expires_at < $1)
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
