package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/utellme/utellme/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByBillingCustomerID(ctx context.Context, customerID string) (*model.User, error)
	UpdateName(ctx context.Context, id, name string) error
	UpdateImageKey(ctx context.Context, id string, key *string) error
	MarkEmailVerified(ctx context.Context, id string) error
	SetBillingCustomerID(ctx context.Context, id, customerID string) error
	SetSubscriptionStatus(ctx context.Context, id string, status model.SubscriptionStatus) error
	DeleteAccount(ctx context.Context, id string) (*model.User, error)
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, name, email, email_verified_at, image, subscription_status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.EmailVerifiedAt,
		user.Image,
		user.SubscriptionStatus,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE id = $1`, id)
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE email = $1`, email)
}

func (r *userRepository) ByBillingCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE billing_customer_id = $1`, customerID)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) UpdateName(ctx context.Context, id, name string) error {
	return r.exec(ctx, `UPDATE users SET name = $1 WHERE id = $2`, name, id)
}

func (r *userRepository) UpdateImageKey(ctx context.Context, id string, key *string) error {
	return r.exec(ctx, `UPDATE users SET image_key = $1 WHERE id = $2`, key, id)
}

func (r *userRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET email_verified_at = $1 WHERE id = $2 AND email_verified_at IS NULL`, now(), id)
}

func (r *userRepository) SetBillingCustomerID(ctx context.Context, id, customerID string) error {
	return r.exec(ctx, `UPDATE users SET billing_customer_id = $1 WHERE id = $2`, customerID, id)
}

func (r *userRepository) SetSubscriptionStatus(ctx context.Context, id string, status model.SubscriptionStatus) error {
	return r.exec(ctx, `UPDATE users SET subscription_status = $1 WHERE id = $2`, status, id)
}

// exec runs a single-row update and reports ErrUserNotFound when no row matched.
func (r *userRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// DeleteAccount removes the user and everything they own in one transaction
// and returns the row as it was before deletion. Child rows are deleted
// explicitly so the result does not depend on foreign key enforcement.
func (r *userRepository) DeleteAccount(ctx context.Context, id string) (*model.User, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	user := &model.User{}
	err = tx.GetContext(ctx, user, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	statements := []struct {
		query string
		arg   string
	}{
		{`DELETE FROM feedback WHERE project_id IN (SELECT id FROM projects WHERE user_id = $1)`, id},
		{`DELETE FROM projects WHERE user_id = $1`, id},
		{`DELETE FROM sessions WHERE user_id = $1`, id},
		{`DELETE FROM accounts WHERE user_id = $1`, id},
		{`DELETE FROM verification_tokens WHERE identifier = $1`, user.Email},
		{`DELETE FROM users WHERE id = $1`, id},
	}
	for _, s := range statements {
		if _, err := tx.ExecContext(ctx, s.query, s.arg); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit account deletion: %w", err)
	}

	return user, nil
}

// isUniqueViolation works for both SQLite and PostgreSQL error messages.
func isUniqueViolation(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
}
