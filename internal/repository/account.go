package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/utellme/utellme/internal/model"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	ByProvider(ctx context.Context, provider, providerAccountID string) (*model.Account, error)
}

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `INSERT INTO accounts (id, user_id, provider, provider_account_id, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
		account.CreatedAt,
	)
	return err
}

func (r *accountRepository) ByProvider(ctx context.Context, provider, providerAccountID string) (*model.Account, error) {
	account := &model.Account{}
	query := `SELECT * FROM accounts WHERE provider = $1 AND provider_account_id = $2`

	err := r.db.GetContext(ctx, account, query, provider, providerAccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	return account, nil
}
