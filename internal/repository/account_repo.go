package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pikpakhelper/internal/model"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// EnsureSchema creates the accounts table if needed.
func (r *AccountRepository) EnsureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS accounts (
            id         UUID PRIMARY KEY,
            name       TEXT NOT NULL,
            email      TEXT NOT NULL,
            data       JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `
	_, err := r.db.Exec(ctx, query)
	return err
}

// Create inserts a new account; a nil ID gets a fresh UUID.
func (r *AccountRepository) Create(ctx context.Context, a *model.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
        INSERT INTO accounts (id, name, email, data, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING created_at, updated_at
    `
	return r.db.QueryRow(ctx, query, a.ID, a.Name, a.Email, []byte(a.Data)).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// List returns all accounts, newest first.
func (r *AccountRepository) List(ctx context.Context) ([]model.Account, error) {
	query := `
        SELECT id, name, email, data, created_at, updated_at
        FROM accounts
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// Get returns one account by id.
func (r *AccountRepository) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `
        SELECT id, name, email, data, created_at, updated_at
        FROM accounts
        WHERE id = $1
    `
	a, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

// UpdateData replaces the stored JSON document (and the denormalized email).
func (r *AccountRepository) UpdateData(ctx context.Context, id uuid.UUID, email string, data json.RawMessage) error {
	query := `
        UPDATE accounts
        SET data = $1, email = $2, updated_at = NOW()
        WHERE id = $3
    `
	tag, err := r.db.Exec(ctx, query, []byte(data), email, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var data []byte
	err := row.Scan(&a.ID, &a.Name, &a.Email, &data, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Data = data
	return &a, nil
}
