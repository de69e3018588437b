package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddleapp/paddle/internal/domain/users"
	"github.com/paddleapp/paddle/pkg/database"
)

// PostgresUserRepository implements users.Repository and
// settlement.UserStore using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL user repository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Insert saves a new user.
func (r *PostgresUserRepository) Insert(ctx context.Context, u *users.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.Balance,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	return r.getBy(ctx, r.pool, "id = $1", id, false)
}

// GetByUsername retrieves a user by username.
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return r.getBy(ctx, r.pool, "username = $1", username, false)
}

// GetByIDForUpdate retrieves a user and locks the row for the duration of
// the transaction. Settlement uses this before debiting.
func (r *PostgresUserRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*users.User, error) {
	return r.getBy(ctx, tx, "id = $1", id, true)
}

func (r *PostgresUserRepository) getBy(ctx context.Context, db database.DBTX, where string, arg any, forUpdate bool) (*users.User, error) {
	query := `
		SELECT id, username, email, password_hash, balance, created_at, updated_at
		FROM users
		WHERE ` + where
	if forUpdate {
		query += " FOR UPDATE"
	}

	var u users.User
	err := db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Balance,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// Debit subtracts amount from the user's balance within a transaction.
// The balance check in SQL backs up the service-level check; the balance
// never goes negative.
func (r *PostgresUserRepository) Debit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	query := `
		UPDATE users
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
	`
	result, err := tx.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to debit user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("debit of %d rejected for user %s", amount, id)
	}
	return nil
}
