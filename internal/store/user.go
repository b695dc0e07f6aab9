package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/revenac/apiserver/types"
)

const userColumns = `id, name, email, city, role, password_hash, token_balance, bottle_count, carbon_saved, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.City,
		&user.Role,
		&user.PasswordHash,
		&user.TokenBalance,
		&user.BottleCount,
		&user.CarbonSaved,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (name, email, city, role, password_hash, token_balance, bottle_count, carbon_saved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.City,
		user.Role,
		user.PasswordHash,
		user.TokenBalance,
		user.BottleCount,
		user.CarbonSaved,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// Top returns the users with the highest token balance, best first.
func (r *UserRepository) Top(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	if limit < 1 {
		limit = 100
	}

	const query = `
		SELECT id, name, city, token_balance, bottle_count, carbon_saved
		FROM users
		WHERE role = $1
		ORDER BY token_balance DESC, id
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, types.RoleUser, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var entry types.LeaderboardEntry
		if err := rows.Scan(
			&entry.UserID,
			&entry.Name,
			&entry.City,
			&entry.TokenBalance,
			&entry.BottleCount,
			&entry.CarbonSaved,
		); err != nil {
			return nil, err
		}
		entry.Rank = len(entries) + 1
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
