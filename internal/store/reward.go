package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/revenac/apiserver/types"
)

const rewardColumns = `id, title, description, token_cost, category, stock, active, image_key, created_at, updated_at`

// RewardRepository handles persistence for the rewards catalog.
type RewardRepository struct {
	db *sql.DB
}

func NewRewardRepository(db *sql.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

func scanReward(row rowScanner) (types.Reward, error) {
	var reward types.Reward
	err := row.Scan(
		&reward.ID,
		&reward.Title,
		&reward.Description,
		&reward.TokenCost,
		&reward.Category,
		&reward.Stock,
		&reward.Active,
		&reward.ImageKey,
		&reward.CreatedAt,
		&reward.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Reward{}, ErrNotFound
		}
		return types.Reward{}, err
	}
	return reward, nil
}

// List returns rewards ordered by token cost. With activeOnly set, inactive
// rewards are skipped.
func (r *RewardRepository) List(ctx context.Context, activeOnly bool) ([]types.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY token_cost, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rewards := make([]types.Reward, 0)
	for rows.Next() {
		reward, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		rewards = append(rewards, reward)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *RewardRepository) Get(ctx context.Context, id int) (types.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1`
	return scanReward(r.db.QueryRowContext(ctx, query, id))
}

func (r *RewardRepository) Create(ctx context.Context, reward types.Reward) (types.Reward, error) {
	now := time.Now()
	reward.CreatedAt = now
	reward.UpdatedAt = now

	const query = `
		INSERT INTO rewards (title, description, token_cost, category, stock, active, image_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		reward.Title,
		reward.Description,
		reward.TokenCost,
		reward.Category,
		reward.Stock,
		reward.Active,
		reward.ImageKey,
		reward.CreatedAt,
		reward.UpdatedAt,
	).Scan(&reward.ID); err != nil {
		return types.Reward{}, translate(err)
	}
	return reward, nil
}

// Update overwrites the editable catalog fields. The image key is managed by
// SetImageKey and left untouched here.
func (r *RewardRepository) Update(ctx context.Context, reward types.Reward) (types.Reward, error) {
	const query = `
		UPDATE rewards
		SET title = $1,
			description = $2,
			token_cost = $3,
			category = $4,
			stock = $5,
			active = $6,
			updated_at = $7
		WHERE id = $8
		RETURNING ` + rewardColumns
	return scanReward(r.db.QueryRowContext(
		ctx,
		query,
		reward.Title,
		reward.Description,
		reward.TokenCost,
		reward.Category,
		reward.Stock,
		reward.Active,
		time.Now(),
		reward.ID,
	))
}

func (r *RewardRepository) SetImageKey(ctx context.Context, id int, key string) error {
	const query = `UPDATE rewards SET image_key = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a reward. Rewards that already have redemptions are kept and
// ErrConflict is returned.
func (r *RewardRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM rewards WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
