package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/revenac/apiserver/types"
)

// ErrUserNotFound is returned by ledger operations when the acting user does
// not exist. It matches ErrNotFound with errors.Is.
var ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

// LedgerRepository runs the token earning and spending procedures. Each
// method is one database transaction; counters only move through conditional
// in-database arithmetic.
type LedgerRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db, now: time.Now}
}

// ClaimCode consumes code on behalf of userID and credits the code's token
// value to the user, together with one recycled item and carbonPerItem kg.
//
// The consumed flag is flipped with a compare-and-swap UPDATE, so of two
// concurrent claims of the same code exactly one succeeds and the other gets
// ErrAlreadyConsumed.
func (r *LedgerRepository) ClaimCode(ctx context.Context, userID int, code string, carbonPerItem float64) (types.ClaimResult, error) {
	result := types.ClaimResult{Code: code}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		now := r.now()

		const consumeQuery = `
			UPDATE earn_codes
			SET consumed = TRUE,
				consumed_at = $2,
				user_id = $3
			WHERE code = $1 AND NOT consumed
			RETURNING token_value`
		err := tx.QueryRowContext(ctx, consumeQuery, code, now, userID).Scan(&result.TokensEarned)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return codeState(ctx, tx, code)
			}
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return err
		}

		const creditQuery = `
			UPDATE users
			SET token_balance = token_balance + $1,
				bottle_count = bottle_count + 1,
				carbon_saved = carbon_saved + $2,
				updated_at = $3
			WHERE id = $4
			RETURNING token_balance`
		err = tx.QueryRowContext(ctx, creditQuery, result.TokensEarned, carbonPerItem, now, userID).Scan(&result.NewBalance)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return types.ClaimResult{}, err
	}
	return result, nil
}

// codeState explains why the consume UPDATE matched no row.
func codeState(ctx context.Context, tx *sql.Tx, code string) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM earn_codes WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyConsumed
}

// RedeemReward debits the reward's token cost from userID, takes one unit of
// stock and records a PENDING redemption, all in one transaction.
//
// The user row and then the reward row are locked FOR UPDATE, so concurrent
// redemptions touching the same user or reward are validated against the
// committed state left by the previous one.
func (r *LedgerRepository) RedeemReward(ctx context.Context, userID, rewardID int) (types.RedemptionResult, error) {
	var result types.RedemptionResult

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		now := r.now()

		var balance int
		err := tx.QueryRowContext(ctx, `SELECT token_balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var (
			cost   int
			stock  int
			active bool
		)
		err = tx.QueryRowContext(ctx, `SELECT token_cost, stock, active FROM rewards WHERE id = $1 FOR UPDATE`, rewardID).
			Scan(&cost, &stock, &active)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if balance < cost {
			return ErrInsufficientBalance
		}
		if !active || stock <= 0 {
			return ErrRewardUnavailable
		}

		redemption := types.Redemption{
			UserID:    userID,
			RewardID:  rewardID,
			TokenCost: cost,
			Status:    types.RedemptionPending,
			CreatedAt: now,
		}
		const insertQuery = `
			INSERT INTO redemptions (user_id, reward_id, token_cost, status, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			insertQuery,
			redemption.UserID,
			redemption.RewardID,
			redemption.TokenCost,
			redemption.Status,
			redemption.CreatedAt,
		).Scan(&redemption.ID); err != nil {
			return err
		}

		const debitQuery = `
			UPDATE users
			SET token_balance = token_balance - $1,
				updated_at = $2
			WHERE id = $3 AND token_balance >= $1
			RETURNING token_balance`
		err = tx.QueryRowContext(ctx, debitQuery, cost, now, userID).Scan(&result.NewBalance)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInsufficientBalance
			}
			return err
		}

		const takeStockQuery = `
			UPDATE rewards
			SET stock = stock - 1,
				updated_at = $1
			WHERE id = $2 AND active AND stock > 0`
		res, err := tx.ExecContext(ctx, takeStockQuery, now, rewardID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrRewardUnavailable
		}

		result.Redemption = redemption
		return nil
	})
	if err != nil {
		return types.RedemptionResult{}, err
	}
	return result, nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}
