package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/revenac/apiserver/types"
)

const earnCodeColumns = `id, code, machine_id, machine_location, item_type, token_value, consumed, consumed_at, user_id, created_at`

// EarnCodeRepository handles persistence for machine earn codes.
type EarnCodeRepository struct {
	db *sql.DB
}

func NewEarnCodeRepository(db *sql.DB) *EarnCodeRepository {
	return &EarnCodeRepository{db: db}
}

func scanEarnCode(row rowScanner) (types.EarnCode, error) {
	var (
		code       types.EarnCode
		location   sql.NullString
		consumedAt sql.NullTime
		userID     sql.NullInt64
	)
	err := row.Scan(
		&code.ID,
		&code.Code,
		&code.MachineID,
		&location,
		&code.ItemType,
		&code.TokenValue,
		&code.Consumed,
		&consumedAt,
		&userID,
		&code.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.EarnCode{}, ErrNotFound
		}
		return types.EarnCode{}, err
	}
	if location.Valid {
		code.MachineLocation = &location.String
	}
	if consumedAt.Valid {
		code.ConsumedAt = &consumedAt.Time
	}
	if userID.Valid {
		id := int(userID.Int64)
		code.UserID = &id
	}
	return code, nil
}

func (r *EarnCodeRepository) Create(ctx context.Context, code types.EarnCode) (types.EarnCode, error) {
	code.CreatedAt = time.Now()
	code.Consumed = false
	code.ConsumedAt = nil

	const query = `
		INSERT INTO earn_codes (code, machine_id, machine_location, item_type, token_value, consumed, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		code.Code,
		code.MachineID,
		code.MachineLocation,
		code.ItemType,
		code.TokenValue,
		code.UserID,
		code.CreatedAt,
	).Scan(&code.ID); err != nil {
		return types.EarnCode{}, translate(err)
	}
	return code, nil
}

// ListClaimedByUser returns the codes a user claimed, most recent first.
func (r *EarnCodeRepository) ListClaimedByUser(ctx context.Context, userID, limit int) ([]types.EarnCode, error) {
	if limit < 1 {
		limit = 20
	}

	query := `SELECT ` + earnCodeColumns + `
		FROM earn_codes
		WHERE user_id = $1 AND consumed
		ORDER BY consumed_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := make([]types.EarnCode, 0, limit)
	for rows.Next() {
		code, err := scanEarnCode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}
