package store

import (
	"context"
	"database/sql"

	"github.com/revenac/apiserver/types"
)

// RedemptionRepository handles reads of redemption history. Redemptions are
// only written by LedgerRepository.RedeemReward.
type RedemptionRepository struct {
	db *sql.DB
}

func NewRedemptionRepository(db *sql.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// ListByUser returns a user's redemptions, most recent first.
func (r *RedemptionRepository) ListByUser(ctx context.Context, userID, limit int) ([]types.Redemption, error) {
	if limit < 1 {
		limit = 20
	}

	const query = `
		SELECT rd.id, rd.user_id, rd.reward_id, rd.token_cost, rd.status, rd.created_at, rw.title
		FROM redemptions rd
		JOIN rewards rw ON rw.id = rd.reward_id
		WHERE rd.user_id = $1
		ORDER BY rd.created_at DESC, rd.id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	redemptions := make([]types.Redemption, 0, limit)
	for rows.Next() {
		var redemption types.Redemption
		if err := rows.Scan(
			&redemption.ID,
			&redemption.UserID,
			&redemption.RewardID,
			&redemption.TokenCost,
			&redemption.Status,
			&redemption.CreatedAt,
			&redemption.RewardTitle,
		); err != nil {
			return nil, err
		}
		redemptions = append(redemptions, redemption)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return redemptions, nil
}
