package store

import (
	"context"
	"database/sql"

	"github.com/revenac/apiserver/types"
)

// AnalyticsRepository computes read-only aggregates for the admin dashboard.
type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) Summary(ctx context.Context, recent int) (types.Analytics, error) {
	if recent < 1 {
		recent = 10
	}

	var analytics types.Analytics

	const usersQuery = `
		SELECT COUNT(1),
			COALESCE(SUM(token_balance), 0),
			COALESCE(SUM(bottle_count), 0),
			COALESCE(SUM(carbon_saved), 0)
		FROM users`
	if err := r.db.QueryRowContext(ctx, usersQuery).Scan(
		&analytics.TotalUsers,
		&analytics.TotalTokens,
		&analytics.TotalBottles,
		&analytics.TotalCarbonSaved,
	); err != nil {
		return types.Analytics{}, err
	}

	const codesQuery = `SELECT COUNT(1), COUNT(1) FILTER (WHERE consumed) FROM earn_codes`
	if err := r.db.QueryRowContext(ctx, codesQuery).Scan(&analytics.TotalCodes, &analytics.TotalClaims); err != nil {
		return types.Analytics{}, err
	}

	const redemptionsQuery = `SELECT COUNT(1) FROM redemptions`
	if err := r.db.QueryRowContext(ctx, redemptionsQuery).Scan(&analytics.TotalRedemptions); err != nil {
		return types.Analytics{}, err
	}

	const recentQuery = `
		SELECT c.id, u.name, c.item_type, c.token_value, c.consumed_at
		FROM earn_codes c
		JOIN users u ON u.id = c.user_id
		WHERE c.consumed
		ORDER BY c.consumed_at DESC, c.id DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, recentQuery, recent)
	if err != nil {
		return types.Analytics{}, err
	}
	defer rows.Close()

	analytics.RecentClaims = make([]types.RecentClaim, 0, recent)
	for rows.Next() {
		var claim types.RecentClaim
		if err := rows.Scan(
			&claim.CodeID,
			&claim.UserName,
			&claim.ItemType,
			&claim.TokensEarned,
			&claim.ClaimedAt,
		); err != nil {
			return types.Analytics{}, err
		}
		analytics.RecentClaims = append(analytics.RecentClaims, claim)
	}
	if err := rows.Err(); err != nil {
		return types.Analytics{}, err
	}
	return analytics, nil
}
