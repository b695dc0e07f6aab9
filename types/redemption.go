package types

import "time"

// Redemption statuses.
const (
	RedemptionPending   = "PENDING"
	RedemptionFulfilled = "FULFILLED"
	RedemptionRejected  = "REJECTED"
)

// Redemption records a user exchanging tokens for a reward.
type Redemption struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	RewardID  int       `json:"reward_id" db:"reward_id"`
	TokenCost int       `json:"token_cost" db:"token_cost"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// RewardTitle is filled by history queries that join the reward.
	RewardTitle string `json:"reward_title,omitempty" db:"-"`
}

// RedemptionResult is returned by a successful reward redemption.
type RedemptionResult struct {
	Redemption Redemption `json:"redemption"`
	NewBalance int        `json:"new_balance"`
}
