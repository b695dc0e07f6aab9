package types

import "time"

// Analytics is the admin dashboard aggregate.
type Analytics struct {
	TotalUsers       int           `json:"total_users"`
	TotalTokens      int64         `json:"total_tokens"`
	TotalCodes       int           `json:"total_codes"`
	TotalClaims      int           `json:"total_claims"`
	TotalRedemptions int           `json:"total_redemptions"`
	TotalBottles     int64         `json:"total_bottles"`
	TotalCarbonSaved float64       `json:"total_carbon_saved"`
	RecentClaims     []RecentClaim `json:"recent_claims"`
}

// RecentClaim is one row of the analytics recent-activity list.
type RecentClaim struct {
	CodeID       int64     `json:"code_id"`
	UserName     string    `json:"user_name"`
	ItemType     string    `json:"item_type"`
	TokensEarned int       `json:"tokens_earned"`
	ClaimedAt    time.Time `json:"claimed_at"`
}

// Wallet is a user's balance together with recent ledger history.
type Wallet struct {
	TokenBalance int          `json:"token_balance"`
	BottleCount  int          `json:"bottle_count"`
	CarbonSaved  float64      `json:"carbon_saved"`
	Claims       []EarnCode   `json:"claims"`
	Redemptions  []Redemption `json:"redemptions"`
}
