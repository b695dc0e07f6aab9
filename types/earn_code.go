package types

import "time"

// Item types accepted by the reverse-vending machines.
const (
	ItemPlasticBottle = "PLASTIC_BOTTLE"
	ItemAluminumCan   = "ALUMINUM_CAN"
	ItemGlassBottle   = "GLASS_BOTTLE"
	ItemPaper         = "PAPER"
)

// EarnCode is a single-use code emitted by a machine for one deposited item.
// Consumed flips from false to true exactly once, when a user claims it.
type EarnCode struct {
	ID              int64      `json:"id" db:"id"`
	Code            string     `json:"code" db:"code"`
	MachineID       string     `json:"machine_id" db:"machine_id"`
	MachineLocation *string    `json:"machine_location,omitempty" db:"machine_location"`
	ItemType        string     `json:"item_type" db:"item_type"`
	TokenValue      int        `json:"token_value" db:"token_value"`
	Consumed        bool       `json:"consumed" db:"consumed"`
	ConsumedAt      *time.Time `json:"consumed_at,omitempty" db:"consumed_at"`
	UserID          *int       `json:"user_id,omitempty" db:"user_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// ClaimResult is returned by a successful code claim.
type ClaimResult struct {
	Code         string `json:"code"`
	TokensEarned int    `json:"tokens_earned"`
	NewBalance   int    `json:"new_balance"`
}
