package types

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents an account in the system.
// It carries identity, role and the recycling ledger counters.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Email is the unique login email of the user.
	Email string `json:"email" db:"email"`

	// City is where the user recycles. It is shown on the leaderboard.
	City string `json:"city" db:"city"`

	// Role indicates the user's authorization level (USER or ADMIN).
	Role string `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// TokenBalance is the spendable token balance. It never drops below zero.
	TokenBalance int `json:"token_balance" db:"token_balance"`

	// BottleCount is the lifetime number of items the user recycled.
	BottleCount int `json:"bottle_count" db:"bottle_count"`

	// CarbonSaved is the cumulative carbon saved in kilograms.
	CarbonSaved float64 `json:"carbon_saved" db:"carbon_saved"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LeaderboardEntry is the public projection of a user ranked by token balance.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	UserID       int     `json:"user_id"`
	Name         string  `json:"name"`
	City         string  `json:"city"`
	TokenBalance int     `json:"token_balance"`
	BottleCount  int     `json:"bottle_count"`
	CarbonSaved  float64 `json:"carbon_saved"`
}
