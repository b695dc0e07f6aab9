package types

import "time"

// Reward categories.
const (
	CategoryVoucher     = "VOUCHER"
	CategoryCoupon      = "COUPON"
	CategoryDiscount    = "DISCOUNT"
	CategoryMerchandise = "MERCHANDISE"
	CategoryDonation    = "DONATION"
)

// Reward is a catalog item users can buy with tokens.
type Reward struct {
	// ID is the unique identifier of the reward.
	ID int `json:"id" db:"id"`

	// Title is the short name shown in the catalog.
	Title string `json:"title" db:"title"`

	// Description explains what the user receives.
	Description string `json:"description" db:"description"`

	// TokenCost is the number of tokens one redemption costs.
	TokenCost int `json:"token_cost" db:"token_cost"`

	// Category groups rewards in the catalog (VOUCHER, COUPON, ...).
	Category string `json:"category" db:"category"`

	// Stock is the remaining number of units. It never drops below zero.
	Stock int `json:"stock" db:"stock"`

	// Active hides the reward from the public catalog when false.
	Active bool `json:"active" db:"active"`

	// ImageKey is the object storage key of the reward image, if any.
	ImageKey string `json:"image_key,omitempty" db:"image_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsCategory reports whether c is a known reward category.
func IsCategory(c string) bool {
	switch c {
	case CategoryVoucher, CategoryCoupon, CategoryDiscount, CategoryMerchandise, CategoryDonation:
		return true
	}
	return false
}
