package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyConsumed is returned when an earn code was claimed before.
	ErrAlreadyConsumed = errors.New("code already consumed")

	// ErrInsufficientBalance is returned when a debit would make a balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrRewardUnavailable is returned for inactive or out of stock rewards.
	ErrRewardUnavailable = errors.New("reward unavailable")

	// ErrConflict is returned on unique or foreign key violations.
	ErrConflict = errors.New("conflict")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translate maps postgres constraint violations onto ErrConflict.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation, pqForeignKeyViolation:
			return ErrConflict
		}
	}
	return err
}
