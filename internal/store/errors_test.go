package store

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestTranslateConstraintViolations(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unique", &pq.Error{Code: pqUniqueViolation}, ErrConflict},
		{"foreign key", &pq.Error{Code: pqForeignKeyViolation}, ErrConflict},
		{"check", &pq.Error{Code: "23514"}, nil},
		{"plain", errors.New("boom"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translate(tc.err)
			if tc.want != nil {
				if !errors.Is(got, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
				return
			}
			if got != tc.err {
				t.Fatalf("expected error to pass through, got %v", got)
			}
		})
	}
}

func TestUserNotFoundMatchesNotFound(t *testing.T) {
	if !errors.Is(ErrUserNotFound, ErrNotFound) {
		t.Fatalf("ErrUserNotFound should wrap ErrNotFound")
	}
	if errors.Is(ErrNotFound, ErrUserNotFound) {
		t.Fatalf("ErrNotFound must not match ErrUserNotFound")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !isForeignKeyViolation(&pq.Error{Code: pqForeignKeyViolation}) {
		t.Fatalf("expected fk violation to be detected")
	}
	if isForeignKeyViolation(&pq.Error{Code: pqUniqueViolation}) {
		t.Fatalf("unique violation is not a fk violation")
	}
}
