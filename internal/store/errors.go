package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional write finds the record
	// in a different state than the caller expected.
	ErrConflict = errors.New("conflict")

	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate")

	// ErrLimitReached is returned when a bounded collection is already full.
	ErrLimitReached = errors.New("limit reached")
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
