package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("store: user not found")
	// ErrDuplicate is returned when a unique field value is already held by another record.
	ErrDuplicate = errors.New("store: duplicate value")
	// ErrStepConflict is returned when Patch.ExpectStep does not match the stored step.
	ErrStepConflict = errors.New("store: step changed concurrently")
	// ErrCorruptStep marks a stored step outside the known enum.
	ErrCorruptStep = errors.New("store: unknown step")
	// ErrNegativeDelta rejects patches that would decrease counters.
	ErrNegativeDelta = errors.New("store: negative delta")
	// ErrUnknownField rejects lookups on fields without a unique index.
	ErrUnknownField = errors.New("store: unknown field")
)

// DuplicateError carries the field that collided.
type DuplicateError struct {
	Field Field
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("store: duplicate value for %s", e.Field)
}

// Is makes errors.Is(err, ErrDuplicate) match.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// UserStore is the persistence contract of the onboarding core.
type UserStore interface {
	// Get returns the record for id or ErrNotFound.
	Get(ctx context.Context, id string) (*UserRecord, error)
	// Create inserts rec unless a record with the same id exists and reports whether it did.
	Create(ctx context.Context, rec UserRecord) (bool, error)
	// MergeSet applies p to the record atomically and returns the updated record.
	MergeSet(ctx context.Context, id string, p Patch) (*UserRecord, error)
	// FindOneByField returns any record whose field equals value, or ErrNotFound.
	FindOneByField(ctx context.Context, f Field, value string) (*UserRecord, error)
	// ListAll returns every record in creation order.
	ListAll(ctx context.Context) ([]UserRecord, error)
}
