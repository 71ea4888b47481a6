// Package repository defines the attempt history store interface and errors.
package repository

import (
	"context"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/penalty"
)

// Store provides chronological read/write access to the attempt history.
//
// The history is append-only: attempts are never reordered and their
// ordering keys never change. SetPenalty is the single mutation allowed
// after the fact, and it only rewrites the penalty fields of a result.
type Store interface {
	// Append adds an attempt to the end of the history.
	// Returns ErrDuplicateAttempt if the ID is already present.
	Append(ctx context.Context, a model.Attempt) error

	// List returns attempts in chronological order, skipping offset
	// entries and returning at most limit. A limit <= 0 means no cap.
	List(ctx context.Context, offset, limit int) ([]model.Attempt, error)

	// Get returns the attempt with the given ID.
	// Returns ErrNotFound if the ID is unknown.
	Get(ctx context.Context, id string) (model.Attempt, error)

	// SetPenalty replaces the manual penalty of a stored attempt and
	// returns the updated attempt. The effective penalty is recombined
	// against the recorded inspection penalty; timestamps and the raw
	// duration are untouched.
	SetPenalty(ctx context.Context, id string, p penalty.Penalty) (model.Attempt, error)

	// Count returns the number of attempts in the history.
	Count(ctx context.Context) int

	// Clear removes every attempt from the history.
	Clear(ctx context.Context) error
}
