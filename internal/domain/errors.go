package domain

import "errors"

// Sentinel errors for structural precondition violations. Operations wrap
// these with fmt.Errorf("...: %w", ...) so callers can classify failures with
// errors.Is while still seeing which shapes or labels were involved.
var (
	// ErrShape reports a single array whose dimensions are malformed or
	// inconsistent with its coordinate vectors.
	ErrShape = errors.New("grid shape invalid")

	// ErrShapeMismatch reports two operands whose shapes disagree, e.g. a
	// grid and a climatology with different spatial dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrNotFound reports a requested timestamp label or year window that
	// matches no data.
	ErrNotFound = errors.New("not found")

	// ErrAllMissing reports an operation that needs at least one finite
	// value and found none.
	ErrAllMissing = errors.New("all values missing")
)
