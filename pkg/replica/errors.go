package replica

import "errors"

var (
	// ErrMissingName rejects startup without a replica name.
	ErrMissingName = errors.New("replica name is required")

	// ErrMissingLattice rejects startup without a lattice implementation.
	ErrMissingLattice = errors.New("lattice implementation is required")

	// ErrStopped is returned by operations on a stopped replica.
	ErrStopped = errors.New("replica stopped")

	// ErrNotStarted is returned by operations before Start.
	ErrNotStarted = errors.New("replica not started")
)
