package irq

import "errors"

// Error taxonomy per spec §7. Invalid-argument and resource-exhaustion
// conditions are returned, never logged beyond a Trace line; protocol
// violations by a driver panic instead (see descTable.DescFree).
var (
	// ErrInvalidArgument covers nil references, out-of-range hwirq, and
	// zero-length ranges.
	ErrInvalidArgument = errors.New("irq: invalid argument")

	// ErrExhausted covers "no free virq", "domain full", and
	// allocator-exhaustion conditions. Callers must roll back any
	// partial state they already committed.
	ErrExhausted = errors.New("irq: resource exhausted")

	// ErrSharedConflict is returned by RequestIRQ when an unshared
	// handler collides with an existing chain, or vice versa.
	ErrSharedConflict = errors.New("irq: shared/non-shared conflict")

	// ErrNotFound is returned when a dev_data cookie passed to FreeIRQ
	// does not match any action on the chain.
	ErrNotFound = errors.New("irq: action not found")

	// ErrMapFailed is returned when a domain's Map op rejects a mapping.
	ErrMapFailed = errors.New("irq: domain map op failed")
)
