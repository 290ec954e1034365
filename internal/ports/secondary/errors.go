package secondary

import "errors"

var (
	// ErrStoreUnavailable reports that the store could not be opened, was
	// busy past the busy timeout, or failed at the I/O level.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConflict reports a uniqueness violation.
	ErrConflict = errors.New("conflict")
)
