package rbe

import (
	"rbe/internal/crs"
	"rbe/internal/registry"
)

// Public error taxonomy, re-exported from internal/registry so callers
// never need to import the internal package to use errors.Is against the
// core's failure modes (spec.md §7).
var (
	ErrInconsistentHelpingValues = registry.ErrInconsistentHelpingValues
	ErrBlockFull                 = registry.ErrBlockFull
	ErrDuplicateID               = registry.ErrDuplicateID
	ErrMalformedCiphertext       = registry.ErrMalformedCiphertext
	ErrStorageError              = registry.ErrStorageError
	// ErrAlreadyInitialized is returned by Setup when the store already
	// holds a CRS (refuse-on-reuse idempotence policy, spec.md §4.B).
	ErrAlreadyInitialized = crs.ErrAlreadyInitialized
)
