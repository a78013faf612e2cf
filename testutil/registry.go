package testutil

import (
	"time"

	"github.com/skosovsky/fncall"
)

// NewTestRegistry returns a Registry with a long timeout and panic recovery
// installed on every capability, suitable for tests. It panics on a
// registration error.
func NewTestRegistry(caps ...fncall.Capability) *fncall.Registry {
	return fncall.MustRegistry(caps,
		fncall.WithMiddleware(fncall.WithRecovery(), fncall.WithTimeout(30*time.Second)),
	)
}
