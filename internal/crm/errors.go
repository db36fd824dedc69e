package crm

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Failure taxonomy surfaced to callers. All three are caller-checkable
// with errors.Is; store-level causes stay attached to the chain.
var (
	// ErrInvalidIdentity means the touchpoint carries a missing or
	// malformed email. Caller error, not worth retrying.
	ErrInvalidIdentity = eris.New("crm: invalid identity")

	// ErrUnresolvableReference means a formation, service or touchpoint
	// id does not resolve to a stored record.
	ErrUnresolvableReference = eris.New("crm: unresolvable reference")

	// ErrPersistenceFailure means the store failed mid-operation. The
	// enclosing transaction is rolled back, so retrying the whole
	// operation is safe.
	ErrPersistenceFailure = eris.New("crm: persistence failure")
)

// IsInvalidIdentity reports whether err stems from a bad email.
func IsInvalidIdentity(err error) bool {
	return errors.Is(err, ErrInvalidIdentity)
}

// IsUnresolvableReference reports whether err stems from a dangling id.
func IsUnresolvableReference(err error) bool {
	return errors.Is(err, ErrUnresolvableReference)
}

// IsPersistenceFailure reports whether err stems from the store.
func IsPersistenceFailure(err error) bool {
	return errors.Is(err, ErrPersistenceFailure)
}

// wrapPersistence tags a store error with ErrPersistenceFailure while
// keeping the original cause on the chain.
func wrapPersistence(err error, msg string) error {
	return eris.Wrap(errors.Join(ErrPersistenceFailure, err), msg)
}
