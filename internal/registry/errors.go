package registry

import (
	"errors"

	"github.com/ajitpratap0/ssot-registry/internal/governance"
)

var (
	// ErrAliasNotFound is returned when an alias, or the canonical anchor an
	// alias would point at, does not exist.
	ErrAliasNotFound = errors.New("alias not found")
	// ErrConflict is returned when creating an anchor or alias whose identity
	// already exists.
	ErrConflict = errors.New("already exists")
	// ErrExpiredAlias is returned when resolving an alias past its expiry.
	ErrExpiredAlias = errors.New("alias expired")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = governance.ErrValidation
)

// ValidationError reports a governance or lifecycle rule violation.
type ValidationError = governance.ValidationError

func validationError(rule, msg string) *ValidationError {
	return &ValidationError{Rule: rule, Message: msg}
}
