package objects

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates a lookup that matched nothing. Callers in the
// access layer translate this to a denied decision rather than a
// server error, because the id came from end-user input.
var ErrNotFound = errors.New("object not found")

// ErrBadReference indicates a reference value that could not even be
// interpreted as an identifier (wrong type, garbage input).
var ErrBadReference = errors.New("malformed object reference")

// Resolver resolves foreign-key identifiers supplied in change
// requests into concrete managed objects.
type Resolver interface {
	// GetOrganization returns the organization with the given id.
	GetOrganization(ctx context.Context, id int64) (*Organization, error)

	// GetProject returns the project with the given id.
	GetProject(ctx context.Context, id int64) (*Project, error)

	// GetInventory returns the inventory with the given id.
	GetInventory(ctx context.Context, id int64) (*Inventory, error)

	// GetCredential returns the credential with the given id.
	GetCredential(ctx context.Context, id int64) (*Credential, error)

	// GetJobTemplate returns the job template with the given id.
	GetJobTemplate(ctx context.Context, id int64) (*JobTemplate, error)
}

// CoerceID interprets a change-request value as an object identifier.
// Change requests arrive as decoded JSON, so identifiers may show up
// as int64, float64, int, or already-typed values. Anything else is a
// malformed reference, not a server error.
func CoerceID(v any) (int64, error) {
	switch id := v.(type) {
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	case float64:
		if id != float64(int64(id)) {
			return 0, fmt.Errorf("%w: non-integral id %v", ErrBadReference, v)
		}
		return int64(id), nil
	case nil:
		return 0, fmt.Errorf("%w: null id", ErrBadReference)
	default:
		return 0, fmt.Errorf("%w: %T is not an id", ErrBadReference, v)
	}
}

// IsValidationFailure reports whether err represents bad caller input
// (unknown id, malformed reference) as opposed to broken
// infrastructure.
func IsValidationFailure(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadReference)
}
