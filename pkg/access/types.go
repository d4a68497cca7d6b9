package access

import (
	"context"

	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

// User is the acting identity for one authorization decision. It is
// immutable for the duration of the decision.
type User struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	IsSuperuser     bool   `json:"is_superuser"`
	IsSystemAuditor bool   `json:"is_system_auditor"`
}

// ChangeRequest maps field names to proposed new values. A field
// absent from the mapping is unchanged. Values arrive as decoded
// JSON, so identifiers may be float64, int64, or garbage.
type ChangeRequest map[string]any

// Clone returns a shallow copy so policies can merge current values
// into the payload without mutating the caller's map.
func (cr ChangeRequest) Clone() ChangeRequest {
	if cr == nil {
		return nil
	}
	out := make(ChangeRequest, len(cr))
	for k, v := range cr {
		out[k] = v
	}
	return out
}

// Policy is the capability set for one managed object type. The obj
// parameter is the concrete type the policy is registered for; a
// mismatched type is an infrastructure error, not a denial.
//
// All methods are side-effect-free: they must not mutate the user,
// the object, or any role state.
type Policy interface {
	// CanAdd authorizes creation with the given field values. Every
	// declared foreign-key field present in data must resolve, and
	// the user must hold the required role on each resolved
	// reference. Malformed or unknown references deny, never error.
	CanAdd(ctx context.Context, user User, data ChangeRequest) (bool, error)

	// CanChange authorizes an update. Only the foreign-key fields
	// that actually differ from the object's current values require
	// fresh authorization.
	CanChange(ctx context.Context, user User, obj any, data ChangeRequest) (bool, error)

	// CanRead authorizes viewing the object.
	CanRead(ctx context.Context, user User, obj any) (bool, error)

	// CanDelete authorizes deleting the object.
	CanDelete(ctx context.Context, user User, obj any) (bool, error)
}

// FieldSpec declares one foreign-key field subject to authorization:
// the payload key, the type of object it references, and the role the
// acting user must hold on the referenced object.
type FieldSpec struct {
	Name string
	Type objects.Type
	Role rbac.RoleName
}
