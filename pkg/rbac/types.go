package rbac

import (
	"context"
	"time"

	"github.com/helmsmanhq/helmsman/pkg/objects"
)

// RoleName identifies one of the named roles an object owns
type RoleName string

const (
	RoleAdmin   RoleName = "admin_role"
	RoleUse     RoleName = "use_role"
	RoleRead    RoleName = "read_role"
	RoleMember  RoleName = "member_role"
	RoleExecute RoleName = "execute_role"
	RoleAuditor RoleName = "auditor_role"
)

// Role is the membership predicate for a single role instance.
// Concrete role graphs (direct grant, inherited from a parent,
// organization ancestry) all sit behind this one method.
type Role interface {
	// ContainsUser reports whether the user holds this role, directly
	// or through any ancestor role.
	ContainsUser(ctx context.Context, userID int64) (bool, error)
}

// RoleID addresses a role instance by its owning object and name
type RoleID struct {
	ObjectType objects.Type `json:"object_type"`
	ObjectID   int64        `json:"object_id"`
	Name       RoleName     `json:"name"`
}

// Grant records a direct role membership
type Grant struct {
	ID        int64     `json:"id"`
	Role      RoleID    `json:"role"`
	UserID    int64     `json:"user_id"`
	GrantedBy *int64    `json:"granted_by,omitempty"`
	GrantedAt time.Time `json:"granted_at"`
}

// ParentEdge records that membership in Parent implies membership in Child
type ParentEdge struct {
	Parent RoleID `json:"parent"`
	Child  RoleID `json:"child"`
}

// Membership answers role-membership questions for the access layer.
// Implementations may cache; callers tolerate stale reads but must
// handle lookup failure.
type Membership interface {
	// HasRole reports whether the user holds the named role on the
	// identified object, directly or via an ancestor role.
	HasRole(ctx context.Context, userID int64, role RoleID) (bool, error)

	// ObjectRole resolves a role name on an object to its Role
	// instance. The instance is valid even if no grants exist yet.
	ObjectRole(role RoleID) Role
}
