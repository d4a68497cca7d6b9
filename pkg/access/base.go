package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/helmsmanhq/helmsman/pkg/license"
	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

// Collaborators bundles the external dependencies every policy needs:
// role membership, foreign-key resolution, and the license gate.
type Collaborators struct {
	Membership rbac.Membership
	Resolver   objects.Resolver
	Gate       license.Gate
}

type base struct {
	deps Collaborators
}

// hasRole asks the membership collaborator whether the user holds the
// named role on the identified object.
func (b base) hasRole(ctx context.Context, user User, t objects.Type, id int64, role rbac.RoleName) (bool, error) {
	return b.deps.Membership.HasRole(ctx, user.ID, rbac.RoleID{ObjectType: t, ObjectID: id, Name: role})
}

// hasAnyRole reports whether the user holds at least one of the named
// roles on the object.
func (b base) hasAnyRole(ctx context.Context, user User, t objects.Type, id int64, roles ...rbac.RoleName) (bool, error) {
	for _, role := range roles {
		ok, err := b.hasRole(ctx, user, t, id, role)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// resolveRef resolves a referenced object by type tag. A missing or
// malformed reference returns an error satisfying
// objects.IsValidationFailure; callers convert that to a denial.
func (b base) resolveRef(ctx context.Context, t objects.Type, id int64) error {
	var err error
	switch t {
	case objects.TypeOrganization:
		_, err = b.deps.Resolver.GetOrganization(ctx, id)
	case objects.TypeProject:
		_, err = b.deps.Resolver.GetProject(ctx, id)
	case objects.TypeInventory:
		_, err = b.deps.Resolver.GetInventory(ctx, id)
	case objects.TypeCredential:
		_, err = b.deps.Resolver.GetCredential(ctx, id)
	case objects.TypeJobTemplate:
		_, err = b.deps.Resolver.GetJobTemplate(ctx, id)
	default:
		err = fmt.Errorf("%w: unknown reference type %q", objects.ErrBadReference, t)
	}
	return err
}

// checkFieldRoles authorizes every declared foreign-key field present
// in data: the value must interpret as an id, resolve to an existing
// object, and the user must hold the required role on it. Validation
// failures deny; infrastructure failures propagate.
func (b base) checkFieldRoles(ctx context.Context, user User, data ChangeRequest, specs []FieldSpec) (bool, error) {
	for _, spec := range specs {
		raw, present := data[spec.Name]
		if !present {
			continue
		}
		id, err := objects.CoerceID(raw)
		if err != nil {
			return false, nil
		}
		if err := b.resolveRef(ctx, spec.Type, id); err != nil {
			if objects.IsValidationFailure(err) {
				return false, nil
			}
			return false, err
		}
		ok, err := b.hasRole(ctx, user, spec.Type, id, spec.Role)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// checkLicense converts a license failure into a denial and passes
// infrastructure errors through.
func (b base) checkLicense() (bool, error) {
	if err := b.deps.Gate.CheckLicense(); err != nil {
		if errors.Is(err, license.ErrLicense) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// orgAncestorRead reports whether the user can view objects belonging
// to the organization through an organization-level role.
func (b base) orgAncestorRead(ctx context.Context, user User, orgID *int64) (bool, error) {
	if orgID == nil {
		return false, nil
	}
	return b.hasAnyRole(ctx, user, objects.TypeOrganization, *orgID,
		rbac.RoleAdmin, rbac.RoleAuditor)
}

// wrongType is returned when a policy receives an object of a type it
// was not registered for. This is a wiring bug, not user input, so it
// propagates.
func wrongType(want objects.Type, got any) error {
	return fmt.Errorf("access policy for %s received %T", want, got)
}
