package access

import (
	"context"

	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

// OrganizationPolicy authorizes organization operations. Organizations
// own no foreign keys requiring re-authorization, so its CanChange has
// no diff step.
type OrganizationPolicy struct {
	base
}

// NewOrganizationPolicy creates the organization policy
func NewOrganizationPolicy(deps Collaborators) *OrganizationPolicy {
	return &OrganizationPolicy{base{deps: deps}}
}

// CanAdd denies: creating organizations is a superuser operation, and
// superusers are admitted by the guard before this runs.
func (p *OrganizationPolicy) CanAdd(ctx context.Context, user User, data ChangeRequest) (bool, error) {
	return false, nil
}

// CanChange requires admin_role on the organization
func (p *OrganizationPolicy) CanChange(ctx context.Context, user User, obj any, data ChangeRequest) (bool, error) {
	org, ok := obj.(*objects.Organization)
	if !ok {
		return false, wrongType(objects.TypeOrganization, obj)
	}
	return p.hasRole(ctx, user, objects.TypeOrganization, org.ID, rbac.RoleAdmin)
}

// CanRead allows members, admins and auditors
func (p *OrganizationPolicy) CanRead(ctx context.Context, user User, obj any) (bool, error) {
	org, ok := obj.(*objects.Organization)
	if !ok {
		return false, wrongType(objects.TypeOrganization, obj)
	}
	return p.hasAnyRole(ctx, user, objects.TypeOrganization, org.ID,
		rbac.RoleMember, rbac.RoleAdmin, rbac.RoleAuditor)
}

// CanDelete requires admin_role on the organization
func (p *OrganizationPolicy) CanDelete(ctx context.Context, user User, obj any) (bool, error) {
	org, ok := obj.(*objects.Organization)
	if !ok {
		return false, wrongType(objects.TypeOrganization, obj)
	}
	return p.hasRole(ctx, user, objects.TypeOrganization, org.ID, rbac.RoleAdmin)
}

var _ Policy = (*OrganizationPolicy)(nil)
