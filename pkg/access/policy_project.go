package access

import (
	"context"

	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

// projectFields: creating a project in an organization requires
// admin_role on that organization; attaching an SCM credential
// requires use_role on it.
var projectFields = []FieldSpec{
	{Name: "organization", Type: objects.TypeOrganization, Role: rbac.RoleAdmin},
	{Name: "credential", Type: objects.TypeCredential, Role: rbac.RoleUse},
}

// ProjectPolicy authorizes project operations
type ProjectPolicy struct {
	base
}

// NewProjectPolicy creates the project policy
func NewProjectPolicy(deps Collaborators) *ProjectPolicy {
	return &ProjectPolicy{base{deps: deps}}
}

// CanAdd requires an organization reference and admin_role on it
func (p *ProjectPolicy) CanAdd(ctx context.Context, user User, data ChangeRequest) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}
	if _, hasOrg := data["organization"]; !hasOrg {
		return false, nil
	}
	return p.checkFieldRoles(ctx, user, data, projectFields)
}

// CanChange re-authorizes only the references the payload moves
func (p *ProjectPolicy) CanChange(ctx context.Context, user User, obj any, data ChangeRequest) (bool, error) {
	proj, ok := obj.(*objects.Project)
	if !ok {
		return false, wrongType(objects.TypeProject, obj)
	}
	if data == nil {
		return p.CanRead(ctx, user, obj)
	}

	current := map[string]*int64{
		"organization": proj.OrganizationID,
		"credential":   proj.CredentialID,
	}
	admin, err := p.hasRole(ctx, user, objects.TypeProject, proj.ID, rbac.RoleAdmin)
	if err != nil {
		return false, err
	}
	if ChangesAreNonSensitive(current, data, projectFields) {
		return admin, nil
	}
	if !admin {
		return false, nil
	}
	return p.CanAdd(ctx, user, mergeForAdd(current, data, projectFields))
}

// CanRead allows any project role or an organization viewing role
func (p *ProjectPolicy) CanRead(ctx context.Context, user User, obj any) (bool, error) {
	proj, ok := obj.(*objects.Project)
	if !ok {
		return false, wrongType(objects.TypeProject, obj)
	}
	ok, err := p.hasAnyRole(ctx, user, objects.TypeProject, proj.ID,
		rbac.RoleRead, rbac.RoleUse, rbac.RoleAdmin)
	if err != nil || ok {
		return ok, err
	}
	return p.orgAncestorRead(ctx, user, proj.OrganizationID)
}

// CanDelete requires admin_role on the project or its organization
func (p *ProjectPolicy) CanDelete(ctx context.Context, user User, obj any) (bool, error) {
	proj, ok := obj.(*objects.Project)
	if !ok {
		return false, wrongType(objects.TypeProject, obj)
	}
	ok, err := p.hasRole(ctx, user, objects.TypeProject, proj.ID, rbac.RoleAdmin)
	if err != nil || ok {
		return ok, err
	}
	if proj.OrganizationID == nil {
		return false, nil
	}
	return p.hasRole(ctx, user, objects.TypeOrganization, *proj.OrganizationID, rbac.RoleAdmin)
}

var _ Policy = (*ProjectPolicy)(nil)
