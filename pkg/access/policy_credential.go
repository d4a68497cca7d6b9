package access

import (
	"context"

	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

var credentialFields = []FieldSpec{
	{Name: "organization", Type: objects.TypeOrganization, Role: rbac.RoleAdmin},
}

// CredentialPolicy authorizes credential operations
type CredentialPolicy struct {
	base
}

// NewCredentialPolicy creates the credential policy
func NewCredentialPolicy(deps Collaborators) *CredentialPolicy {
	return &CredentialPolicy{base{deps: deps}}
}

// CanAdd authorizes creation. An organization credential requires
// admin_role on the organization. A personal credential (the "user"
// field) may only be created for the acting user; granting secrets to
// someone else is an admin operation the guard already covers.
func (p *CredentialPolicy) CanAdd(ctx context.Context, user User, data ChangeRequest) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}
	if raw, hasUser := data["user"]; hasUser {
		ownerID, err := objects.CoerceID(raw)
		if err != nil || ownerID != user.ID {
			return false, nil
		}
		return true, nil
	}
	if _, hasOrg := data["organization"]; !hasOrg {
		return false, nil
	}
	return p.checkFieldRoles(ctx, user, data, credentialFields)
}

// CanChange re-authorizes only a moved organization reference
func (p *CredentialPolicy) CanChange(ctx context.Context, user User, obj any, data ChangeRequest) (bool, error) {
	cred, ok := obj.(*objects.Credential)
	if !ok {
		return false, wrongType(objects.TypeCredential, obj)
	}
	if data == nil {
		return p.CanRead(ctx, user, obj)
	}

	current := map[string]*int64{"organization": cred.OrganizationID}
	admin, err := p.hasRole(ctx, user, objects.TypeCredential, cred.ID, rbac.RoleAdmin)
	if err != nil {
		return false, err
	}
	if ChangesAreNonSensitive(current, data, credentialFields) {
		return admin, nil
	}
	if !admin {
		return false, nil
	}
	return p.CanAdd(ctx, user, mergeForAdd(current, data, credentialFields))
}

// CanRead allows any credential role, ownership, or an organization
// viewing role
func (p *CredentialPolicy) CanRead(ctx context.Context, user User, obj any) (bool, error) {
	cred, ok := obj.(*objects.Credential)
	if !ok {
		return false, wrongType(objects.TypeCredential, obj)
	}
	if cred.UserID != nil && *cred.UserID == user.ID {
		return true, nil
	}
	ok, err := p.hasAnyRole(ctx, user, objects.TypeCredential, cred.ID,
		rbac.RoleRead, rbac.RoleUse, rbac.RoleAdmin)
	if err != nil || ok {
		return ok, err
	}
	return p.orgAncestorRead(ctx, user, cred.OrganizationID)
}

// CanDelete requires admin_role, ownership, or organization admin
func (p *CredentialPolicy) CanDelete(ctx context.Context, user User, obj any) (bool, error) {
	cred, ok := obj.(*objects.Credential)
	if !ok {
		return false, wrongType(objects.TypeCredential, obj)
	}
	if cred.UserID != nil && *cred.UserID == user.ID {
		return true, nil
	}
	ok, err := p.hasRole(ctx, user, objects.TypeCredential, cred.ID, rbac.RoleAdmin)
	if err != nil || ok {
		return ok, err
	}
	if cred.OrganizationID == nil {
		return false, nil
	}
	return p.hasRole(ctx, user, objects.TypeOrganization, *cred.OrganizationID, rbac.RoleAdmin)
}

var _ Policy = (*CredentialPolicy)(nil)
