package access

import (
	"context"

	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

var inventoryFields = []FieldSpec{
	{Name: "organization", Type: objects.TypeOrganization, Role: rbac.RoleAdmin},
}

// InventoryPolicy authorizes inventory operations
type InventoryPolicy struct {
	base
}

// NewInventoryPolicy creates the inventory policy
func NewInventoryPolicy(deps Collaborators) *InventoryPolicy {
	return &InventoryPolicy{base{deps: deps}}
}

// CanAdd requires admin_role on the owning organization
func (p *InventoryPolicy) CanAdd(ctx context.Context, user User, data ChangeRequest) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}
	if _, hasOrg := data["organization"]; !hasOrg {
		return false, nil
	}
	return p.checkFieldRoles(ctx, user, data, inventoryFields)
}

// CanChange re-authorizes only a moved organization reference
func (p *InventoryPolicy) CanChange(ctx context.Context, user User, obj any, data ChangeRequest) (bool, error) {
	inv, ok := obj.(*objects.Inventory)
	if !ok {
		return false, wrongType(objects.TypeInventory, obj)
	}
	if data == nil {
		return p.CanRead(ctx, user, obj)
	}

	current := map[string]*int64{"organization": inv.OrganizationID}
	admin, err := p.hasRole(ctx, user, objects.TypeInventory, inv.ID, rbac.RoleAdmin)
	if err != nil {
		return false, err
	}
	if ChangesAreNonSensitive(current, data, inventoryFields) {
		return admin, nil
	}
	if !admin {
		return false, nil
	}
	return p.CanAdd(ctx, user, mergeForAdd(current, data, inventoryFields))
}

// CanRead allows any inventory role or an organization viewing role
func (p *InventoryPolicy) CanRead(ctx context.Context, user User, obj any) (bool, error) {
	inv, ok := obj.(*objects.Inventory)
	if !ok {
		return false, wrongType(objects.TypeInventory, obj)
	}
	ok, err := p.hasAnyRole(ctx, user, objects.TypeInventory, inv.ID,
		rbac.RoleRead, rbac.RoleUse, rbac.RoleAdmin)
	if err != nil || ok {
		return ok, err
	}
	return p.orgAncestorRead(ctx, user, inv.OrganizationID)
}

// CanDelete requires admin_role on the inventory or its organization
func (p *InventoryPolicy) CanDelete(ctx context.Context, user User, obj any) (bool, error) {
	inv, ok := obj.(*objects.Inventory)
	if !ok {
		return false, wrongType(objects.TypeInventory, obj)
	}
	ok, err := p.hasRole(ctx, user, objects.TypeInventory, inv.ID, rbac.RoleAdmin)
	if err != nil || ok {
		return ok, err
	}
	if inv.OrganizationID == nil {
		return false, nil
	}
	return p.hasRole(ctx, user, objects.TypeOrganization, *inv.OrganizationID, rbac.RoleAdmin)
}

var _ Policy = (*InventoryPolicy)(nil)
