package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmsmanhq/helmsman/pkg/objects"
)

func roleID(t objects.Type, id int64, name RoleName) RoleID {
	return RoleID{ObjectType: t, ObjectID: id, Name: name}
}

func TestGraphDirectGrant(t *testing.T) {
	g := NewGraph()
	ctx := context.Background()
	admin := roleID(objects.TypeProject, 10, RoleAdmin)

	ok, err := g.HasRole(ctx, 1, admin)
	require.NoError(t, err)
	assert.False(t, ok)

	g.Grant(admin, 1)
	ok, err = g.HasRole(ctx, 1, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	// A grant names one role; siblings on the same object stay empty.
	ok, err = g.HasRole(ctx, 1, roleID(objects.TypeProject, 10, RoleUse))
	require.NoError(t, err)
	assert.False(t, ok)

	g.Revoke(admin, 1)
	ok, err = g.HasRole(ctx, 1, admin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGraphInheritanceThroughParents(t *testing.T) {
	g := NewGraph()
	ctx := context.Background()

	orgAdmin := roleID(objects.TypeOrganization, 1, RoleAdmin)
	projAdmin := roleID(objects.TypeProject, 10, RoleAdmin)
	projUse := roleID(objects.TypeProject, 10, RoleUse)

	// org admin -> project admin -> project use
	g.AddParent(projAdmin, orgAdmin)
	g.AddParent(projUse, projAdmin)
	g.Grant(orgAdmin, 1)

	for _, r := range []RoleID{orgAdmin, projAdmin, projUse} {
		ok, err := g.HasRole(ctx, 1, r)
		require.NoError(t, err)
		assert.True(t, ok, "role %v should be inherited", r)
	}

	// Inheritance flows downward only.
	g.Grant(projUse, 2)
	ok, err := g.HasRole(ctx, 2, projAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGraphRevokeKeepsInheritedMembership(t *testing.T) {
	g := NewGraph()
	ctx := context.Background()

	orgAdmin := roleID(objects.TypeOrganization, 1, RoleAdmin)
	projAdmin := roleID(objects.TypeProject, 10, RoleAdmin)
	g.AddParent(projAdmin, orgAdmin)
	g.Grant(orgAdmin, 1)
	g.Grant(projAdmin, 1)

	g.Revoke(projAdmin, 1)
	ok, err := g.HasRole(ctx, 1, projAdmin)
	require.NoError(t, err)
	assert.True(t, ok, "membership through the org ancestor survives")
}

func TestGraphToleratesCycles(t *testing.T) {
	g := NewGraph()
	ctx := context.Background()

	a := roleID(objects.TypeOrganization, 1, RoleAdmin)
	b := roleID(objects.TypeOrganization, 2, RoleAdmin)
	g.AddParent(a, b)
	g.AddParent(b, a)

	ok, err := g.HasRole(ctx, 1, a)
	require.NoError(t, err)
	assert.False(t, ok)

	g.Grant(b, 1)
	ok, err = g.HasRole(ctx, 1, a)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGraphObjectRole(t *testing.T) {
	g := NewGraph()
	admin := roleID(objects.TypeInventory, 20, RoleAdmin)
	g.Grant(admin, 3)

	ok, err := g.ObjectRole(admin).ContainsUser(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, ok)
}
