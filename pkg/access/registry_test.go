package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmsmanhq/helmsman/pkg/license"
	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

func ptr(v int64) *int64 { return &v }

// fixture holds a dispatcher over an in-memory object graph:
// organization 1 owns project 10, inventory 20, and machine
// credential 30; job template 40 binds all three.
type fixture struct {
	store      *objects.MemoryStore
	graph      *rbac.Graph
	gate       *license.StaticGate
	dispatcher *Dispatcher
}

func newFixture(features ...string) *fixture {
	store := objects.NewMemoryStore()
	store.AddOrganization(&objects.Organization{ID: 1, Name: "Engineering"})
	store.AddProject(&objects.Project{ID: 10, Name: "deploy", OrganizationID: ptr(1)})
	store.AddInventory(&objects.Inventory{ID: 20, Name: "prod", OrganizationID: ptr(1)})
	store.AddCredential(&objects.Credential{ID: 30, Name: "machine", Kind: objects.CredentialKindSSH, OrganizationID: ptr(1)})
	store.AddJobTemplate(&objects.JobTemplate{
		ID:           40,
		Name:         "deploy prod",
		JobType:      objects.JobTypeRun,
		ProjectID:    ptr(10),
		InventoryID:  ptr(20),
		CredentialID: ptr(30),
	})

	gate := license.NewStaticGate(&license.License{
		Features:  features,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})

	graph := rbac.NewGraph()
	return &fixture{
		store: store,
		graph: graph,
		gate:  gate,
		dispatcher: NewDispatcher(Collaborators{
			Membership: graph,
			Resolver:   store,
			Gate:       gate,
		}),
	}
}

func (f *fixture) grant(userID int64, t objects.Type, id int64, role rbac.RoleName) {
	f.graph.Grant(rbac.RoleID{ObjectType: t, ObjectID: id, Name: role}, userID)
}

// grantUseRoles gives the user use_role on project 10, inventory 20
// and credential 30.
func (f *fixture) grantUseRoles(userID int64) {
	f.grant(userID, objects.TypeProject, 10, rbac.RoleUse)
	f.grant(userID, objects.TypeInventory, 20, rbac.RoleUse)
	f.grant(userID, objects.TypeCredential, 30, rbac.RoleUse)
}

func (f *fixture) template(t *testing.T) *objects.JobTemplate {
	t.Helper()
	jt, err := f.store.GetJobTemplate(context.Background(), 40)
	require.NoError(t, err)
	return jt
}

func templateAddData() ChangeRequest {
	return ChangeRequest{
		"project":    int64(10),
		"inventory":  int64(20),
		"credential": int64(30),
	}
}

func TestSuperuserShortCircuits(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	super := User{ID: 1, IsSuperuser: true}

	// No payload, no object, no roles: the guard answers before any
	// policy logic can reject.
	allowed, err := f.dispatcher.CanAdd(ctx, super, objects.TypeJobTemplate, nil)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = f.dispatcher.CanChange(ctx, super, objects.TypeJobTemplate, nil, nil)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = f.dispatcher.CanDelete(ctx, super, objects.TypeOrganization, nil)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRolelessUserDeniedEverywhere(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := User{ID: 7}
	jt := f.template(t)

	for _, check := range []func() (bool, error){
		func() (bool, error) { return f.dispatcher.CanRead(ctx, user, objects.TypeJobTemplate, jt) },
		func() (bool, error) { return f.dispatcher.CanDelete(ctx, user, objects.TypeJobTemplate, jt) },
		func() (bool, error) {
			return f.dispatcher.CanAdd(ctx, user, objects.TypeJobTemplate, templateAddData())
		},
	} {
		allowed, err := check()
		require.NoError(t, err)
		assert.False(t, allowed)
	}
}

func TestSystemAuditorReadsEverythingChangesNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	auditor := User{ID: 8, IsSystemAuditor: true}
	jt := f.template(t)

	allowed, err := f.dispatcher.CanRead(ctx, auditor, objects.TypeJobTemplate, jt)
	require.NoError(t, err)
	assert.True(t, allowed)

	org, err := f.store.GetOrganization(ctx, 1)
	require.NoError(t, err)
	allowed, err = f.dispatcher.CanRead(ctx, auditor, objects.TypeOrganization, org)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = f.dispatcher.CanChange(ctx, auditor, objects.TypeJobTemplate, jt, ChangeRequest{"project": int64(999)})
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = f.dispatcher.CanDelete(ctx, auditor, objects.TypeJobTemplate, jt)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestJobTemplateAddRequiresUseOnEveryReference(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := User{ID: 7}

	f.grant(user.ID, objects.TypeProject, 10, rbac.RoleUse)
	f.grant(user.ID, objects.TypeInventory, 20, rbac.RoleUse)

	// Missing use_role on the credential.
	allowed, err := f.dispatcher.CanAdd(ctx, user, objects.TypeJobTemplate, templateAddData())
	require.NoError(t, err)
	assert.False(t, allowed)

	f.grant(user.ID, objects.TypeCredential, 30, rbac.RoleUse)
	allowed, err = f.dispatcher.CanAdd(ctx, user, objects.TypeJobTemplate, templateAddData())
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAddDeniesPayloadWithoutReferences(t *testing.T) {
	f := newFixture()
	f.grantUseRoles(7)

	// No declared fields at all: nothing to check roles against, but a
	// template cannot be created without a project and credential.
	allowed, err := f.dispatcher.CanAdd(context.Background(), User{ID: 7},
		objects.TypeJobTemplate, ChangeRequest{"asdf": "asdf"})
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = f.dispatcher.CanAdd(context.Background(), User{ID: 7},
		objects.TypeJobTemplate, nil)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMalformedReferenceDeniesWithoutError(t *testing.T) {
	f := newFixture()
	f.grantUseRoles(7)
	ctx := context.Background()

	for _, bad := range []any{"asdf", 3.5, true, []any{1}} {
		data := templateAddData()
		data["project"] = bad
		allowed, err := f.dispatcher.CanAdd(ctx, User{ID: 7}, objects.TypeJobTemplate, data)
		require.NoError(t, err)
		assert.False(t, allowed, "value %v should deny", bad)
	}
}

func TestDanglingReferenceDeniesWithoutError(t *testing.T) {
	f := newFixture()
	f.grantUseRoles(7)

	data := templateAddData()
	data["project"] = int64(999)
	allowed, err := f.dispatcher.CanAdd(context.Background(), User{ID: 7}, objects.TypeJobTemplate, data)
	require.NoError(t, err)
	assert.False(t, allowed)
}

// failingMembership simulates a broken role store
type failingMembership struct{}

var errStore = errors.New("connection refused")

func (failingMembership) HasRole(context.Context, int64, rbac.RoleID) (bool, error) {
	return false, errStore
}

func (failingMembership) ObjectRole(rbac.RoleID) rbac.Role { return nil }

func TestInfrastructureFailurePropagates(t *testing.T) {
	f := newFixture()
	d := NewDispatcher(Collaborators{
		Membership: failingMembership{},
		Resolver:   f.store,
		Gate:       f.gate,
	})

	_, err := d.CanRead(context.Background(), User{ID: 7}, objects.TypeJobTemplate, f.template(t))
	assert.ErrorIs(t, err, errStore)

	// The superuser guard never reaches the broken store.
	allowed, err := d.CanRead(context.Background(), User{ID: 1, IsSuperuser: true},
		objects.TypeJobTemplate, f.template(t))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestUnknownObjectTypeErrors(t *testing.T) {
	f := newFixture()
	_, err := f.dispatcher.CanAdd(context.Background(), User{ID: 7}, objects.Type("widget"), nil)
	assert.Error(t, err)
}

func TestResubmitUnchangedTemplateAllowed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	jt := f.template(t)

	// Template admin, but no use_role on any referenced object: echoing
	// back the template's current field values moves nothing and must
	// pass without fresh reference checks.
	f.grant(7, objects.TypeJobTemplate, 40, rbac.RoleAdmin)
	allowed, err := f.dispatcher.CanChange(ctx, User{ID: 7}, objects.TypeJobTemplate, jt,
		ChangeRequest(jt.FieldValues()))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestChangeRequiresTemplateAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	jt := f.template(t)

	// Editing non-reference fields still requires admin_role on the
	// template; a roleless user gets no write access of any kind.
	edit := ChangeRequest{"name": "hijacked", "playbook": "evil.yml"}
	allowed, err := f.dispatcher.CanChange(ctx, User{ID: 99}, objects.TypeJobTemplate, jt, edit)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Read or execute access is not enough to edit.
	f.grant(99, objects.TypeJobTemplate, 40, rbac.RoleRead)
	f.grant(99, objects.TypeJobTemplate, 40, rbac.RoleExecute)
	allowed, err = f.dispatcher.CanChange(ctx, User{ID: 99}, objects.TypeJobTemplate, jt, edit)
	require.NoError(t, err)
	assert.False(t, allowed)

	f.grant(99, objects.TypeJobTemplate, 40, rbac.RoleAdmin)
	allowed, err = f.dispatcher.CanChange(ctx, User{ID: 99}, objects.TypeJobTemplate, jt, edit)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestOrgAdminAncestorCanChangeTemplate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	jt := f.template(t)

	f.grant(5, objects.TypeOrganization, 1, rbac.RoleAdmin)
	allowed, err := f.dispatcher.CanChange(ctx, User{ID: 5}, objects.TypeJobTemplate, jt,
		ChangeRequest{"name": "renamed"})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestChangingReferenceRequiresReadAndMergedAdd(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := User{ID: 7}
	jt := f.template(t)

	f.store.AddProject(&objects.Project{ID: 11, Name: "other", OrganizationID: ptr(1)})
	move := ChangeRequest{"project": int64(11)}

	// Cannot even read the template.
	allowed, err := f.dispatcher.CanChange(ctx, user, objects.TypeJobTemplate, jt, move)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Can read, but lacks use_role on the new project.
	f.grant(user.ID, objects.TypeJobTemplate, 40, rbac.RoleAdmin)
	f.grantUseRoles(user.ID)
	allowed, err = f.dispatcher.CanChange(ctx, user, objects.TypeJobTemplate, jt, move)
	require.NoError(t, err)
	assert.False(t, allowed)

	// The merged payload re-checks the unchanged references too, so
	// use_role on project 11 completes the set.
	f.grant(user.ID, objects.TypeProject, 11, rbac.RoleUse)
	allowed, err = f.dispatcher.CanChange(ctx, user, objects.TypeJobTemplate, jt, move)
	require.NoError(t, err)
	assert.True(t, allowed)
}

// spyMembership answers like the wrapped graph but records every role
// it was asked about.
type spyMembership struct {
	inner rbac.Membership
	asked []rbac.RoleID
}

func (s *spyMembership) HasRole(ctx context.Context, userID int64, role rbac.RoleID) (bool, error) {
	s.asked = append(s.asked, role)
	return s.inner.HasRole(ctx, userID, role)
}

func (s *spyMembership) ObjectRole(role rbac.RoleID) rbac.Role { return s.inner.ObjectRole(role) }

func TestChangeOfOneFieldScopesAddToMergedPayload(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := User{ID: 7}

	f.store.AddInventory(&objects.Inventory{ID: 21, Name: "staging", OrganizationID: ptr(1)})
	f.grant(user.ID, objects.TypeJobTemplate, 40, rbac.RoleAdmin)
	f.grantUseRoles(user.ID)
	f.grant(user.ID, objects.TypeInventory, 21, rbac.RoleUse)

	spy := &spyMembership{inner: f.graph}
	d := NewDispatcher(Collaborators{Membership: spy, Resolver: f.store, Gate: f.gate})

	jt := f.template(t)
	allowed, err := d.CanChange(ctx, user, objects.TypeJobTemplate, jt,
		ChangeRequest{"inventory": int64(21)})
	require.NoError(t, err)
	require.True(t, allowed)

	// The merged CanAdd must have re-authorized the new inventory AND
	// the template's current project and credential, never the old
	// inventory.
	use := func(typ objects.Type, id int64) rbac.RoleID {
		return rbac.RoleID{ObjectType: typ, ObjectID: id, Name: rbac.RoleUse}
	}
	assert.Contains(t, spy.asked, use(objects.TypeInventory, 21))
	assert.Contains(t, spy.asked, use(objects.TypeProject, 10))
	assert.Contains(t, spy.asked, use(objects.TypeCredential, 30))
	assert.NotContains(t, spy.asked, use(objects.TypeInventory, 20))
}

func TestNilPayloadFallsBackToRead(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	jt := f.template(t)

	allowed, err := f.dispatcher.CanChange(ctx, User{ID: 7}, objects.TypeJobTemplate, jt, nil)
	require.NoError(t, err)
	assert.False(t, allowed)

	f.grant(7, objects.TypeJobTemplate, 40, rbac.RoleRead)
	allowed, err = f.dispatcher.CanChange(ctx, User{ID: 7}, objects.TypeJobTemplate, jt, nil)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestScanTemplateLicenseGating(t *testing.T) {
	ctx := context.Background()
	user := User{ID: 7}
	scanData := ChangeRequest{
		"job_type":  string(objects.JobTypeScan),
		"inventory": int64(20),
	}

	t.Run("unlicensed feature denies before roles", func(t *testing.T) {
		f := newFixture()
		f.grantUseRoles(user.ID)
		allowed, err := f.dispatcher.CanAdd(ctx, user, objects.TypeJobTemplate, scanData)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("licensed feature allows without machine credential", func(t *testing.T) {
		f := newFixture(license.FeatureSystemTracking)
		f.grantUseRoles(user.ID)
		allowed, err := f.dispatcher.CanAdd(ctx, user, objects.TypeJobTemplate, scanData)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("scan template needs a project or inventory", func(t *testing.T) {
		f := newFixture(license.FeatureSystemTracking)
		allowed, err := f.dispatcher.CanAdd(ctx, user, objects.TypeJobTemplate,
			ChangeRequest{"job_type": string(objects.JobTypeScan)})
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("expired license denies scan", func(t *testing.T) {
		f := newFixture(license.FeatureSystemTracking)
		f.gate.Apply(&license.License{
			Features:  []string{license.FeatureSystemTracking},
			ExpiresAt: time.Now().Add(-time.Hour),
		})
		f.grantUseRoles(user.ID)
		allowed, err := f.dispatcher.CanAdd(ctx, user, objects.TypeJobTemplate, scanData)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("flipping job type to scan is a licensed transition", func(t *testing.T) {
		f := newFixture()
		f.grant(user.ID, objects.TypeJobTemplate, 40, rbac.RoleAdmin)
		jt := f.template(t)
		data := ChangeRequest(jt.FieldValues())
		data["job_type"] = string(objects.JobTypeScan)

		allowed, err := f.dispatcher.CanChange(ctx, user, objects.TypeJobTemplate, jt, data)
		require.NoError(t, err)
		assert.False(t, allowed)

		f.gate.Apply(&license.License{
			Features:  []string{license.FeatureSystemTracking},
			ExpiresAt: time.Now().Add(time.Hour),
		})
		allowed, err = f.dispatcher.CanChange(ctx, user, objects.TypeJobTemplate, jt, data)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestProjectAddRequiresOrgAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := User{ID: 7}
	data := ChangeRequest{"organization": int64(1)}

	allowed, err := f.dispatcher.CanAdd(ctx, user, objects.TypeProject, data)
	require.NoError(t, err)
	assert.False(t, allowed)

	f.grant(user.ID, objects.TypeOrganization, 1, rbac.RoleAdmin)
	allowed, err = f.dispatcher.CanAdd(ctx, user, objects.TypeProject, data)
	require.NoError(t, err)
	assert.True(t, allowed)

	// A project cannot be created without an organization reference.
	allowed, err = f.dispatcher.CanAdd(ctx, user, objects.TypeProject, ChangeRequest{})
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestOrgRoleGrantsDescendantRead(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := User{ID: 7}
	f.grant(user.ID, objects.TypeOrganization, 1, rbac.RoleAuditor)

	jt := f.template(t)
	allowed, err := f.dispatcher.CanRead(ctx, user, objects.TypeJobTemplate, jt)
	require.NoError(t, err)
	assert.True(t, allowed)

	proj, err := f.store.GetProject(ctx, 10)
	require.NoError(t, err)
	allowed, err = f.dispatcher.CanRead(ctx, user, objects.TypeProject, proj)
	require.NoError(t, err)
	assert.True(t, allowed)
}
