package sso

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmsmanhq/helmsman/pkg/config"
	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/observability"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

type fakeRoleWriter struct {
	granted []rbac.RoleID
	revoked []rbac.RoleID
}

func (f *fakeRoleWriter) Grant(_ context.Context, grant *rbac.Grant) error {
	f.granted = append(f.granted, grant.Role)
	return nil
}

func (f *fakeRoleWriter) Revoke(_ context.Context, role rbac.RoleID, _ int64) error {
	f.revoked = append(f.revoked, role)
	return nil
}

type fakeNames struct {
	orgs  map[string]int64
	teams map[string]int64
}

func (f *fakeNames) OrganizationIDByName(_ context.Context, name string) (int64, error) {
	if id, ok := f.orgs[name]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("no organization named %q", name)
}

func (f *fakeNames) TeamIDByName(_ context.Context, org, team string) (int64, error) {
	if id, ok := f.teams[org+"/"+team]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("no team named %q", team)
}

func testProvisioner(t *testing.T, writer *fakeRoleWriter, names *fakeNames) *Provisioner {
	t.Helper()
	log := observability.NewLogger(observability.ErrorLevel, os.Stderr)
	return NewProvisioner(nil, writer, names, log)
}

func TestApplyLDAPOrgMap(t *testing.T) {
	writer := &fakeRoleWriter{}
	names := &fakeNames{orgs: map[string]int64{"Engineering": 7}}
	p := testProvisioner(t, writer, names)

	require.NoError(t, p.Configure(&config.Providers{
		LDAP: &config.LDAPProvider{
			OrganizationMap: map[string]any{
				"Engineering": map[string]any{
					"users":        "cn=eng,ou=groups,dc=example,dc=org",
					"admins":       "cn=eng-admins,ou=groups,dc=example,dc=org",
					"remove_users": true,
				},
			},
		},
	}))

	identity := &Identity{
		Backend: "ldap",
		Groups:  []string{"cn=eng,ou=groups,dc=example,dc=org"},
	}
	p.applyOrgMaps(context.Background(), 42, identity, p.maps)

	require.Len(t, writer.granted, 1)
	assert.Equal(t, rbac.RoleID{
		ObjectType: objects.TypeOrganization, ObjectID: 7, Name: rbac.RoleMember,
	}, writer.granted[0])
	// not an admin and remove_admins is off, so no revocation either
	assert.Empty(t, writer.revoked)
}

func TestApplyLDAPOrgMapRemoval(t *testing.T) {
	writer := &fakeRoleWriter{}
	names := &fakeNames{orgs: map[string]int64{"Engineering": 7}}
	p := testProvisioner(t, writer, names)

	require.NoError(t, p.Configure(&config.Providers{
		LDAP: &config.LDAPProvider{
			OrganizationMap: map[string]any{
				"Engineering": map[string]any{
					"users":        "cn=eng,ou=groups,dc=example,dc=org",
					"remove_users": true,
				},
			},
		},
	}))

	// identity is not in the group, so membership is revoked
	identity := &Identity{Backend: "ldap", Groups: []string{"cn=other,dc=example,dc=org"}}
	p.applyOrgMaps(context.Background(), 42, identity, p.maps)

	assert.Empty(t, writer.granted)
	require.Len(t, writer.revoked, 1)
	assert.Equal(t, rbac.RoleMember, writer.revoked[0].Name)
}

func TestApplySocialTeamMap(t *testing.T) {
	writer := &fakeRoleWriter{}
	names := &fakeNames{teams: map[string]int64{"Engineering/Ops": 12}}
	p := testProvisioner(t, writer, names)

	require.NoError(t, p.Configure(&config.Providers{
		Social: &config.SocialProvider{
			TeamMap: map[string]any{
				"Ops": map[string]any{
					"organization": "Engineering",
					"users":        `/.*@ops\.example\.org$/`,
				},
			},
		},
	}))

	identity := &Identity{Backend: "github", Username: "oncall", Email: "oncall@ops.example.org"}
	p.applyTeamMaps(context.Background(), 42, identity, p.maps)

	require.Len(t, writer.granted, 1)
	assert.Equal(t, rbac.RoleID{
		ObjectType: objects.TypeTeam, ObjectID: 12, Name: rbac.RoleMember,
	}, writer.granted[0])
}

func TestUnknownOrganizationIsSkipped(t *testing.T) {
	writer := &fakeRoleWriter{}
	p := testProvisioner(t, writer, &fakeNames{})

	require.NoError(t, p.Configure(&config.Providers{
		LDAP: &config.LDAPProvider{
			OrganizationMap: map[string]any{
				"Ghost": map[string]any{"users": true},
			},
		},
	}))

	p.applyOrgMaps(context.Background(), 42, &Identity{Backend: "ldap"}, p.maps)
	assert.Empty(t, writer.granted)
	assert.Empty(t, writer.revoked)
}

func TestEvaluateLDAPFlags(t *testing.T) {
	p := testProvisioner(t, &fakeRoleWriter{}, &fakeNames{})
	require.NoError(t, p.Configure(&config.Providers{
		LDAP: &config.LDAPProvider{
			UserFlagsByGroup: map[string]any{
				"is_superuser":      "cn=admins,dc=example,dc=org",
				"is_system_auditor": []any{"cn=auditors,dc=example,dc=org"},
			},
		},
	}))

	flags := p.evaluateFlags(&Identity{
		Backend: "ldap",
		Groups:  []string{"cn=auditors,dc=example,dc=org"},
	}, p.maps)

	require.NotNil(t, flags.superuser)
	assert.False(t, *flags.superuser)
	require.NotNil(t, flags.auditor)
	assert.True(t, *flags.auditor)
}

func TestEvaluateSAMLFlags(t *testing.T) {
	p := testProvisioner(t, &fakeRoleWriter{}, &fakeNames{})
	require.NoError(t, p.Configure(&config.Providers{
		SAML: &config.SAMLProvider{
			UserFlagsAttr: map[string]any{
				"is_superuser_attr":  "roles",
				"is_superuser_value": "root",
				"remove_superusers":  true,
			},
		},
	}))

	// value matches: flag granted
	flags := p.evaluateFlags(&Identity{
		Backend:    "saml:okta",
		Attributes: map[string][]string{"roles": {"root", "dev"}},
	}, p.maps)
	require.NotNil(t, flags.superuser)
	assert.True(t, *flags.superuser)

	// attribute present with wrong value and removal on: flag revoked
	flags = p.evaluateFlags(&Identity{
		Backend:    "saml:okta",
		Attributes: map[string][]string{"roles": {"dev"}},
	}, p.maps)
	require.NotNil(t, flags.superuser)
	assert.False(t, *flags.superuser)
}
