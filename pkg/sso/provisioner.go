package sso

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/helmsmanhq/helmsman/pkg/access"
	"github.com/helmsmanhq/helmsman/pkg/config"
	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/observability"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
	"github.com/helmsmanhq/helmsman/pkg/ssoconf"
)

// MembershipWriter records and removes role grants. *rbac.Store
// satisfies it.
type MembershipWriter interface {
	Grant(ctx context.Context, grant *rbac.Grant) error
	Revoke(ctx context.Context, role rbac.RoleID, userID int64) error
}

// NameResolver maps organization and team names from the providers
// document to object ids. Unknown names resolve to an error; the
// provisioner logs and skips them rather than creating objects.
type NameResolver interface {
	OrganizationIDByName(ctx context.Context, name string) (int64, error)
	TeamIDByName(ctx context.Context, organization, team string) (int64, error)
}

// Provisioner creates and updates accounts at login time and applies
// the configured organization and team maps as role grants.
type Provisioner struct {
	db    *sql.DB
	roles MembershipWriter
	names NameResolver
	log   *observability.Logger

	mu   sync.RWMutex
	maps loginMaps
}

// loginMaps are the parsed mapping rules per backend family
type loginMaps struct {
	ldapOrg    map[string]*ssoconf.LDAPOrganizationMapEntry
	ldapTeam   map[string]*ssoconf.LDAPTeamMapEntry
	ldapFlags  map[string][]string
	socialOrg  map[string]*ssoconf.SocialOrganizationMapEntry
	socialTeam map[string]*ssoconf.SocialTeamMapEntry
	samlFlags  *ssoconf.SAMLUserFlagsAttr
}

// NewProvisioner creates a provisioner over the user database and the
// role store.
func NewProvisioner(db *sql.DB, roles MembershipWriter, names NameResolver, log *observability.Logger) *Provisioner {
	return &Provisioner{db: db, roles: roles, names: names, log: log}
}

// Configure re-parses the mapping rules from a validated providers
// document. Parse failures cannot happen for a document that passed
// validation, so they are reported as errors and the old maps kept.
func (p *Provisioner) Configure(providers *config.Providers) error {
	var maps loginMaps
	var err error

	if l := providers.LDAP; l != nil {
		if l.OrganizationMap != nil {
			if maps.ldapOrg, err = ssoconf.ParseOrganizationMap(l.OrganizationMap); err != nil {
				return fmt.Errorf("failed to parse ldap organization map: %w", err)
			}
		}
		if l.TeamMap != nil {
			if maps.ldapTeam, err = ssoconf.ParseTeamMap(l.TeamMap); err != nil {
				return fmt.Errorf("failed to parse ldap team map: %w", err)
			}
		}
		if l.UserFlagsByGroup != nil {
			if maps.ldapFlags, err = ssoconf.ParseUserFlags(l.UserFlagsByGroup); err != nil {
				return fmt.Errorf("failed to parse ldap user flags: %w", err)
			}
		}
	}
	if s := providers.Social; s != nil {
		if s.OrganizationMap != nil {
			if maps.socialOrg, err = ssoconf.ParseSocialOrganizationMap(s.OrganizationMap); err != nil {
				return fmt.Errorf("failed to parse social organization map: %w", err)
			}
		}
		if s.TeamMap != nil {
			if maps.socialTeam, err = ssoconf.ParseSocialTeamMap(s.TeamMap); err != nil {
				return fmt.Errorf("failed to parse social team map: %w", err)
			}
		}
	}
	if s := providers.SAML; s != nil && s.UserFlagsAttr != nil {
		if maps.samlFlags, err = ssoconf.ParseSAMLUserFlagsAttr(s.UserFlagsAttr); err != nil {
			return fmt.Errorf("failed to parse saml user flags: %w", err)
		}
	}

	p.mu.Lock()
	p.maps = maps
	p.mu.Unlock()
	return nil
}

// Login provisions or updates the account for an authenticated
// identity, applies the mapping rules, and returns the user the
// access layer should act as.
func (p *Provisioner) Login(ctx context.Context, identity *Identity) (*access.User, error) {
	user, err := p.ensureUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	maps := p.maps
	p.mu.RUnlock()

	flags := p.evaluateFlags(identity, maps)
	if flags.superuser != nil || flags.auditor != nil {
		if err := p.applyFlags(ctx, user, flags); err != nil {
			return nil, err
		}
	}

	p.applyOrgMaps(ctx, user.ID, identity, maps)
	p.applyTeamMaps(ctx, user.ID, identity, maps)

	return user, nil
}

// ensureUser finds the account linked to the external identity,
// creating the user row and the mapping on first login.
func (p *Provisioner) ensureUser(ctx context.Context, identity *Identity) (*access.User, error) {
	user := &access.User{}
	err := p.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.is_superuser, u.is_system_auditor
		FROM users u
		JOIN sso_user_mappings m ON m.user_id = u.id
		WHERE m.backend = $1 AND m.external_id = $2
	`, identity.Backend, identity.ExternalID).Scan(
		&user.ID, &user.Username, &user.IsSuperuser, &user.IsSystemAuditor)

	if err == nil {
		if _, err := p.db.ExecContext(ctx, `
			UPDATE sso_user_mappings SET last_login_at = NOW()
			WHERE backend = $1 AND external_id = $2
		`, identity.Backend, identity.ExternalID); err != nil {
			return nil, fmt.Errorf("failed to update login time: %w", err)
		}
		return user, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up user mapping: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (username, email, first_name, last_name, is_superuser, is_system_auditor)
		VALUES ($1, $2, $3, $4, false, false)
		ON CONFLICT (username) DO UPDATE SET email = $2
		RETURNING id, username, is_superuser, is_system_auditor
	`, identity.Username, identity.Email, identity.FirstName, identity.LastName).Scan(
		&user.ID, &user.Username, &user.IsSuperuser, &user.IsSystemAuditor)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sso_user_mappings (backend, external_id, user_id, last_login_at)
		VALUES ($1, $2, $3, NOW())
	`, identity.Backend, identity.ExternalID, user.ID); err != nil {
		return nil, fmt.Errorf("failed to create user mapping: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// flagDecision is a tri-state per flag: nil leaves the flag alone
type flagDecision struct {
	superuser *bool
	auditor   *bool
}

// evaluateFlags decides the superuser and system-auditor flags from
// the identity's groups and attributes. A flag with no configured
// rule is left untouched; a configured rule both grants and, when the
// remove option is on, revokes.
func (p *Provisioner) evaluateFlags(identity *Identity, maps loginMaps) flagDecision {
	var decision flagDecision

	if dns, ok := maps.ldapFlags["is_superuser"]; ok {
		v := inAnyGroup(identity, dns)
		decision.superuser = &v
	}
	if dns, ok := maps.ldapFlags["is_system_auditor"]; ok {
		v := inAnyGroup(identity, dns)
		decision.auditor = &v
	}

	if f := maps.samlFlags; f != nil {
		if f.SuperuserAttr != "" {
			v := attrMatches(identity, f.SuperuserAttr, f.SuperuserValue)
			if v || f.RemoveSuperusers {
				decision.superuser = &v
			}
		}
		if f.SystemAuditorAttr != "" {
			v := attrMatches(identity, f.SystemAuditorAttr, f.SystemAuditorValue)
			if v || f.RemoveSystemAuditors {
				decision.auditor = &v
			}
		}
	}
	return decision
}

func (p *Provisioner) applyFlags(ctx context.Context, user *access.User, flags flagDecision) error {
	superuser := user.IsSuperuser
	if flags.superuser != nil {
		superuser = *flags.superuser
	}
	auditor := user.IsSystemAuditor
	if flags.auditor != nil {
		auditor = *flags.auditor
	}
	if superuser == user.IsSuperuser && auditor == user.IsSystemAuditor {
		return nil
	}

	if _, err := p.db.ExecContext(ctx, `
		UPDATE users SET is_superuser = $1, is_system_auditor = $2 WHERE id = $3
	`, superuser, auditor, user.ID); err != nil {
		return fmt.Errorf("failed to update user flags: %w", err)
	}
	user.IsSuperuser = superuser
	user.IsSystemAuditor = auditor
	return nil
}

func (p *Provisioner) applyOrgMaps(ctx context.Context, userID int64, identity *Identity, maps loginMaps) {
	for org, entry := range maps.ldapOrg {
		member := entry.UsersAll || inAnyGroup(identity, entry.Users)
		admin := entry.AdminsAll || inAnyGroup(identity, entry.Admins)
		p.applyOrgEntry(ctx, userID, org, member, admin, entry.RemoveUsers, entry.RemoveAdmins)
	}
	for org, entry := range maps.socialOrg {
		member := anyMatcherMatches(entry.Users, identity)
		admin := anyMatcherMatches(entry.Admins, identity)
		p.applyOrgEntry(ctx, userID, org, member, admin, entry.RemoveUsers, entry.RemoveAdmins)
	}
}

func (p *Provisioner) applyOrgEntry(ctx context.Context, userID int64, org string, member, admin, removeMember, removeAdmin bool) {
	orgID, err := p.names.OrganizationIDByName(ctx, org)
	if err != nil {
		p.log.WithError(err).WithField("organization", org).Warn("skipping unmapped organization")
		return
	}
	p.applyRole(ctx, userID, rbac.RoleID{
		ObjectType: objects.TypeOrganization, ObjectID: orgID, Name: rbac.RoleMember,
	}, member, removeMember)
	p.applyRole(ctx, userID, rbac.RoleID{
		ObjectType: objects.TypeOrganization, ObjectID: orgID, Name: rbac.RoleAdmin,
	}, admin, removeAdmin)
}

func (p *Provisioner) applyTeamMaps(ctx context.Context, userID int64, identity *Identity, maps loginMaps) {
	for team, entry := range maps.ldapTeam {
		member := entry.UsersAll || inAnyGroup(identity, entry.Users)
		p.applyTeamEntry(ctx, userID, entry.Organization, team, member, entry.Remove)
	}
	for team, entry := range maps.socialTeam {
		member := anyMatcherMatches(entry.Users, identity)
		p.applyTeamEntry(ctx, userID, entry.Organization, team, member, entry.Remove)
	}
}

func (p *Provisioner) applyTeamEntry(ctx context.Context, userID int64, org, team string, member, remove bool) {
	teamID, err := p.names.TeamIDByName(ctx, org, team)
	if err != nil {
		p.log.WithError(err).WithField("team", team).Warn("skipping unmapped team")
		return
	}
	p.applyRole(ctx, userID, rbac.RoleID{
		ObjectType: objects.TypeTeam, ObjectID: teamID, Name: rbac.RoleMember,
	}, member, remove)
}

// applyRole grants a role the rules say the user should hold and,
// when removal is enabled, revokes one they should not.
func (p *Provisioner) applyRole(ctx context.Context, userID int64, role rbac.RoleID, member, remove bool) {
	switch {
	case member:
		if err := p.roles.Grant(ctx, &rbac.Grant{Role: role, UserID: userID}); err != nil {
			p.log.WithError(err).Warn("failed to grant mapped role")
		}
	case remove:
		if err := p.roles.Revoke(ctx, role, userID); err != nil {
			p.log.WithError(err).Warn("failed to revoke mapped role")
		}
	}
}

func inAnyGroup(identity *Identity, groups []string) bool {
	for _, g := range groups {
		if identity.InGroup(g) {
			return true
		}
	}
	return false
}

// anyMatcherMatches runs the social matchers against the login
// username and email.
func anyMatcherMatches(matchers []ssoconf.Matcher, identity *Identity) bool {
	for _, m := range matchers {
		if m.Match(identity.Username) || (identity.Email != "" && m.Match(identity.Email)) {
			return true
		}
	}
	return false
}

// attrMatches reports whether the named attribute is present and,
// when specific values are configured, carries one of them.
func attrMatches(identity *Identity, attr string, values []string) bool {
	vs, ok := identity.Attributes[attr]
	if !ok || len(vs) == 0 {
		return false
	}
	if len(values) == 0 {
		return true
	}
	for _, want := range values {
		for _, have := range vs {
			if want == have {
				return true
			}
		}
	}
	return false
}
