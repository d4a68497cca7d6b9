package ssoconf

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// LDAPScope is an LDAP search scope
type LDAPScope int

const (
	ScopeBase LDAPScope = iota
	ScopeOneLevel
	ScopeSubtree
)

var scopeNames = map[LDAPScope]string{
	ScopeBase:     "SCOPE_BASE",
	ScopeOneLevel: "SCOPE_ONELEVEL",
	ScopeSubtree:  "SCOPE_SUBTREE",
}

// String returns the scope's configuration name
func (s LDAPScope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LDAPScope(%d)", int(s))
}

// ParseScope converts a configuration name to a scope
func ParseScope(name string) (LDAPScope, error) {
	for scope, n := range scopeNames {
		if n == name {
			return scope, nil
		}
	}
	return 0, fieldErr("", "invalid_scope", "%q is not a valid LDAP scope", name).OrNil()
}

// dnPattern accepts RFC 4514-shaped distinguished names: one or more
// attr=value pairs separated by commas (plus signs join multi-valued
// RDNs). Values may contain escaped special characters.
var dnPattern = regexp.MustCompile(`^([A-Za-z][\w-]*|\d+(\.\d+)*)=(([^,=\+<>#;\\"]|\\.)+|".*?")([+,]\s*([A-Za-z][\w-]*|\d+(\.\d+)*)=(([^,=\+<>#;\\"]|\\.)+|".*?"))*$`)

// userPlaceholder is the token substituted with the login name in
// templated DNs and filters.
const userPlaceholder = "%(user)s"

// ValidateServerURI validates a comma- or space-separated list of
// LDAP server URIs. Every entry must carry an ldap or ldaps scheme.
func ValidateServerURI(value string) error {
	var es FieldErrors
	for _, raw := range splitServerList(value) {
		u, err := url.Parse(raw)
		if err != nil {
			es.Add("", "invalid_uri", "invalid server URI %q", raw)
			continue
		}
		if u.Scheme != "ldap" && u.Scheme != "ldaps" {
			es.Add("", "invalid_scheme", "server URI %q must use ldap or ldaps", raw)
			continue
		}
		if u.Host == "" {
			es.Add("", "invalid_uri", "server URI %q has no host", raw)
		}
	}
	return es.OrNil()
}

func splitServerList(value string) []string {
	var out []string
	for _, part := range regexp.MustCompile(`[, ]`).Split(value, -1) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateDN validates a distinguished name. The empty string is
// accepted and normalized to "unset" by NormalizeDN.
func ValidateDN(value string) error {
	if value == "" {
		return nil
	}
	if !dnPattern.MatchString(value) {
		return fieldErr("", "invalid_dn", "%q is not a valid DN", value).OrNil()
	}
	return nil
}

// ValidateDNWithUser validates a DN template containing the user
// placeholder, e.g. "uid=%(user)s,ou=people,dc=example,dc=org".
func ValidateDNWithUser(value string) error {
	if value == "" {
		return nil
	}
	substituted := strings.ReplaceAll(value, userPlaceholder, "user")
	if !strings.Contains(value, userPlaceholder) || !dnPattern.MatchString(substituted) {
		return fieldErr("", "invalid_dn_template", "%q is not a valid DN template", value).OrNil()
	}
	return nil
}

// NormalizeDN maps the empty string to the unset representation the
// LDAP layer expects: a DN field is either a valid string or absent,
// never "".
func NormalizeDN(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// ValidateFilter validates an RFC 4515 search filter shape: balanced
// parentheses around a filter expression.
func ValidateFilter(value string) error {
	if value == "" {
		return nil
	}
	if err := checkFilter(value); err != nil {
		return err
	}
	return nil
}

// ValidateFilterWithUser validates a filter template that must
// reference the user placeholder.
func ValidateFilterWithUser(value string) error {
	if value == "" {
		return nil
	}
	if !strings.Contains(value, userPlaceholder) {
		return fieldErr("", "missing_user", "filter template %q does not reference %s", value, userPlaceholder).OrNil()
	}
	return checkFilter(strings.ReplaceAll(value, userPlaceholder, "user"))
}

func checkFilter(value string) error {
	if !strings.HasPrefix(value, "(") || !strings.HasSuffix(value, ")") {
		return fieldErr("", "invalid_filter", "%q is not a parenthesized LDAP filter", value).OrNil()
	}
	depth := 0
	for _, ch := range value {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fieldErr("", "invalid_filter", "unbalanced parentheses in filter %q", value).OrNil()
			}
		}
	}
	if depth != 0 {
		return fieldErr("", "invalid_filter", "unbalanced parentheses in filter %q", value).OrNil()
	}
	return nil
}

// LDAPSearch is a normalized [base_dn, scope, filter] triple
type LDAPSearch struct {
	BaseDN string
	Scope  LDAPScope
	Filter string
}

// ParseSearch normalizes a raw search value: an empty list is an
// unset search; anything else must be exactly [dn, scope, filter].
func ParseSearch(raw []any, withUser bool) (*LDAPSearch, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw) != 3 {
		return nil, fieldErr("", "invalid_length", "expected a list of three items but got %d", len(raw)).OrNil()
	}

	var es FieldErrors
	dn, ok := raw[0].(string)
	if !ok {
		es.Add("[0]", "type_error", "expected a string, got %T", raw[0])
	} else if err := ValidateDN(dn); err != nil {
		es.Extend("[0]", err.(FieldErrors))
	}

	var scope LDAPScope
	scopeName, ok := raw[1].(string)
	if !ok {
		es.Add("[1]", "type_error", "expected a string, got %T", raw[1])
	} else if parsed, err := ParseScope(scopeName); err != nil {
		es.Extend("[1]", err.(FieldErrors))
	} else {
		scope = parsed
	}

	filter, ok := raw[2].(string)
	if !ok {
		es.Add("[2]", "type_error", "expected a string, got %T", raw[2])
	} else {
		filterErr := ValidateFilter(filter)
		if withUser {
			filterErr = ValidateFilterWithUser(filter)
		}
		if filterErr != nil {
			es.Extend("[2]", filterErr.(FieldErrors))
		}
	}

	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return &LDAPSearch{BaseDN: dn, Scope: scope, Filter: filter}, nil
}

// Display returns the serializable [dn, scope, filter] triple
func (s *LDAPSearch) Display() []any {
	if s == nil {
		return []any{}
	}
	return []any{s.BaseDN, s.Scope.String(), s.Filter}
}

// LDAPSearchUnion is one or more searches tried in order
type LDAPSearchUnion struct {
	Searches []*LDAPSearch
}

// ParseSearchUnion accepts either a single [dn, scope, filter] triple
// or a list of such triples.
func ParseSearchUnion(raw []any) (*LDAPSearchUnion, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw) == 3 {
		if _, ok := raw[0].(string); ok {
			search, err := ParseSearch(raw, true)
			if err != nil {
				return nil, err
			}
			return &LDAPSearchUnion{Searches: []*LDAPSearch{search}}, nil
		}
	}

	var es FieldErrors
	union := &LDAPSearchUnion{}
	for i, elem := range raw {
		triple, ok := elem.([]any)
		if !ok {
			es.Add(fmt.Sprintf("[%d]", i), "type_error", "union element must be a search query array")
			continue
		}
		search, err := ParseSearch(triple, true)
		if err != nil {
			es.Extend(fmt.Sprintf("[%d]", i), err.(FieldErrors))
			continue
		}
		union.Searches = append(union.Searches, search)
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return union, nil
}

// Display returns the serializable form: a list of triples
func (u *LDAPSearchUnion) Display() []any {
	if u == nil {
		return []any{}
	}
	out := make([]any, len(u.Searches))
	for i, s := range u.Searches {
		out[i] = s.Display()
	}
	return out
}

// validConnectionOptions is the allowlist of per-connection LDAP
// options administrators may set.
var validConnectionOptions = map[string]struct{}{
	"OPT_REFERRALS":          {},
	"OPT_NETWORK_TIMEOUT":    {},
	"OPT_TIMEOUT":            {},
	"OPT_PROTOCOL_VERSION":   {},
	"OPT_X_TLS_REQUIRE_CERT": {},
	"OPT_X_TLS_CACERTFILE":   {},
	"OPT_X_TLS_NEWCTX":       {},
	"OPT_DEBUG_LEVEL":        {},
}

// ParseConnectionOptions validates option names against the allowlist
func ParseConnectionOptions(raw map[string]any) (map[string]any, error) {
	var invalid []string
	for name := range raw {
		if _, ok := validConnectionOptions[name]; !ok {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		return nil, fieldErr("", "invalid_options", "invalid connection option(s): %s", strings.Join(invalid, ", ")).OrNil()
	}
	return raw, nil
}

// validUserAttrs are the user model attributes an LDAP attribute map
// may populate.
var validUserAttrs = map[string]struct{}{
	"first_name": {},
	"last_name":  {},
	"email":      {},
}

// ParseUserAttrMap validates an LDAP attribute -> user field map
func ParseUserAttrMap(raw map[string]any) (map[string]string, error) {
	var es FieldErrors
	out := make(map[string]string, len(raw))
	for key, val := range raw {
		if _, ok := validUserAttrs[key]; !ok {
			es.Add("", "invalid_attrs", "invalid user attribute %q", key)
			continue
		}
		attr, ok := val.(string)
		if !ok {
			es.Add(key, "type_error", "attribute name must be a string")
			continue
		}
		out[key] = attr
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// validUserFlags are the boolean user flags an LDAP flags-by-group
// map may drive.
var validUserFlags = map[string]struct{}{
	"is_superuser":      {},
	"is_system_auditor": {},
}

// ParseUserFlags validates a user flag -> group DN (or DN list) map
func ParseUserFlags(raw map[string]any) (map[string][]string, error) {
	var es FieldErrors
	out := make(map[string][]string, len(raw))
	for flag, val := range raw {
		if _, ok := validUserFlags[flag]; !ok {
			es.Add("", "invalid_flag", "invalid user flag %q", flag)
			continue
		}
		dns, err := coerceDNList(val)
		if err != nil {
			es.Extend(flag, err.(FieldErrors))
			continue
		}
		out[flag] = dns
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func coerceDNList(val any) ([]string, error) {
	var dns []string
	switch v := val.(type) {
	case string:
		dns = []string{v}
	case []any:
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, fieldErr("", "type_error", "expected a DN string, got %T", elem).OrNil()
			}
			dns = append(dns, s)
		}
	default:
		return nil, fieldErr("", "type_error", "expected a DN or list of DNs, got %T", val).OrNil()
	}
	var es FieldErrors
	for i, dn := range dns {
		if err := ValidateDN(dn); err != nil {
			es.Extend(fmt.Sprintf("[%d]", i), err.(FieldErrors))
		}
	}
	return dns, es.OrNil()
}

// ldapGroupTypes maps group type names to the parameters their
// constructors accept.
var ldapGroupTypes = map[string][]string{
	"MemberDNGroupType":              {"member_attr", "name_attr"},
	"NestedMemberDNGroupType":        {"member_attr", "name_attr"},
	"GroupOfNamesType":               {"name_attr"},
	"NestedGroupOfNamesType":         {"name_attr"},
	"GroupOfUniqueNamesType":         {"name_attr"},
	"NestedGroupOfUniqueNamesType":   {"name_attr"},
	"ActiveDirectoryGroupType":       {"name_attr"},
	"NestedActiveDirectoryGroupType": {"name_attr"},
	"OrganizationalRoleGroupType":    {"name_attr"},
	"PosixGroupType":                 {"name_attr"},
	"PosixUIDGroupType":              {"name_attr", "ldap_group_user_attr"},
	"MemberUIDGroupType":             {"name_attr"},
}

// LDAPGroupType is a normalized group type selection with its
// sanitized parameters.
type LDAPGroupType struct {
	Name   string
	Params map[string]any
}

// ParseGroupType validates the group type name and keeps only the
// parameters that type accepts. Unknown parameter values supplied for
// a different type are dropped, not rejected, for compatibility with
// configurations written against other group types.
func ParseGroupType(name string, params map[string]any) (*LDAPGroupType, error) {
	if name == "" {
		return nil, nil
	}
	accepted, ok := ldapGroupTypes[name]
	if !ok {
		return nil, fieldErr("", "invalid_group_type", "%q is not a supported LDAP group type", name).OrNil()
	}
	sanitized := make(map[string]any)
	for _, param := range accepted {
		if v, present := params[param]; present {
			sanitized[param] = v
		}
	}
	return &LDAPGroupType{Name: name, Params: sanitized}, nil
}

// ValidateGroupTypeParams checks a parameter map against the chosen
// group type, rejecting keys the type's constructor does not accept.
// An unknown group type fails safe to an empty parameter set.
func ValidateGroupTypeParams(groupType string, params map[string]any) (map[string]any, error) {
	accepted, ok := ldapGroupTypes[groupType]
	if !ok {
		return map[string]any{}, nil
	}
	acceptedSet := make(map[string]struct{}, len(accepted))
	for _, p := range accepted {
		acceptedSet[p] = struct{}{}
	}
	var invalid []string
	for key := range params {
		if _, ok := acceptedSet[key]; !ok {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) > 0 {
		return nil, fieldErr("", "invalid_keys", "invalid key(s): %s", strings.Join(invalid, ", ")).OrNil()
	}
	return params, nil
}

// LDAPOrganizationMapEntry controls membership mapping for one
// organization: which group DNs grant user/admin membership and
// whether non-matching users are removed.
type LDAPOrganizationMapEntry struct {
	Admins       []string
	Users        []string
	AdminsAll    bool // true/false instead of DN list
	UsersAll     bool
	RemoveAdmins bool
	RemoveUsers  bool
}

// LDAPTeamMapEntry controls membership mapping for one team
type LDAPTeamMapEntry struct {
	Organization string
	Users        []string
	UsersAll     bool
	Remove       bool
}

// ParseOrganizationMap validates an organization name -> mapping entry dict
func ParseOrganizationMap(raw map[string]any) (map[string]*LDAPOrganizationMapEntry, error) {
	var es FieldErrors
	out := make(map[string]*LDAPOrganizationMapEntry, len(raw))
	for org, rawEntry := range raw {
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			es.Add(org, "type_error", "organization map entry must be a dict")
			continue
		}
		parsed := &LDAPOrganizationMapEntry{}
		for key, val := range entry {
			switch key {
			case "admins":
				parsed.Admins, parsed.AdminsAll = parseDNsOrBool(org+".admins", val, &es)
			case "users":
				parsed.Users, parsed.UsersAll = parseDNsOrBool(org+".users", val, &es)
			case "remove_admins":
				parsed.RemoveAdmins, _ = val.(bool)
			case "remove_users":
				parsed.RemoveUsers, _ = val.(bool)
			default:
				es.Add(org, "invalid_keys", "invalid key(s) for organization map: %s", key)
			}
		}
		out[org] = parsed
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseTeamMap validates a team name -> mapping entry dict. The
// organization key is required for every team.
func ParseTeamMap(raw map[string]any) (map[string]*LDAPTeamMapEntry, error) {
	var es FieldErrors
	out := make(map[string]*LDAPTeamMapEntry, len(raw))
	for team, rawEntry := range raw {
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			es.Add(team, "type_error", "team map entry must be a dict")
			continue
		}
		parsed := &LDAPTeamMapEntry{}
		for key, val := range entry {
			switch key {
			case "organization":
				parsed.Organization, _ = val.(string)
			case "users":
				parsed.Users, parsed.UsersAll = parseDNsOrBool(team+".users", val, &es)
			case "remove":
				parsed.Remove, _ = val.(bool)
			default:
				es.Add(team, "invalid_keys", "invalid key(s) for team map: %s", key)
			}
		}
		if parsed.Organization == "" {
			es.Add(team, "missing_keys", "missing required key for team map: organization")
		}
		out[team] = parsed
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseDNsOrBool handles the DN-or-boolean union: true matches all
// users, false/null matches none, a string or list is a DN set.
func parseDNsOrBool(path string, val any, es *FieldErrors) (dns []string, all bool) {
	switch v := val.(type) {
	case bool:
		return nil, v
	case nil:
		return nil, false
	default:
		parsed, err := coerceDNList(v)
		if err != nil {
			es.Extend(path, err.(FieldErrors))
			return nil, false
		}
		return parsed, false
	}
}
