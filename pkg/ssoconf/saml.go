package ssoconf

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// langCodePattern matches the language codes SAML org info entries
// are keyed by, e.g. "en" or "en-US".
var langCodePattern = regexp.MustCompile(`^[a-z]{2}(?:-[A-Z]{2})?$`)

// SAMLOrgInfo describes the service provider organization for one language
type SAMLOrgInfo struct {
	Name        string
	DisplayName string
	URL         string
}

// ParseOrgInfo validates a language code -> org info map. Every entry
// must carry name, displayname and url.
func ParseOrgInfo(raw map[string]any) (map[string]*SAMLOrgInfo, error) {
	var es FieldErrors
	out := make(map[string]*SAMLOrgInfo, len(raw))
	for lang, rawEntry := range raw {
		if !langCodePattern.MatchString(lang) {
			es.Add("", "invalid_lang_code", "invalid language code %q for SAML organization info", lang)
			continue
		}
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			es.Add(lang, "type_error", "organization info must be a dict")
			continue
		}
		info := &SAMLOrgInfo{}
		info.Name = requireString(lang, "name", entry, &es)
		info.DisplayName = requireString(lang, "displayname", entry, &es)
		info.URL = requireString(lang, "url", entry, &es)
		out[lang] = info
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// SAMLContact is a technical or support contact advertised in SP metadata
type SAMLContact struct {
	GivenName    string
	EmailAddress string
}

// ParseContact validates a contact entry
func ParseContact(raw map[string]any) (*SAMLContact, error) {
	var es FieldErrors
	contact := &SAMLContact{
		GivenName:    requireString("", "givenName", raw, &es),
		EmailAddress: requireString("", "emailAddress", raw, &es),
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return contact, nil
}

// SAMLIdP is one enabled identity provider with its signing
// certificate and attribute mappings.
type SAMLIdP struct {
	EntityID string
	URL      string
	X509Cert string

	AttrUserPermanentID string
	AttrFirstName       string
	AttrLastName        string
	AttrUsername        string
	AttrEmail           string
}

// ParseEnabledIdPs validates the idp name -> settings map. entity_id,
// url and x509cert are required per provider; the attr_* mappings are
// optional overrides.
func ParseEnabledIdPs(raw map[string]any) (map[string]*SAMLIdP, error) {
	var es FieldErrors
	out := make(map[string]*SAMLIdP, len(raw))
	for name, rawEntry := range raw {
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			es.Add(name, "type_error", "identity provider settings must be a dict")
			continue
		}
		idp := &SAMLIdP{
			EntityID: requireString(name, "entity_id", entry, &es),
			URL:      requireString(name, "url", entry, &es),
			X509Cert: requireString(name, "x509cert", entry, &es),
		}
		if idp.URL != "" {
			if u, err := url.Parse(idp.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				es.Add(name+".url", "invalid_url", "%q is not a valid http(s) URL", idp.URL)
			}
		}
		if idp.X509Cert != "" {
			if err := ValidateX509Cert(idp.X509Cert); err != nil {
				es.Add(name+".x509cert", "invalid_certificate", "%s", err)
			}
		}
		idp.AttrUserPermanentID = optionalString(name, "attr_user_permanent_id", entry, &es)
		idp.AttrFirstName = optionalString(name, "attr_first_name", entry, &es)
		idp.AttrLastName = optionalString(name, "attr_last_name", entry, &es)
		idp.AttrUsername = optionalString(name, "attr_username", entry, &es)
		idp.AttrEmail = optionalString(name, "attr_email", entry, &es)
		out[name] = idp
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// validSecuritySettings is the allowlist of SP security options
var validSecuritySettings = map[string]struct{}{
	"nameIdEncrypted":                 {},
	"authnRequestsSigned":             {},
	"logoutRequestSigned":             {},
	"logoutResponseSigned":            {},
	"signMetadata":                    {},
	"wantMessagesSigned":              {},
	"wantAssertionsSigned":            {},
	"wantAssertionsEncrypted":         {},
	"wantNameId":                      {},
	"wantNameIdEncrypted":             {},
	"wantAttributeStatement":          {},
	"requestedAuthnContext":           {},
	"requestedAuthnContextComparison": {},
	"metadataValidUntil":              {},
	"metadataCacheDuration":           {},
	"signatureAlgorithm":              {},
	"digestAlgorithm":                 {},
}

// ParseSecuritySettings validates security option names against the allowlist
func ParseSecuritySettings(raw map[string]any) (map[string]any, error) {
	var es FieldErrors
	for key := range raw {
		if _, ok := validSecuritySettings[key]; !ok {
			es.Add("", "invalid_setting", "invalid SAML security setting %q", key)
		}
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return raw, nil
}

// SAMLOrgAttr maps SAML assertion attributes to organization membership
type SAMLOrgAttr struct {
	SAMLAttr      string
	SAMLAdminAttr string
	Remove        bool
	RemoveAdmins  bool
}

// ParseSAMLOrgAttr validates the organization attribute mapping
func ParseSAMLOrgAttr(raw map[string]any) (*SAMLOrgAttr, error) {
	var es FieldErrors
	attr := &SAMLOrgAttr{}
	for key, val := range raw {
		switch key {
		case "saml_attr":
			attr.SAMLAttr, _ = val.(string)
		case "saml_admin_attr":
			attr.SAMLAdminAttr, _ = val.(string)
		case "remove":
			attr.Remove, _ = val.(bool)
		case "remove_admins":
			attr.RemoveAdmins, _ = val.(bool)
		default:
			es.Add("", "invalid_keys", "invalid key(s) for organization attribute mapping: %s", key)
		}
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return attr, nil
}

// SAMLTeamMapping assigns membership in one team when the team
// attribute value matches.
type SAMLTeamMapping struct {
	Team         string
	TeamAlias    string
	Organization string
}

// SAMLTeamAttr maps a SAML assertion attribute to team membership
// through an explicit team_org_map.
type SAMLTeamAttr struct {
	SAMLAttr   string
	Remove     bool
	TeamOrgMap []*SAMLTeamMapping
}

// ParseSAMLTeamAttr validates the team attribute mapping. Each
// team_org_map entry needs a team and an organization.
func ParseSAMLTeamAttr(raw map[string]any) (*SAMLTeamAttr, error) {
	var es FieldErrors
	attr := &SAMLTeamAttr{}
	for key, val := range raw {
		switch key {
		case "saml_attr":
			attr.SAMLAttr, _ = val.(string)
		case "remove":
			attr.Remove, _ = val.(bool)
		case "team_org_map":
			entries, ok := val.([]any)
			if !ok {
				es.Add("team_org_map", "type_error", "team_org_map must be a list")
				continue
			}
			for i, rawEntry := range entries {
				entry, ok := rawEntry.(map[string]any)
				if !ok {
					es.Add(fmt.Sprintf("team_org_map[%d]", i), "type_error", "mapping entry must be a dict")
					continue
				}
				path := fmt.Sprintf("team_org_map[%d]", i)
				mapping := &SAMLTeamMapping{
					Team:         requireString(path, "team", entry, &es),
					Organization: requireString(path, "organization", entry, &es),
				}
				mapping.TeamAlias = optionalString(path, "team_alias", entry, &es)
				attr.TeamOrgMap = append(attr.TeamOrgMap, mapping)
			}
		default:
			es.Add("", "invalid_keys", "invalid key(s) for team attribute mapping: %s", key)
		}
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return attr, nil
}

// SAMLUserFlagsAttr drives the superuser and system auditor flags
// from assertion attributes: the flag is granted when the named
// attribute is present, optionally restricted to specific values or
// roles.
type SAMLUserFlagsAttr struct {
	SuperuserAttr        string
	SuperuserValue       []string
	SuperuserRole        []string
	RemoveSuperusers     bool
	SystemAuditorAttr    string
	SystemAuditorValue   []string
	SystemAuditorRole    []string
	RemoveSystemAuditors bool
}

// ParseSAMLUserFlagsAttr validates the user flags attribute mapping
func ParseSAMLUserFlagsAttr(raw map[string]any) (*SAMLUserFlagsAttr, error) {
	var es FieldErrors
	attr := &SAMLUserFlagsAttr{}
	for key, val := range raw {
		switch key {
		case "is_superuser_attr":
			attr.SuperuserAttr, _ = val.(string)
		case "is_superuser_value":
			attr.SuperuserValue = stringList(key, val, &es)
		case "is_superuser_role":
			attr.SuperuserRole = stringList(key, val, &es)
		case "remove_superusers":
			attr.RemoveSuperusers, _ = val.(bool)
		case "is_system_auditor_attr":
			attr.SystemAuditorAttr, _ = val.(string)
		case "is_system_auditor_value":
			attr.SystemAuditorValue = stringList(key, val, &es)
		case "is_system_auditor_role":
			attr.SystemAuditorRole = stringList(key, val, &es)
		case "remove_system_auditors":
			attr.RemoveSystemAuditors, _ = val.(bool)
		default:
			es.Add("", "invalid_keys", "invalid key(s) for user flags mapping: %s", key)
		}
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return attr, nil
}

// ValidateX509Cert checks that the value parses as an X.509
// certificate. IdP metadata ships certificates both as full PEM
// blocks and as bare base64 DER, so both forms are accepted.
func ValidateX509Cert(cert string) error {
	cert = strings.TrimSpace(cert)
	var der []byte
	if strings.Contains(cert, "BEGIN CERTIFICATE") {
		block, _ := pem.Decode([]byte(cert))
		if block == nil || block.Type != "CERTIFICATE" {
			return fmt.Errorf("no PEM certificate block found")
		}
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(cert), ""))
		if err != nil {
			return fmt.Errorf("certificate is not valid PEM or base64 DER")
		}
		der = decoded
	}
	if _, err := x509.ParseCertificate(der); err != nil {
		return fmt.Errorf("failed to parse certificate: %v", err)
	}
	return nil
}

func requireString(path, key string, entry map[string]any, es *FieldErrors) string {
	val, present := entry[key]
	if !present {
		es.Add(path, "missing_keys", "missing required key: %s", key)
		return ""
	}
	s, ok := val.(string)
	if !ok || s == "" {
		es.Add(joinPath(path, key), "type_error", "expected a non-empty string")
		return ""
	}
	return s
}

func optionalString(path, key string, entry map[string]any, es *FieldErrors) string {
	val, present := entry[key]
	if !present {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		es.Add(joinPath(path, key), "type_error", "expected a string")
		return ""
	}
	return s
}

// stringList accepts a single string or a list of strings
func stringList(key string, val any, es *FieldErrors) []string {
	switch v := val.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				es.Add(key, "type_error", "expected a string, got %T", elem)
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		es.Add(key, "type_error", "expected a string or list of strings")
		return nil
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
