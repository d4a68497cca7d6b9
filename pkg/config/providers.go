package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/helmsmanhq/helmsman/pkg/ssoconf"
)

// Providers is the authentication providers document. Each section is
// optional; a section left out disables that backend.
type Providers struct {
	LDAP   *LDAPProvider   `yaml:"ldap"`
	RADIUS *RADIUSProvider `yaml:"radius"`
	SAML   *SAMLProvider   `yaml:"saml"`
	Social *SocialProvider `yaml:"social"`
}

// LDAPProvider configures the LDAP authentication backend
type LDAPProvider struct {
	ServerURI         string         `yaml:"server_uri"`
	BindDN            string         `yaml:"bind_dn"`
	BindPassword      string         `yaml:"bind_password"`
	UserDNTemplate    string         `yaml:"user_dn_template"`
	UserSearch        []any          `yaml:"user_search"`
	GroupSearch       []any          `yaml:"group_search"`
	GroupType         string         `yaml:"group_type"`
	GroupTypeParams   map[string]any `yaml:"group_type_params"`
	UserAttrMap       map[string]any `yaml:"user_attr_map"`
	UserFlagsByGroup  map[string]any `yaml:"user_flags_by_group"`
	ConnectionOptions map[string]any `yaml:"connection_options"`
	OrganizationMap   map[string]any `yaml:"organization_map"`
	TeamMap           map[string]any `yaml:"team_map"`
}

// RADIUSProvider configures the RADIUS authentication backend
type RADIUSProvider struct {
	Server string `yaml:"server"`
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret"`
}

// SAMLProvider configures the SAML authentication backend
type SAMLProvider struct {
	SPEntityID       string         `yaml:"sp_entity_id"`
	SPPublicCert     string         `yaml:"sp_public_cert"`
	SPPrivateKey     string         `yaml:"sp_private_key"`
	OrgInfo          map[string]any `yaml:"org_info"`
	TechnicalContact map[string]any `yaml:"technical_contact"`
	SupportContact   map[string]any `yaml:"support_contact"`
	EnabledIdPs      map[string]any `yaml:"enabled_idps"`
	SecurityConfig   map[string]any `yaml:"security_config"`
	OrganizationAttr map[string]any `yaml:"organization_attr"`
	TeamAttr         map[string]any `yaml:"team_attr"`
	UserFlagsAttr    map[string]any `yaml:"user_flags_attr"`
}

// SocialProvider configures the OAuth2/OIDC social backends
type SocialProvider struct {
	GoogleOAuth2Key    string `yaml:"google_oauth2_key"`
	GoogleOAuth2Secret string `yaml:"google_oauth2_secret"`
	GitHubKey          string `yaml:"github_key"`
	GitHubSecret       string `yaml:"github_secret"`
	AzureADKey         string `yaml:"azuread_key"`
	AzureADSecret      string `yaml:"azuread_secret"`
	OIDCKey            string `yaml:"oidc_key"`
	OIDCSecret         string `yaml:"oidc_secret"`
	OIDCEndpoint       string `yaml:"oidc_endpoint"`

	OrganizationMap map[string]any `yaml:"organization_map"`
	TeamMap         map[string]any `yaml:"team_map"`
}

// LoadProviders reads and validates a providers YAML file
func LoadProviders(path string) (*Providers, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}
	return ParseProviders(raw)
}

// ParseProviders decodes and validates a providers document
func ParseProviders(raw []byte) (*Providers, error) {
	var p Providers
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate runs every configured section through its field validators
// and accumulates all failures.
func (p *Providers) Validate() error {
	var es ssoconf.FieldErrors

	if p.LDAP != nil {
		p.LDAP.validate(&es)
	}
	if p.RADIUS != nil {
		secret, err := ssoconf.ParseRADIUSSecret(p.RADIUS.Secret)
		if err != nil {
			extendFieldErrors(&es, "radius.secret", err)
		}
		cfg := &ssoconf.RADIUSConfig{Server: p.RADIUS.Server, Port: p.RADIUS.Port, Secret: secret}
		if err := ssoconf.ValidateRADIUS(cfg); err != nil {
			extendFieldErrors(&es, "radius", err)
		}
	}
	if p.SAML != nil {
		p.SAML.validate(&es)
	}
	if p.Social != nil {
		p.Social.validate(&es)
	}

	return es.OrNil()
}

func (l *LDAPProvider) validate(es *ssoconf.FieldErrors) {
	if l.ServerURI != "" {
		if err := ssoconf.ValidateServerURI(l.ServerURI); err != nil {
			extendFieldErrors(es, "ldap.server_uri", err)
		}
	}
	if err := ssoconf.ValidateDN(l.BindDN); err != nil {
		extendFieldErrors(es, "ldap.bind_dn", err)
	}
	if err := ssoconf.ValidateDNWithUser(l.UserDNTemplate); err != nil {
		extendFieldErrors(es, "ldap.user_dn_template", err)
	}
	if _, err := ssoconf.ParseSearch(l.UserSearch, true); err != nil {
		extendFieldErrors(es, "ldap.user_search", err)
	}
	if _, err := ssoconf.ParseSearch(l.GroupSearch, false); err != nil {
		extendFieldErrors(es, "ldap.group_search", err)
	}
	if _, err := ssoconf.ParseGroupType(l.GroupType, l.GroupTypeParams); err != nil {
		extendFieldErrors(es, "ldap.group_type", err)
	}
	if l.UserAttrMap != nil {
		if _, err := ssoconf.ParseUserAttrMap(l.UserAttrMap); err != nil {
			extendFieldErrors(es, "ldap.user_attr_map", err)
		}
	}
	if l.UserFlagsByGroup != nil {
		if _, err := ssoconf.ParseUserFlags(l.UserFlagsByGroup); err != nil {
			extendFieldErrors(es, "ldap.user_flags_by_group", err)
		}
	}
	if l.ConnectionOptions != nil {
		if _, err := ssoconf.ParseConnectionOptions(l.ConnectionOptions); err != nil {
			extendFieldErrors(es, "ldap.connection_options", err)
		}
	}
	if l.OrganizationMap != nil {
		if _, err := ssoconf.ParseOrganizationMap(l.OrganizationMap); err != nil {
			extendFieldErrors(es, "ldap.organization_map", err)
		}
	}
	if l.TeamMap != nil {
		if _, err := ssoconf.ParseTeamMap(l.TeamMap); err != nil {
			extendFieldErrors(es, "ldap.team_map", err)
		}
	}
}

func (s *SAMLProvider) validate(es *ssoconf.FieldErrors) {
	if s.OrgInfo != nil {
		if _, err := ssoconf.ParseOrgInfo(s.OrgInfo); err != nil {
			extendFieldErrors(es, "saml.org_info", err)
		}
	}
	if s.TechnicalContact != nil {
		if _, err := ssoconf.ParseContact(s.TechnicalContact); err != nil {
			extendFieldErrors(es, "saml.technical_contact", err)
		}
	}
	if s.SupportContact != nil {
		if _, err := ssoconf.ParseContact(s.SupportContact); err != nil {
			extendFieldErrors(es, "saml.support_contact", err)
		}
	}
	if s.EnabledIdPs != nil {
		if _, err := ssoconf.ParseEnabledIdPs(s.EnabledIdPs); err != nil {
			extendFieldErrors(es, "saml.enabled_idps", err)
		}
	}
	if s.SecurityConfig != nil {
		if _, err := ssoconf.ParseSecuritySettings(s.SecurityConfig); err != nil {
			extendFieldErrors(es, "saml.security_config", err)
		}
	}
	if s.OrganizationAttr != nil {
		if _, err := ssoconf.ParseSAMLOrgAttr(s.OrganizationAttr); err != nil {
			extendFieldErrors(es, "saml.organization_attr", err)
		}
	}
	if s.TeamAttr != nil {
		if _, err := ssoconf.ParseSAMLTeamAttr(s.TeamAttr); err != nil {
			extendFieldErrors(es, "saml.team_attr", err)
		}
	}
	if s.UserFlagsAttr != nil {
		if _, err := ssoconf.ParseSAMLUserFlagsAttr(s.UserFlagsAttr); err != nil {
			extendFieldErrors(es, "saml.user_flags_attr", err)
		}
	}
}

func (s *SocialProvider) validate(es *ssoconf.FieldErrors) {
	if s.OrganizationMap != nil {
		if _, err := ssoconf.ParseSocialOrganizationMap(s.OrganizationMap); err != nil {
			extendFieldErrors(es, "social.organization_map", err)
		}
	}
	if s.TeamMap != nil {
		if _, err := ssoconf.ParseSocialTeamMap(s.TeamMap); err != nil {
			extendFieldErrors(es, "social.team_map", err)
		}
	}
}

// Settings flattens the document to the setting names the backend
// selector checks.
func (p *Providers) Settings() ssoconf.SettingsMap {
	settings := ssoconf.SettingsMap{}
	if p.LDAP != nil {
		settings["AUTH_LDAP_SERVER_URI"] = p.LDAP.ServerURI
	}
	if p.RADIUS != nil {
		settings["RADIUS_SERVER"] = p.RADIUS.Server
	}
	if p.SAML != nil {
		settings["SOCIAL_AUTH_SAML_SP_ENTITY_ID"] = p.SAML.SPEntityID
		settings["SOCIAL_AUTH_SAML_SP_PUBLIC_CERT"] = p.SAML.SPPublicCert
		settings["SOCIAL_AUTH_SAML_SP_PRIVATE_KEY"] = p.SAML.SPPrivateKey
		settings["SOCIAL_AUTH_SAML_ORG_INFO"] = p.SAML.OrgInfo
		settings["SOCIAL_AUTH_SAML_TECHNICAL_CONTACT"] = p.SAML.TechnicalContact
		settings["SOCIAL_AUTH_SAML_SUPPORT_CONTACT"] = p.SAML.SupportContact
		settings["SOCIAL_AUTH_SAML_ENABLED_IDPS"] = p.SAML.EnabledIdPs
	}
	if p.Social != nil {
		settings["SOCIAL_AUTH_GOOGLE_OAUTH2_KEY"] = p.Social.GoogleOAuth2Key
		settings["SOCIAL_AUTH_GOOGLE_OAUTH2_SECRET"] = p.Social.GoogleOAuth2Secret
		settings["SOCIAL_AUTH_GITHUB_KEY"] = p.Social.GitHubKey
		settings["SOCIAL_AUTH_GITHUB_SECRET"] = p.Social.GitHubSecret
		settings["SOCIAL_AUTH_AZUREAD_OAUTH2_KEY"] = p.Social.AzureADKey
		settings["SOCIAL_AUTH_AZUREAD_OAUTH2_SECRET"] = p.Social.AzureADSecret
		settings["SOCIAL_AUTH_OIDC_KEY"] = p.Social.OIDCKey
		settings["SOCIAL_AUTH_OIDC_SECRET"] = p.Social.OIDCSecret
		settings["SOCIAL_AUTH_OIDC_OIDC_ENDPOINT"] = p.Social.OIDCEndpoint
	}
	return settings
}

func extendFieldErrors(es *ssoconf.FieldErrors, prefix string, err error) {
	if fe, ok := err.(ssoconf.FieldErrors); ok {
		es.Extend(prefix, fe)
		return
	}
	es.Add(prefix, "invalid", "%v", err)
}
