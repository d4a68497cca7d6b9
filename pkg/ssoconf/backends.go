package ssoconf

import (
	"sort"

	"github.com/helmsmanhq/helmsman/pkg/license"
)

// Backend describes one authentication backend: the settings that
// must be non-empty for it to activate and the license feature, if
// any, that gates it.
type Backend struct {
	Name     string
	Required []string
	Feature  string
}

// knownBackends is the catalog of supported authentication backends
// in evaluation order.
var knownBackends = []Backend{
	{Name: "ldap", Required: []string{"AUTH_LDAP_SERVER_URI"}, Feature: license.FeatureLDAP},
	{Name: "radius", Required: []string{"RADIUS_SERVER"}, Feature: license.FeatureEnterpriseAuth},
	{Name: "saml", Required: []string{"SOCIAL_AUTH_SAML_SP_ENTITY_ID", "SOCIAL_AUTH_SAML_SP_PUBLIC_CERT", "SOCIAL_AUTH_SAML_SP_PRIVATE_KEY", "SOCIAL_AUTH_SAML_ORG_INFO", "SOCIAL_AUTH_SAML_TECHNICAL_CONTACT", "SOCIAL_AUTH_SAML_SUPPORT_CONTACT", "SOCIAL_AUTH_SAML_ENABLED_IDPS"}, Feature: license.FeatureEnterpriseAuth},
	{Name: "google-oauth2", Required: []string{"SOCIAL_AUTH_GOOGLE_OAUTH2_KEY", "SOCIAL_AUTH_GOOGLE_OAUTH2_SECRET"}},
	{Name: "github", Required: []string{"SOCIAL_AUTH_GITHUB_KEY", "SOCIAL_AUTH_GITHUB_SECRET"}},
	{Name: "github-org", Required: []string{"SOCIAL_AUTH_GITHUB_ORG_KEY", "SOCIAL_AUTH_GITHUB_ORG_SECRET", "SOCIAL_AUTH_GITHUB_ORG_NAME"}},
	{Name: "github-team", Required: []string{"SOCIAL_AUTH_GITHUB_TEAM_KEY", "SOCIAL_AUTH_GITHUB_TEAM_SECRET", "SOCIAL_AUTH_GITHUB_TEAM_ID"}},
	{Name: "azuread-oauth2", Required: []string{"SOCIAL_AUTH_AZUREAD_OAUTH2_KEY", "SOCIAL_AUTH_AZUREAD_OAUTH2_SECRET"}},
	{Name: "oidc", Required: []string{"SOCIAL_AUTH_OIDC_KEY", "SOCIAL_AUTH_OIDC_SECRET", "SOCIAL_AUTH_OIDC_OIDC_ENDPOINT"}},
}

// SettingsSource resolves configured setting values by name
type SettingsSource interface {
	Setting(name string) any
}

// SettingsMap adapts a plain map to a SettingsSource
type SettingsMap map[string]any

func (m SettingsMap) Setting(name string) any { return m[name] }

// EnabledBackends returns the names of the backends whose required
// settings are all configured and whose license feature, when one is
// required, is enabled. The result is sorted for stable output.
func EnabledBackends(settings SettingsSource, gate license.Gate) []string {
	var enabled []string
	for _, backend := range knownBackends {
		if !backendConfigured(backend, settings) {
			continue
		}
		if backend.Feature != "" && (gate == nil || !gate.FeatureEnabled(backend.Feature)) {
			continue
		}
		enabled = append(enabled, backend.Name)
	}
	sort.Strings(enabled)
	return enabled
}

func backendConfigured(backend Backend, settings SettingsSource) bool {
	for _, name := range backend.Required {
		if isEmptySetting(settings.Setting(name)) {
			return false
		}
	}
	return true
}

func isEmptySetting(val any) bool {
	switch v := val.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []byte:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
