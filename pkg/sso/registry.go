package sso

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/helmsmanhq/helmsman/pkg/config"
	"github.com/helmsmanhq/helmsman/pkg/license"
	"github.com/helmsmanhq/helmsman/pkg/observability"
	"github.com/helmsmanhq/helmsman/pkg/ssoconf"
)

// Registry holds the constructed authentication backends. Rebuild
// replaces the whole set, so a providers-file reload swaps backends
// atomically.
type Registry struct {
	baseURL string
	gate    license.Gate
	log     *observability.Logger

	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry
func NewRegistry(baseURL string, gate license.Gate, log *observability.Logger) *Registry {
	return &Registry{
		baseURL:  baseURL,
		gate:     gate,
		log:      log,
		backends: make(map[string]Backend),
	}
}

// Rebuild constructs backends from a validated providers document.
// Sections whose license feature is not enabled are skipped; a
// backend that fails to construct is logged and skipped rather than
// failing the whole reload.
func (reg *Registry) Rebuild(ctx context.Context, providers *config.Providers) {
	enabled := make(map[string]struct{})
	for _, name := range ssoconf.EnabledBackends(providers.Settings(), reg.gate) {
		enabled[name] = struct{}{}
	}

	backends := make(map[string]Backend)
	add := func(b Backend, err error) {
		if err != nil {
			reg.log.WithError(err).Warn("skipping authentication backend")
			return
		}
		backends[b.Name()] = b
	}

	if _, ok := enabled["saml"]; ok && providers.SAML != nil {
		sp := SAMLServiceProvider{
			EntityID:   providers.SAML.SPEntityID,
			PublicCert: providers.SAML.SPPublicCert,
			PrivateKey: providers.SAML.SPPrivateKey,
			BaseURL:    reg.baseURL,
		}
		idps, err := ssoconf.ParseEnabledIdPs(providers.SAML.EnabledIdPs)
		if err == nil {
			for name, idp := range idps {
				add(NewSAMLBackend(name, idp, sp))
			}
		} else {
			reg.log.WithError(err).Warn("skipping SAML backends")
		}
	}

	if social := providers.Social; social != nil {
		if _, ok := enabled["github"]; ok {
			add(NewGitHubBackend(social.GitHubKey, social.GitHubSecret,
				reg.baseURL+"/sso/complete/github"), nil)
		}
		if _, ok := enabled["google-oauth2"]; ok {
			add(NewGoogleOAuth2Backend(social.GoogleOAuth2Key, social.GoogleOAuth2Secret,
				reg.baseURL+"/sso/complete/google-oauth2"), nil)
		}
		if _, ok := enabled["oidc"]; ok {
			add(NewOIDCBackend(ctx, "oidc", OIDCSettings{
				ClientID:     social.OIDCKey,
				ClientSecret: social.OIDCSecret,
				Endpoint:     social.OIDCEndpoint,
				RedirectURL:  reg.baseURL + "/sso/complete/oidc",
			}))
		}
	}

	reg.mu.Lock()
	reg.backends = backends
	reg.mu.Unlock()

	reg.log.WithField("backends", len(backends)).Info("authentication backends rebuilt")
}

// Lookup returns the named backend
func (reg *Registry) Lookup(name string) (Backend, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	b, ok := reg.backends[name]
	if !ok {
		return nil, fmt.Errorf("no authentication backend named %q", name)
	}
	return b, nil
}

// Names lists the registered backend names, sorted
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.backends))
	for name := range reg.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
