package sso

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCBackend authenticates through an OpenID Connect provider
// located by discovery.
type OIDCBackend struct {
	name         string
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// OIDCSettings are the validated settings for one OIDC backend
type OIDCSettings struct {
	ClientID     string
	ClientSecret string
	Endpoint     string // issuer URL for discovery
	RedirectURL  string
	Scopes       []string
}

// NewOIDCBackend discovers the provider and builds the backend
func NewOIDCBackend(ctx context.Context, name string, settings OIDCSettings) (*OIDCBackend, error) {
	if settings.Endpoint == "" {
		return nil, fmt.Errorf("oidc endpoint is required")
	}
	provider, err := oidc.NewProvider(ctx, settings.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	scopes := settings.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCBackend{
		name:     name,
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: settings.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  settings.RedirectURL,
			Scopes:       scopes,
		},
	}, nil
}

// Name implements Backend
func (b *OIDCBackend) Name() string {
	return b.name
}

// InitiateLogin redirects to the authorization endpoint
func (b *OIDCBackend) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error {
	http.Redirect(w, r, b.oauth2Config.AuthCodeURL(state), http.StatusFound)
	return nil
}

// HandleCallback exchanges the code, verifies the ID token and maps
// the standard claims.
func (b *OIDCBackend) HandleCallback(w http.ResponseWriter, r *http.Request) (*Identity, error) {
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	ctx := r.Context()
	token, err := b.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("token response has no id_token")
	}
	idToken, err := b.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		PreferredUsername string   `json:"preferred_username"`
		Email             string   `json:"email"`
		GivenName         string   `json:"given_name"`
		FamilyName        string   `json:"family_name"`
		Groups            []string `json:"groups"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	identity := &Identity{
		Backend:    b.name,
		ExternalID: idToken.Subject,
		Username:   claims.PreferredUsername,
		Email:      claims.Email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
		Groups:     claims.Groups,
	}
	if identity.Username == "" {
		identity.Username = identity.Email
	}
	if identity.Email == "" {
		// some providers only release email through the userinfo endpoint
		if info, err := b.provider.UserInfo(ctx, oauth2.StaticTokenSource(token)); err == nil {
			identity.Email = info.Email
		}
	}
	return identity, nil
}
