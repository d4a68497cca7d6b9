package sso

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// OAuth2Backend authenticates through a plain OAuth2 provider and
// reads the profile from its userinfo endpoint. Used for the social
// providers that do not speak OIDC, chiefly GitHub.
type OAuth2Backend struct {
	name         string
	oauth2Config *oauth2.Config
	userInfoURL  string
	mapUser      func(raw map[string]any) *Identity
}

// NewGitHubBackend builds the GitHub social login backend
func NewGitHubBackend(clientID, clientSecret, redirectURL string) *OAuth2Backend {
	return &OAuth2Backend{
		name: "github",
		oauth2Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email", "read:org"},
		},
		userInfoURL: "https://api.github.com/user",
		mapUser: func(raw map[string]any) *Identity {
			id := &Identity{Backend: "github"}
			if v, ok := raw["id"].(float64); ok {
				id.ExternalID = strconv.FormatInt(int64(v), 10)
			}
			id.Username, _ = raw["login"].(string)
			id.Email, _ = raw["email"].(string)
			return id
		},
	}
}

// NewGoogleOAuth2Backend builds the Google social login backend
func NewGoogleOAuth2Backend(clientID, clientSecret, redirectURL string) *OAuth2Backend {
	return &OAuth2Backend{
		name: "google-oauth2",
		oauth2Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
		},
		userInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		mapUser: func(raw map[string]any) *Identity {
			id := &Identity{Backend: "google-oauth2"}
			id.ExternalID, _ = raw["sub"].(string)
			id.Email, _ = raw["email"].(string)
			id.Username = id.Email
			id.FirstName, _ = raw["given_name"].(string)
			id.LastName, _ = raw["family_name"].(string)
			return id
		},
	}
}

// Name implements Backend
func (b *OAuth2Backend) Name() string {
	return b.name
}

// InitiateLogin redirects to the authorization endpoint
func (b *OAuth2Backend) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error {
	http.Redirect(w, r, b.oauth2Config.AuthCodeURL(state), http.StatusFound)
	return nil
}

// HandleCallback exchanges the code and fetches the user profile
func (b *OAuth2Backend) HandleCallback(w http.ResponseWriter, r *http.Request) (*Identity, error) {
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	ctx := r.Context()
	token, err := b.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	client := b.oauth2Config.Client(ctx, token)
	resp, err := client.Get(b.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user profile request returned %d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode user profile: %w", err)
	}

	identity := b.mapUser(raw)
	if identity.ExternalID == "" {
		return nil, fmt.Errorf("user profile carries no identifier")
	}
	return identity, nil
}
