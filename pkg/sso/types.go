package sso

import (
	"net/http"
	"time"
)

// Identity is what a backend learns about the person who just
// authenticated. Groups carry whatever grouping construct the backend
// has: LDAP group DNs, SAML attribute values, OIDC claim entries.
type Identity struct {
	Backend    string              `json:"backend"`
	ExternalID string              `json:"external_id"`
	Username   string              `json:"username"`
	Email      string              `json:"email"`
	FirstName  string              `json:"first_name,omitempty"`
	LastName   string              `json:"last_name,omitempty"`
	Groups     []string            `json:"groups,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// InGroup reports whether the identity carries the named group
func (id *Identity) InGroup(name string) bool {
	for _, g := range id.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// Attr returns the first value of a raw attribute
func (id *Identity) Attr(name string) string {
	if vs, ok := id.Attributes[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Backend authenticates users against one external identity provider
type Backend interface {
	// Name returns the backend's stable name, e.g. "saml:okta"
	Name() string

	// InitiateLogin redirects the browser into the provider's login
	// flow. state is echoed back on the callback for CSRF protection.
	InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error

	// HandleCallback completes the flow and returns the
	// authenticated identity.
	HandleCallback(w http.ResponseWriter, r *http.Request) (*Identity, error)
}

// UserMapping links an external identity to a Helmsman user
type UserMapping struct {
	ID          int64     `json:"id"`
	Backend     string    `json:"backend"`
	ExternalID  string    `json:"external_id"`
	UserID      int64     `json:"user_id"`
	LastLoginAt time.Time `json:"last_login_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is a logged-in browser session established through a backend
type Session struct {
	ID               string    `json:"id"`
	Backend          string    `json:"backend"`
	UserID           int64     `json:"user_id"`
	ExternalID       string    `json:"external_id"`
	SAMLSessionIndex string    `json:"saml_session_index,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}
