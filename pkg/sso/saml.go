package sso

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/helmsmanhq/helmsman/pkg/ssoconf"
)

// SAMLBackend authenticates against one enabled identity provider
type SAMLBackend struct {
	name string
	idp  *ssoconf.SAMLIdP
	sp   *saml2.SAMLServiceProvider
}

// SAMLServiceProvider holds the service-provider half of the SAML
// configuration, shared by every enabled IdP.
type SAMLServiceProvider struct {
	EntityID   string
	PublicCert string
	PrivateKey string
	BaseURL    string
}

// NewSAMLBackend builds a backend for one IdP from the validated
// enabled_idps entry.
func NewSAMLBackend(name string, idp *ssoconf.SAMLIdP, sp SAMLServiceProvider) (*SAMLBackend, error) {
	cert, err := parsePEMCertificate(idp.X509Cert)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate for idp %s: %w", name, err)
	}
	certStore := &dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	}

	var keyStore dsig.X509KeyStore
	if sp.PrivateKey != "" {
		key, err := parsePEMPrivateKey(sp.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service provider key: %w", err)
		}
		keyStore = &dsig.TLSCertKeyStore{
			PrivateKey:  key,
			Certificate: [][]byte{[]byte(sp.PublicCert)},
		}
	}

	provider := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      idp.URL,
		IdentityProviderIssuer:      idp.EntityID,
		ServiceProviderIssuer:       sp.EntityID,
		AssertionConsumerServiceURL: sp.BaseURL + "/sso/complete/saml/" + name,
		AudienceURI:                 sp.EntityID,
		SignAuthnRequests:           keyStore != nil,
		IDPCertificateStore:         certStore,
		SPKeyStore:                  keyStore,
	}

	return &SAMLBackend{name: name, idp: idp, sp: provider}, nil
}

// Name implements Backend
func (b *SAMLBackend) Name() string {
	return "saml:" + b.name
}

// InitiateLogin redirects to the IdP with an AuthnRequest
func (b *SAMLBackend) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error {
	authURL, err := b.sp.BuildAuthURL(state)
	if err != nil {
		return fmt.Errorf("failed to build auth URL: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "saml_relay_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})

	http.Redirect(w, r, authURL, http.StatusFound)
	return nil
}

// HandleCallback validates the posted assertion and maps its
// attributes through the IdP's attr_* configuration.
func (b *SAMLBackend) HandleCallback(w http.ResponseWriter, r *http.Request) (*Identity, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	samlResponse := r.FormValue("SAMLResponse")
	if samlResponse == "" {
		return nil, fmt.Errorf("missing SAMLResponse parameter")
	}

	assertionInfo, err := b.sp.RetrieveAssertionInfo(samlResponse)
	if err != nil {
		return nil, fmt.Errorf("failed to validate assertion: %w", err)
	}
	if warn := assertionInfo.WarningInfo; warn != nil {
		if warn.InvalidTime {
			return nil, fmt.Errorf("assertion is outside its validity window")
		}
		if warn.NotInAudience {
			return nil, fmt.Errorf("assertion audience does not include this service provider")
		}
	}

	attrs := make(map[string][]string)
	for _, attr := range assertionInfo.Values {
		for _, v := range attr.Values {
			attrs[attr.Name] = append(attrs[attr.Name], v.Value)
		}
	}

	identity := identityFromSAMLAttrs(b.Name(), b.idp, attrs)
	if identity.ExternalID == "" {
		identity.ExternalID = assertionInfo.NameID
	}
	if identity.Username == "" {
		identity.Username = identity.Email
	}
	if identity.ExternalID == "" {
		return nil, fmt.Errorf("assertion carries no user identifier")
	}
	return identity, nil
}

// identityFromSAMLAttrs applies the attr_* mapping, falling back to
// the conventional attribute names when no override is configured.
func identityFromSAMLAttrs(backend string, idp *ssoconf.SAMLIdP, attrs map[string][]string) *Identity {
	first := func(configured, fallback string) string {
		name := configured
		if name == "" {
			name = fallback
		}
		if vs := attrs[name]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	return &Identity{
		Backend:    backend,
		ExternalID: first(idp.AttrUserPermanentID, "name_id"),
		Username:   first(idp.AttrUsername, "username"),
		Email:      first(idp.AttrEmail, "email"),
		FirstName:  first(idp.AttrFirstName, "first_name"),
		LastName:   first(idp.AttrLastName, "last_name"),
		Groups:     attrs["groups"],
		Attributes: attrs,
	}
}

func parsePEMCertificate(data string) (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("not PEM encoded")
	}
	return x509.ParseCertificate(block.Bytes)
}

func parsePEMPrivateKey(data string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("not PEM encoded")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}

// Metadata renders the service-provider metadata document consumed
// by identity provider administrators.
func (b *SAMLBackend) Metadata() ([]byte, error) {
	xml := fmt.Sprintf(`<?xml version="1.0"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"
                     entityID="%s">
  <md:SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <md:AssertionConsumerService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
                                 Location="%s"
                                 index="1"/>
  </md:SPSSODescriptor>
</md:EntityDescriptor>`,
		b.sp.ServiceProviderIssuer,
		b.sp.AssertionConsumerServiceURL)
	return []byte(xml), nil
}
