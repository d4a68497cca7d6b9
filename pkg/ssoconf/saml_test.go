package ssoconf

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"
)

// testCertPEM returns a freshly generated self-signed certificate in
// PEM form.
func testCertPEM(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "idp.example.org"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestParseOrgInfo(t *testing.T) {
	info, err := ParseOrgInfo(map[string]any{
		"en-US": map[string]any{
			"name":        "helmsman",
			"displayname": "Helmsman",
			"url":         "https://helmsman.example.org",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info["en-US"].DisplayName != "Helmsman" {
		t.Errorf("displayname = %q, want Helmsman", info["en-US"].DisplayName)
	}

	if _, err := ParseOrgInfo(map[string]any{"english": map[string]any{}}); err == nil {
		t.Error("expected error for invalid language code")
	}

	_, err = ParseOrgInfo(map[string]any{"en": map[string]any{"name": "helmsman"}})
	if err == nil {
		t.Fatal("expected errors for missing keys")
	}
	if len(err.(FieldErrors)) != 2 {
		t.Errorf("got %d errors, want 2 (displayname and url)", len(err.(FieldErrors)))
	}
}

func TestParseContact(t *testing.T) {
	contact, err := ParseContact(map[string]any{
		"givenName":    "Ops Team",
		"emailAddress": "ops@example.org",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contact.EmailAddress != "ops@example.org" {
		t.Errorf("emailAddress = %q", contact.EmailAddress)
	}

	if _, err := ParseContact(map[string]any{"givenName": "Ops Team"}); err == nil {
		t.Error("expected error for missing emailAddress")
	}
}

func TestParseEnabledIdPs(t *testing.T) {
	cert := testCertPEM(t)
	idps, err := ParseEnabledIdPs(map[string]any{
		"okta": map[string]any{
			"entity_id":     "https://idp.example.org/saml",
			"url":           "https://idp.example.org/sso",
			"x509cert":      cert,
			"attr_username": "login",
			"attr_email":    "mail",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idps["okta"].AttrUsername != "login" {
		t.Errorf("attr_username = %q, want login", idps["okta"].AttrUsername)
	}

	if _, err := ParseEnabledIdPs(map[string]any{"okta": map[string]any{"entity_id": "x"}}); err == nil {
		t.Error("expected errors for missing url and x509cert")
	}
	if _, err := ParseEnabledIdPs(map[string]any{
		"okta": map[string]any{"entity_id": "x", "url": "not a url", "x509cert": cert},
	}); err == nil {
		t.Error("expected error for malformed SSO URL")
	}
}

func TestParseEnabledIdPsRejectsBadCertificate(t *testing.T) {
	_, err := ParseEnabledIdPs(map[string]any{
		"okta": map[string]any{
			"entity_id": "https://idp.example.org/saml",
			"url":       "https://idp.example.org/sso",
			"x509cert":  "this is not a certificate!",
		},
	})
	if err == nil {
		t.Fatal("expected error for garbage x509cert")
	}
	es := err.(FieldErrors)
	if len(es) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(es), err)
	}
	if es[0].Path != "okta.x509cert" || es[0].Rule != "invalid_certificate" {
		t.Errorf("error = %s/%s, want okta.x509cert/invalid_certificate", es[0].Path, es[0].Rule)
	}
}

func TestValidateX509Cert(t *testing.T) {
	pemCert := testCertPEM(t)
	if err := ValidateX509Cert(pemCert); err != nil {
		t.Errorf("PEM certificate rejected: %v", err)
	}

	// the same certificate with headers stripped, as IdP metadata
	// usually embeds it
	block, _ := pem.Decode([]byte(pemCert))
	bare := base64.StdEncoding.EncodeToString(block.Bytes)
	if err := ValidateX509Cert(bare); err != nil {
		t.Errorf("bare base64 DER rejected: %v", err)
	}
	wrapped := strings.Join([]string{bare[:20], bare[20:]}, "\n")
	if err := ValidateX509Cert(wrapped); err != nil {
		t.Errorf("line-wrapped base64 DER rejected: %v", err)
	}

	for _, bad := range []string{
		"-----BEGIN CERTIFICATE-----\ngarbage\n-----END CERTIFICATE-----",
		"dGhpcyBpcyBub3QgREVS", // valid base64, not a certificate
		"%%%%",
	} {
		if err := ValidateX509Cert(bad); err == nil {
			t.Errorf("ValidateX509Cert(%q) = nil, want error", bad)
		}
	}
}

func TestParseSecuritySettings(t *testing.T) {
	if _, err := ParseSecuritySettings(map[string]any{
		"wantAssertionsSigned": true,
		"signatureAlgorithm":   "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256",
	}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseSecuritySettings(map[string]any{"wantEverything": true}); err == nil {
		t.Error("expected error for unknown security setting")
	}
}

func TestParseSAMLOrgAttr(t *testing.T) {
	attr, err := ParseSAMLOrgAttr(map[string]any{
		"saml_attr":       "memberOf",
		"saml_admin_attr": "adminOf",
		"remove":          true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attr.SAMLAttr != "memberOf" || !attr.Remove {
		t.Errorf("parsed = %+v", attr)
	}

	if _, err := ParseSAMLOrgAttr(map[string]any{"saml_attrs": "typo"}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestParseSAMLTeamAttr(t *testing.T) {
	attr, err := ParseSAMLTeamAttr(map[string]any{
		"saml_attr": "groups",
		"team_org_map": []any{
			map[string]any{"team": "Ops", "organization": "Engineering"},
			map[string]any{"team": "SRE", "organization": "Engineering", "team_alias": "Reliability"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attr.TeamOrgMap) != 2 {
		t.Fatalf("len(TeamOrgMap) = %d, want 2", len(attr.TeamOrgMap))
	}
	if attr.TeamOrgMap[1].TeamAlias != "Reliability" {
		t.Errorf("team_alias = %q, want Reliability", attr.TeamOrgMap[1].TeamAlias)
	}

	_, err = ParseSAMLTeamAttr(map[string]any{
		"team_org_map": []any{map[string]any{"team": "Ops"}},
	})
	if err == nil {
		t.Fatal("expected error for mapping without organization")
	}
	es := err.(FieldErrors)
	if es[0].Path != "team_org_map[0]" {
		t.Errorf("error path = %q, want team_org_map[0]", es[0].Path)
	}
}

func TestParseSAMLUserFlagsAttr(t *testing.T) {
	attr, err := ParseSAMLUserFlagsAttr(map[string]any{
		"is_superuser_attr":  "roles",
		"is_superuser_value": []any{"admin", "root"},
		"remove_superusers":  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attr.SuperuserValue) != 2 || !attr.RemoveSuperusers {
		t.Errorf("parsed = %+v", attr)
	}

	// a single string value is promoted to a one-element list
	attr, err = ParseSAMLUserFlagsAttr(map[string]any{"is_system_auditor_value": "auditor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attr.SystemAuditorValue) != 1 {
		t.Errorf("SystemAuditorValue = %v, want one element", attr.SystemAuditorValue)
	}

	if _, err := ParseSAMLUserFlagsAttr(map[string]any{"is_staff_attr": "x"}); err == nil {
		t.Error("expected error for unknown flag key")
	}
}
