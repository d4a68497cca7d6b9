// Package ssoconf validates and normalizes external authentication
// provider configuration: LDAP, RADIUS, SAML, and social-login
// organization/team mappings.
//
// Configuration arrives as decoded JSON/YAML from administrators, so
// every field has two halves: Parse* functions turn raw values into
// typed internal values, accumulating FieldErrors with key paths
// rather than stopping at the first problem, and Display methods turn
// internal values back into their serializable form. Secrets (RADIUS
// shared secret, SAML private keys) never round-trip through Display.
//
// This package performs no network I/O and holds no state; protocol
// handshakes live elsewhere. The only cross-cutting dependency is the
// license gate, consulted when computing which authentication
// backends may be enabled.
package ssoconf
