// Package sso implements the external authentication backends and
// the login-time account plumbing around them.
//
// Backends are constructed from the validated providers document
// (pkg/config + pkg/ssoconf) and gated by the installed license. A
// backend authenticates against the identity provider and returns an
// Identity; it never touches Helmsman accounts itself.
//
// The Provisioner turns an Identity into an account: it creates or
// updates the user row, records the external-id mapping, and applies
// the configured organization and team maps as role grants through
// the membership store. Superuser and system-auditor flags follow the
// user-flags configuration on every login, so revoking a group at the
// identity provider revokes the flag here.
package sso
