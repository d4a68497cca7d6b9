// Package config loads Helmsman configuration.
//
// Service settings come from environment variables with HELMSMAN_
// prefixes and sensible defaults. Authentication providers live in a
// separate YAML document whose sections are validated by pkg/ssoconf
// before they are accepted; ProvidersWatcher reloads that file on
// change and keeps the last valid document when an edit fails
// validation.
package config
