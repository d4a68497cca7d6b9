// Package license gates features on the installed Helmsman license.
package license

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Feature names gated by license tier
const (
	FeatureLDAP           = "ldap"
	FeatureEnterpriseAuth = "enterprise_auth"
	FeatureSystemTracking = "system_tracking"
	FeatureMultiOrg       = "multiple_organizations"
)

// ErrLicense indicates the license forbids the attempted operation.
// Distinct from a validation failure: the input was fine, the
// installation is not entitled.
var ErrLicense = errors.New("license restriction")

// Gate is the feature-gate collaborator consulted by access decisions
// and SSO backend selection.
type Gate interface {
	// CheckLicense returns ErrLicense-wrapped detail when the license
	// is missing, expired, or over its host count.
	CheckLicense() error

	// FeatureEnabled reports whether the named feature is licensed.
	FeatureEnabled(name string) bool
}

// License describes an installed license
type License struct {
	CompanyName string    `json:"company_name"`
	InstanceKey string    `json:"instance_key"`
	Tier        string    `json:"tier"`
	HostLimit   int       `json:"host_limit"`
	ExpiresAt   time.Time `json:"expires_at"`
	Features    []string  `json:"features"`
}

// Load reads a license document from disk
func Load(path string) (*License, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read license file: %w", err)
	}
	var l License
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse license file: %w", err)
	}
	return &l, nil
}

// StaticGate is a Gate over a fixed license. Safe for concurrent use;
// the license may be swapped at runtime when a new one is applied.
type StaticGate struct {
	mu      sync.RWMutex
	license *License
}

// NewStaticGate creates a gate for the given license. A nil license
// means unlicensed: CheckLicense fails and no features are enabled.
func NewStaticGate(l *License) *StaticGate {
	return &StaticGate{license: l}
}

// Apply replaces the installed license
func (g *StaticGate) Apply(l *License) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.license = l
}

// CheckLicense validates the installed license
func (g *StaticGate) CheckLicense() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.license == nil {
		return fmt.Errorf("%w: no license installed", ErrLicense)
	}
	if !g.license.ExpiresAt.IsZero() && time.Now().After(g.license.ExpiresAt) {
		return fmt.Errorf("%w: license expired %s", ErrLicense, g.license.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// FeatureEnabled reports whether the named feature is licensed
func (g *StaticGate) FeatureEnabled(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.license == nil {
		return false
	}
	for _, f := range g.license.Features {
		if f == name {
			return true
		}
	}
	return false
}

var _ Gate = (*StaticGate)(nil)
