package access

import (
	"context"
	"fmt"

	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/observability"
)

// Action labels a capability for dispatch and metrics
type Action string

const (
	ActionAdd    Action = "add"
	ActionChange Action = "change"
	ActionRead   Action = "read"
	ActionDelete Action = "delete"
)

// Metrics receives the outcome of every dispatched decision
type Metrics interface {
	RecordDecision(objType objects.Type, action Action, allowed bool)
}

// NopMetrics discards decision outcomes
type NopMetrics struct{}

// RecordDecision implements Metrics
func (NopMetrics) RecordDecision(objects.Type, Action, bool) {}

// Dispatcher routes checks to the policy registered for an object
// type. The registry is built once at startup; there is no runtime
// type introspection. Every entry point is wrapped by the superuser
// guard, so no policy is reachable without passing through it.
type Dispatcher struct {
	policies map[objects.Type]Policy
	metrics  Metrics
	log      *observability.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithMetrics attaches a decision metrics sink
func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger attaches a structured logger; denials are logged at debug
func WithLogger(l *observability.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher builds the full policy registry over the given
// collaborators.
func NewDispatcher(deps Collaborators, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		policies: map[objects.Type]Policy{
			objects.TypeOrganization: NewOrganizationPolicy(deps),
			objects.TypeProject:      NewProjectPolicy(deps),
			objects.TypeInventory:    NewInventoryPolicy(deps),
			objects.TypeCredential:   NewCredentialPolicy(deps),
			objects.TypeJobTemplate:  NewJobTemplatePolicy(deps),
		},
		metrics: NopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy returns the registered policy for the type tag
func (d *Dispatcher) Policy(t objects.Type) (Policy, error) {
	p, ok := d.policies[t]
	if !ok {
		return nil, fmt.Errorf("no access policy registered for object type %q", t)
	}
	return p, nil
}

// CanAdd dispatches a creation check through the superuser guard
func (d *Dispatcher) CanAdd(ctx context.Context, user User, t objects.Type, data ChangeRequest) (bool, error) {
	p, err := d.Policy(t)
	if err != nil {
		return false, err
	}
	allowed, err := GuardAdd(p.CanAdd)(ctx, user, data)
	d.record(user, t, ActionAdd, allowed, err)
	return allowed, err
}

// CanChange dispatches an update check through the superuser guard
func (d *Dispatcher) CanChange(ctx context.Context, user User, t objects.Type, obj any, data ChangeRequest) (bool, error) {
	p, err := d.Policy(t)
	if err != nil {
		return false, err
	}
	allowed, err := GuardChange(p.CanChange)(ctx, user, obj, data)
	d.record(user, t, ActionChange, allowed, err)
	return allowed, err
}

// CanRead dispatches a read check. System auditors hold read-only
// access to everything; like the superuser short-circuit, that is
// decided here, visibly, before any policy runs.
func (d *Dispatcher) CanRead(ctx context.Context, user User, t objects.Type, obj any) (bool, error) {
	p, err := d.Policy(t)
	if err != nil {
		return false, err
	}
	check := GuardObj(p.CanRead)
	if user.IsSystemAuditor {
		d.record(user, t, ActionRead, true, nil)
		return true, nil
	}
	allowed, err := check(ctx, user, obj)
	d.record(user, t, ActionRead, allowed, err)
	return allowed, err
}

// CanDelete dispatches a delete check through the superuser guard
func (d *Dispatcher) CanDelete(ctx context.Context, user User, t objects.Type, obj any) (bool, error) {
	p, err := d.Policy(t)
	if err != nil {
		return false, err
	}
	allowed, err := GuardObj(p.CanDelete)(ctx, user, obj)
	d.record(user, t, ActionDelete, allowed, err)
	return allowed, err
}

func (d *Dispatcher) record(user User, t objects.Type, action Action, allowed bool, err error) {
	if err == nil {
		d.metrics.RecordDecision(t, action, allowed)
	}
	if d.log != nil && err == nil && !allowed {
		d.log.WithFields(map[string]interface{}{
			"user_id":     user.ID,
			"object_type": string(t),
			"action":      string(action),
		}).Debug("access denied")
	}
}
