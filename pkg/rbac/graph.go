package rbac

import (
	"context"
	"sync"
)

// Graph is an in-memory role graph: direct grants plus parent edges.
// It backs tests and authorization dry-runs over transient objects.
// Safe for concurrent use.
type Graph struct {
	mu      sync.RWMutex
	members map[RoleID]map[int64]struct{}
	parents map[RoleID][]RoleID // child -> parents
}

// NewGraph creates an empty role graph
func NewGraph() *Graph {
	return &Graph{
		members: make(map[RoleID]map[int64]struct{}),
		parents: make(map[RoleID][]RoleID),
	}
}

// Grant adds a direct membership
func (g *Graph) Grant(role RoleID, userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.members[role] == nil {
		g.members[role] = make(map[int64]struct{})
	}
	g.members[role][userID] = struct{}{}
}

// Revoke removes a direct membership. Inherited membership through a
// parent role is unaffected.
func (g *Graph) Revoke(role RoleID, userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members[role], userID)
}

// AddParent records that membership in parent implies membership in child
func (g *Graph) AddParent(child, parent RoleID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.parents[child] = append(g.parents[child], parent)
}

// HasRole walks from the role up through its parents looking for a
// direct grant. Cycles in the graph are tolerated.
func (g *Graph) HasRole(ctx context.Context, userID int64, role RoleID) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[RoleID]struct{})
	return g.contains(userID, role, seen), nil
}

func (g *Graph) contains(userID int64, role RoleID, seen map[RoleID]struct{}) bool {
	if _, ok := seen[role]; ok {
		return false
	}
	seen[role] = struct{}{}
	if _, ok := g.members[role][userID]; ok {
		return true
	}
	for _, parent := range g.parents[role] {
		if g.contains(userID, parent, seen) {
			return true
		}
	}
	return false
}

// ObjectRole resolves a role id to its membership predicate
func (g *Graph) ObjectRole(role RoleID) Role {
	return graphRole{g: g, id: role}
}

type graphRole struct {
	g  *Graph
	id RoleID
}

func (r graphRole) ContainsUser(ctx context.Context, userID int64) (bool, error) {
	return r.g.HasRole(ctx, userID, r.id)
}

var _ Membership = (*Graph)(nil)
