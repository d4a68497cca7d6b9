package objects

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Resolver. It backs authorization
// dry-runs against transient objects and is the fixture store for
// tests. Safe for concurrent use.
type MemoryStore struct {
	mu            sync.RWMutex
	organizations map[int64]*Organization
	projects      map[int64]*Project
	inventories   map[int64]*Inventory
	credentials   map[int64]*Credential
	jobTemplates  map[int64]*JobTemplate
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		organizations: make(map[int64]*Organization),
		projects:      make(map[int64]*Project),
		inventories:   make(map[int64]*Inventory),
		credentials:   make(map[int64]*Credential),
		jobTemplates:  make(map[int64]*JobTemplate),
	}
}

// AddOrganization registers an organization under its ID
func (s *MemoryStore) AddOrganization(o *Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizations[o.ID] = o
}

// AddProject registers a project under its ID
func (s *MemoryStore) AddProject(p *Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

// AddInventory registers an inventory under its ID
func (s *MemoryStore) AddInventory(i *Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventories[i.ID] = i
}

// AddCredential registers a credential under its ID
func (s *MemoryStore) AddCredential(c *Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[c.ID] = c
}

// AddJobTemplate registers a job template under its ID
func (s *MemoryStore) AddJobTemplate(jt *JobTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobTemplates[jt.ID] = jt
}

// GetOrganization returns the organization with the given id
func (s *MemoryStore) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o, ok := s.organizations[id]; ok {
		return o, nil
	}
	return nil, fmt.Errorf("organization %d: %w", id, ErrNotFound)
}

// GetProject returns the project with the given id
func (s *MemoryStore) GetProject(ctx context.Context, id int64) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.projects[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
}

// GetInventory returns the inventory with the given id
func (s *MemoryStore) GetInventory(ctx context.Context, id int64) (*Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.inventories[id]; ok {
		return i, nil
	}
	return nil, fmt.Errorf("inventory %d: %w", id, ErrNotFound)
}

// GetCredential returns the credential with the given id
func (s *MemoryStore) GetCredential(ctx context.Context, id int64) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.credentials[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("credential %d: %w", id, ErrNotFound)
}

// GetJobTemplate returns the job template with the given id
func (s *MemoryStore) GetJobTemplate(ctx context.Context, id int64) (*JobTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if jt, ok := s.jobTemplates[id]; ok {
		return jt, nil
	}
	return nil, fmt.Errorf("job template %d: %w", id, ErrNotFound)
}

var _ Resolver = (*MemoryStore)(nil)
