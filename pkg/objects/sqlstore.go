package objects

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLStore is a Resolver backed by database/sql. Production uses
// Postgres (lib/pq); tests run against sqlmock or sqlite3.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a resolver over the given database handle
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// GetOrganization returns the organization with the given id
func (s *SQLStore) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM organizations WHERE id = $1
	`
	var o Organization
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.Name, &o.Description, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &o, nil
}

// GetProject returns the project with the given id
func (s *SQLStore) GetProject(ctx context.Context, id int64) (*Project, error) {
	query := `
		SELECT id, name, description, organization_id, scm_type, scm_url, credential_id, created_at, updated_at
		FROM projects WHERE id = $1
	`
	var p Project
	var orgID, credID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &orgID, &p.SCMType, &p.SCMURL, &credID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.OrganizationID = nullableID(orgID)
	p.CredentialID = nullableID(credID)
	return &p, nil
}

// GetInventory returns the inventory with the given id
func (s *SQLStore) GetInventory(ctx context.Context, id int64) (*Inventory, error) {
	query := `
		SELECT id, name, description, organization_id, created_at, updated_at
		FROM inventories WHERE id = $1
	`
	var inv Inventory
	var orgID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID, &inv.Name, &inv.Description, &orgID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	inv.OrganizationID = nullableID(orgID)
	return &inv, nil
}

// GetCredential returns the credential with the given id
func (s *SQLStore) GetCredential(ctx context.Context, id int64) (*Credential, error) {
	query := `
		SELECT id, name, description, kind, organization_id, user_id, created_at, updated_at
		FROM credentials WHERE id = $1
	`
	var c Credential
	var orgID, userID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Description, &c.Kind, &orgID, &userID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("credential %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	c.OrganizationID = nullableID(orgID)
	c.UserID = nullableID(userID)
	return &c, nil
}

// GetJobTemplate returns the job template with the given id
func (s *SQLStore) GetJobTemplate(ctx context.Context, id int64) (*JobTemplate, error) {
	query := `
		SELECT id, name, description, job_type, project_id, inventory_id,
		       credential_id, cloud_credential_id, network_credential_id,
		       playbook, forks, created_at, updated_at
		FROM job_templates WHERE id = $1
	`
	var jt JobTemplate
	var projID, invID, credID, cloudID, netID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&jt.ID, &jt.Name, &jt.Description, &jt.JobType, &projID, &invID,
		&credID, &cloudID, &netID,
		&jt.Playbook, &jt.Forks, &jt.CreatedAt, &jt.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job template %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job template: %w", err)
	}
	jt.ProjectID = nullableID(projID)
	jt.InventoryID = nullableID(invID)
	jt.CredentialID = nullableID(credID)
	jt.CloudCredentialID = nullableID(cloudID)
	jt.NetworkCredentialID = nullableID(netID)
	return &jt, nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

var _ Resolver = (*SQLStore)(nil)
