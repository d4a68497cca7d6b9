package objects

import "time"

// Type identifies a kind of managed object for access-control dispatch.
type Type string

const (
	TypeOrganization Type = "organization"
	TypeProject      Type = "project"
	TypeInventory    Type = "inventory"
	TypeCredential   Type = "credential"
	TypeJobTemplate  Type = "job_template"
	TypeTeam         Type = "team"
)

// JobType represents the execution mode of a job template
type JobType string

const (
	JobTypeRun   JobType = "run"
	JobTypeCheck JobType = "check"
	JobTypeScan  JobType = "scan"
)

// CredentialKind represents the kind of secret a credential holds
type CredentialKind string

const (
	CredentialKindSSH   CredentialKind = "ssh"
	CredentialKindNet   CredentialKind = "net"
	CredentialKindAWS   CredentialKind = "aws"
	CredentialKindSCM   CredentialKind = "scm"
	CredentialKindVault CredentialKind = "vault"
)

// Organization is the top-level tenant boundary. Every other managed
// object belongs to exactly one organization, directly or through its
// references.
type Organization struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Project represents a source of playbooks/automation content
type Project struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	SCMType        string    `json:"scm_type,omitempty"`
	SCMURL         string    `json:"scm_url,omitempty"`
	CredentialID   *int64    `json:"credential_id,omitempty"` // SCM credential
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Inventory is a collection of hosts jobs run against
type Inventory struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Credential holds a secret used to reach machines, clouds, or SCM.
// Secrets themselves are never exposed through this package.
type Credential struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Kind           CredentialKind `json:"kind"`
	OrganizationID *int64         `json:"organization_id,omitempty"`
	UserID         *int64         `json:"user_id,omitempty"` // personal credential owner
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// JobTemplate binds a project, an inventory and credentials into a
// runnable definition. The foreign keys here are exactly the fields
// whose change requires re-authorization.
//
// A JobTemplate may be transient: constructed in memory with ID 0 (or
// with identifiers that have never been persisted) for authorization
// dry-runs. Nothing in this package requires a saved identity.
type JobTemplate struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	JobType             JobType   `json:"job_type"`
	ProjectID           *int64    `json:"project_id,omitempty"`
	InventoryID         *int64    `json:"inventory_id,omitempty"`
	CredentialID        *int64    `json:"credential_id,omitempty"`
	CloudCredentialID   *int64    `json:"cloud_credential_id,omitempty"`
	NetworkCredentialID *int64    `json:"network_credential_id,omitempty"`
	Playbook            string    `json:"playbook,omitempty"`
	Forks               int       `json:"forks,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// FieldValues serializes the template's declared foreign-key fields to
// a change-request mapping. Feeding the result back into a CanChange
// check must always be treated as a non-sensitive change.
func (jt *JobTemplate) FieldValues() map[string]any {
	out := map[string]any{
		"job_type": string(jt.JobType),
	}
	put := func(field string, id *int64) {
		if id != nil {
			out[field] = *id
		}
	}
	put("project", jt.ProjectID)
	put("inventory", jt.InventoryID)
	put("credential", jt.CredentialID)
	put("cloud_credential", jt.CloudCredentialID)
	put("network_credential", jt.NetworkCredentialID)
	return out
}
