package access

import (
	"context"

	"github.com/helmsmanhq/helmsman/pkg/license"
	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

// jobTemplateFields are the foreign-key fields of a job template that
// require authorization when referenced. Referencing any of them
// requires use_role on the referenced object.
var jobTemplateFields = []FieldSpec{
	{Name: "project", Type: objects.TypeProject, Role: rbac.RoleUse},
	{Name: "inventory", Type: objects.TypeInventory, Role: rbac.RoleUse},
	{Name: "credential", Type: objects.TypeCredential, Role: rbac.RoleUse},
	{Name: "cloud_credential", Type: objects.TypeCredential, Role: rbac.RoleUse},
	{Name: "network_credential", Type: objects.TypeCredential, Role: rbac.RoleUse},
}

// JobTemplatePolicy authorizes job template operations
type JobTemplatePolicy struct {
	base
}

// NewJobTemplatePolicy creates the job template policy
func NewJobTemplatePolicy(deps Collaborators) *JobTemplatePolicy {
	return &JobTemplatePolicy{base{deps: deps}}
}

// CanAdd authorizes creation. The user must hold use_role on every
// referenced object. Scan job templates are license-gated and exempt
// from the machine credential requirement, since scan jobs may run
// without one.
func (p *JobTemplatePolicy) CanAdd(ctx context.Context, user User, data ChangeRequest) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}

	scan := isScan(data)
	if scan {
		// License state is checked before any role evaluation.
		if ok, err := p.checkLicense(); !ok {
			return false, err
		}
		if !p.deps.Gate.FeatureEnabled(license.FeatureSystemTracking) {
			return false, nil
		}
	}

	ok, err := p.checkFieldRoles(ctx, user, data, jobTemplateFields)
	if !ok {
		return false, err
	}

	if scan {
		// A scan template needs something to scan.
		_, hasProject := data["project"]
		_, hasInventory := data["inventory"]
		if !hasProject && !hasInventory {
			return false, nil
		}
		return true, nil
	}

	// Non-scan templates must reference a project and a machine
	// credential at creation time.
	if _, hasProject := data["project"]; !hasProject {
		return false, nil
	}
	if _, hasCredential := data["credential"]; !hasCredential {
		return false, nil
	}
	return true, nil
}

// CanChange authorizes an update. Editing a template requires
// admin_role on it (or an organization admin ancestor); with that held,
// the payload is diffed against the template's current foreign keys: if
// nothing sensitive changed, the update is allowed without fresh
// reference checks (resubmitting an unmodified form must never demand
// use_role the user was not exercising). Otherwise the user must be
// able to read the template and pass CanAdd over the payload merged
// with the current values of every unchanged declared field.
func (p *JobTemplatePolicy) CanChange(ctx context.Context, user User, obj any, data ChangeRequest) (bool, error) {
	jt, ok := obj.(*objects.JobTemplate)
	if !ok {
		return false, wrongType(objects.TypeJobTemplate, obj)
	}
	if data == nil {
		return p.CanRead(ctx, user, obj)
	}

	admin, err := p.hasRole(ctx, user, objects.TypeJobTemplate, jt.ID, rbac.RoleAdmin)
	if err != nil {
		return false, err
	}
	if !admin {
		admin, err = p.ancestorOrgAdmin(ctx, user, jt)
		if err != nil || !admin {
			return false, err
		}
	}

	current := jobTemplateFKValues(jt)
	if ChangesAreNonSensitive(current, data, jobTemplateFields) {
		// Flipping an existing template to a scan job is still a
		// licensed transition even though no references moved.
		if isScan(data) && jt.JobType != objects.JobTypeScan {
			if ok, err := p.checkLicense(); !ok {
				return false, err
			}
			if !p.deps.Gate.FeatureEnabled(license.FeatureSystemTracking) {
				return false, nil
			}
		}
		return true, nil
	}

	canRead, err := p.CanRead(ctx, user, obj)
	if err != nil || !canRead {
		return false, err
	}
	return p.CanAdd(ctx, user, mergeForAdd(current, data, jobTemplateFields))
}

// CanRead authorizes viewing: any direct role on the template, or an
// organization-level role inherited through the template's project or
// inventory.
func (p *JobTemplatePolicy) CanRead(ctx context.Context, user User, obj any) (bool, error) {
	jt, ok := obj.(*objects.JobTemplate)
	if !ok {
		return false, wrongType(objects.TypeJobTemplate, obj)
	}

	ok, err := p.hasAnyRole(ctx, user, objects.TypeJobTemplate, jt.ID,
		rbac.RoleRead, rbac.RoleExecute, rbac.RoleAdmin)
	if err != nil || ok {
		return ok, err
	}
	return p.ancestorOrgRole(ctx, user, jt)
}

// CanDelete requires admin_role on the template itself or an
// organization admin ancestor.
func (p *JobTemplatePolicy) CanDelete(ctx context.Context, user User, obj any) (bool, error) {
	jt, ok := obj.(*objects.JobTemplate)
	if !ok {
		return false, wrongType(objects.TypeJobTemplate, obj)
	}
	ok, err := p.hasRole(ctx, user, objects.TypeJobTemplate, jt.ID, rbac.RoleAdmin)
	if err != nil || ok {
		return ok, err
	}
	return p.ancestorOrgAdmin(ctx, user, jt)
}

// ancestorOrgRole checks organization viewing roles through the
// template's project and inventory. Unresolvable references are
// skipped: a transient template may point at objects that do not
// exist yet.
func (p *JobTemplatePolicy) ancestorOrgRole(ctx context.Context, user User, jt *objects.JobTemplate) (bool, error) {
	for _, orgID := range p.ancestorOrgIDs(ctx, jt) {
		ok, err := p.orgAncestorRead(ctx, user, &orgID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (p *JobTemplatePolicy) ancestorOrgAdmin(ctx context.Context, user User, jt *objects.JobTemplate) (bool, error) {
	for _, orgID := range p.ancestorOrgIDs(ctx, jt) {
		ok, err := p.hasRole(ctx, user, objects.TypeOrganization, orgID, rbac.RoleAdmin)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (p *JobTemplatePolicy) ancestorOrgIDs(ctx context.Context, jt *objects.JobTemplate) []int64 {
	var orgIDs []int64
	if jt.ProjectID != nil {
		if proj, err := p.deps.Resolver.GetProject(ctx, *jt.ProjectID); err == nil && proj.OrganizationID != nil {
			orgIDs = append(orgIDs, *proj.OrganizationID)
		}
	}
	if jt.InventoryID != nil {
		if inv, err := p.deps.Resolver.GetInventory(ctx, *jt.InventoryID); err == nil && inv.OrganizationID != nil {
			orgIDs = append(orgIDs, *inv.OrganizationID)
		}
	}
	return orgIDs
}

func jobTemplateFKValues(jt *objects.JobTemplate) map[string]*int64 {
	return map[string]*int64{
		"project":            jt.ProjectID,
		"inventory":          jt.InventoryID,
		"credential":         jt.CredentialID,
		"cloud_credential":   jt.CloudCredentialID,
		"network_credential": jt.NetworkCredentialID,
	}
}

func isScan(data ChangeRequest) bool {
	jobType, _ := data["job_type"].(string)
	return objects.JobType(jobType) == objects.JobTypeScan
}

var _ Policy = (*JobTemplatePolicy)(nil)
