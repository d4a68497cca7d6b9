package access

import (
	"github.com/helmsmanhq/helmsman/pkg/objects"
)

// ChangedFields compares a proposed payload against the object's
// current foreign-key values and returns the names of declared fields
// that actually differ. current maps field name to the object's
// present identifier (nil when unset); specs declares the fields.
//
// A field is changed only if it is present in data AND its value,
// interpreted as an identifier, differs from the current one.
// Comparison is by identifier, never by object identity, so transient
// objects that were never persisted compare correctly. A value that
// cannot be interpreted as an identifier counts as changed; the
// subsequent CanAdd resolution turns it into a denial.
func ChangedFields(current map[string]*int64, data ChangeRequest, specs []FieldSpec) map[string]struct{} {
	changed := make(map[string]struct{})
	for _, spec := range specs {
		raw, present := data[spec.Name]
		if !present {
			continue
		}
		id, err := objects.CoerceID(raw)
		if err != nil {
			// Not interpretable as an id. nil proposed against nil
			// current is still "no change".
			if raw == nil && current[spec.Name] == nil {
				continue
			}
			changed[spec.Name] = struct{}{}
			continue
		}
		cur := current[spec.Name]
		if cur == nil || *cur != id {
			changed[spec.Name] = struct{}{}
		}
	}
	return changed
}

// ChangesAreNonSensitive reports whether the payload leaves every
// declared foreign-key field at its current value. Resubmitting a
// form that echoes back unchanged references is non-sensitive:
// viewing then re-saving an object without edits must never be
// rejected for lack of roles the user was not exercising.
func ChangesAreNonSensitive(current map[string]*int64, data ChangeRequest, specs []FieldSpec) bool {
	return len(ChangedFields(current, data, specs)) == 0
}

// mergeForAdd builds the payload handed to CanAdd during an update:
// the proposed value for every field present in data, plus the
// object's current identifier for each declared field the payload
// omits. The CanAdd scope therefore covers exactly the full declared
// field set, with fresh authorization demanded only where values
// changed.
func mergeForAdd(current map[string]*int64, data ChangeRequest, specs []FieldSpec) ChangeRequest {
	merged := data.Clone()
	if merged == nil {
		merged = make(ChangeRequest)
	}
	for _, spec := range specs {
		if _, present := merged[spec.Name]; present {
			continue
		}
		if cur := current[spec.Name]; cur != nil {
			merged[spec.Name] = *cur
		}
	}
	return merged
}
