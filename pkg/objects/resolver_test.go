package objects

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceID(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"int64", int64(42), 42, false},
		{"int", 42, 42, false},
		{"json float", float64(42), 42, false},
		{"fractional float", 42.5, 0, true},
		{"string", "42", 0, true},
		{"garbage string", "asdf", 0, true},
		{"bool", true, 0, true},
		{"nil", nil, 0, true},
		{"slice", []any{1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBadReference)
				assert.True(t, IsValidationFailure(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryStoreLookups(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	orgID := int64(1)

	s.AddOrganization(&Organization{ID: 1, Name: "Engineering"})
	s.AddProject(&Project{ID: 10, Name: "deploy", OrganizationID: &orgID})

	org, err := s.GetOrganization(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Engineering", org.Name)

	proj, err := s.GetProject(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, proj.OrganizationID)
	assert.Equal(t, int64(1), *proj.OrganizationID)

	_, err = s.GetProject(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsValidationFailure(err))

	_, err = s.GetInventory(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetCredential(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetJobTemplate(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobTemplateFieldValues(t *testing.T) {
	projID, invID := int64(10), int64(20)
	jt := &JobTemplate{
		ID:          40,
		JobType:     JobTypeRun,
		ProjectID:   &projID,
		InventoryID: &invID,
	}

	values := jt.FieldValues()
	assert.Equal(t, "run", values["job_type"])
	assert.Equal(t, projID, values["project"])
	assert.Equal(t, invID, values["inventory"])
	// Unset references stay absent instead of serializing as nil.
	_, present := values["credential"]
	assert.False(t, present)
}
