package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmsmanhq/helmsman/pkg/access"
	"github.com/helmsmanhq/helmsman/pkg/license"
	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/observability"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

// testServer wires a server over in-memory collaborators: one
// organization owning a project, with user 2 holding the project
// admin role.
func testServer(t *testing.T) (*Server, *rbac.Graph) {
	t.Helper()

	store := objects.NewMemoryStore()
	orgID := int64(1)
	store.AddOrganization(&objects.Organization{ID: orgID, Name: "Engineering"})
	store.AddProject(&objects.Project{ID: 10, Name: "deploy", OrganizationID: &orgID})

	graph := rbac.NewGraph()
	graph.Grant(rbac.RoleID{ObjectType: objects.TypeProject, ObjectID: 10, Name: rbac.RoleAdmin}, 2)

	gate := license.NewStaticGate(&license.License{ExpiresAt: time.Now().Add(time.Hour)})
	dispatcher := access.NewDispatcher(access.Collaborators{
		Membership: graph,
		Resolver:   store,
		Gate:       gate,
	})

	log := observability.NewLogger(observability.ErrorLevel, os.Stderr)
	return NewServer(dispatcher, store, gate, log, nil), graph
}

func postCheck(t *testing.T, s *Server, path string, user access.User, data access.ChangeRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]any{"user": user, "data": data})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body)))
	return rec
}

func TestReadAllowedForRoleHolder(t *testing.T) {
	s, _ := testServer(t)

	rec := postCheck(t, s, "/api/v1/access/project/10/read", access.User{ID: 2}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Allowed bool `json:"allowed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Allowed)
}

func TestDenialAnswers403(t *testing.T) {
	s, _ := testServer(t)

	rec := postCheck(t, s, "/api/v1/access/project/10/read", access.User{ID: 99}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":false`)
}

func TestSuperuserBypassesPolicies(t *testing.T) {
	s, _ := testServer(t)

	rec := postCheck(t, s, "/api/v1/access/project/10/delete",
		access.User{ID: 99, IsSuperuser: true}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingObjectAnswers404(t *testing.T) {
	s, _ := testServer(t)

	rec := postCheck(t, s, "/api/v1/access/project/404/read", access.User{ID: 2}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownTypeAnswers404(t *testing.T) {
	s, _ := testServer(t)

	rec := postCheck(t, s, "/api/v1/access/widget/add", access.User{ID: 2}, access.ChangeRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedBodyAnswers400(t *testing.T) {
	s, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/access/project/add", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddRequiresOrganizationRole(t *testing.T) {
	s, graph := testServer(t)

	data := access.ChangeRequest{"organization": float64(1)}

	rec := postCheck(t, s, "/api/v1/access/project/add", access.User{ID: 5}, data)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	graph.Grant(rbac.RoleID{
		ObjectType: objects.TypeOrganization, ObjectID: 1, Name: rbac.RoleAdmin,
	}, 5)
	rec = postCheck(t, s, "/api/v1/access/project/add", access.User{ID: 5}, data)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateProvidersEndpoint(t *testing.T) {
	s, _ := testServer(t)

	valid := "ldap:\n  server_uri: ldap://ldap.example.org\n"
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/providers/validate", bytes.NewReader([]byte(valid))))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	invalid := "ldap:\n  server_uri: ftp://nope\n"
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/providers/validate", bytes.NewReader([]byte(invalid))))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Errors []struct {
			Path string `json:"path"`
			Rule string `json:"rule"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "ldap.server_uri", resp.Errors[0].Path)
}

func TestRoleEndpointsAbsentWithoutStore(t *testing.T) {
	s, _ := testServer(t)

	body := []byte(fmt.Sprintf(`{"object_type":"project","object_id":10,"role":%q,"user_id":3}`, rbac.RoleAdmin))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/roles/grants", bytes.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
