package api

import (
	"encoding/json"
	"net/http"

	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

type grantRequest struct {
	ObjectType objects.Type  `json:"object_type"`
	ObjectID   int64         `json:"object_id"`
	Role       rbac.RoleName `json:"role"`
	UserID     int64         `json:"user_id"`
	GrantedBy  *int64        `json:"granted_by,omitempty"`
}

func (r grantRequest) roleID() rbac.RoleID {
	return rbac.RoleID{ObjectType: r.ObjectType, ObjectID: r.ObjectID, Name: r.Role}
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.ObjectType == "" || req.Role == "" || req.UserID == 0 {
		s.writeError(w, http.StatusBadRequest, "object_type, role and user_id are required")
		return
	}

	grant := &rbac.Grant{Role: req.roleID(), UserID: req.UserID, GrantedBy: req.GrantedBy}
	if err := s.roles.Grant(r.Context(), grant); err != nil {
		s.log.WithError(err).Error("failed to record grant")
		s.writeError(w, http.StatusInternalServerError, "grant could not be recorded")
		return
	}
	s.writeJSON(w, http.StatusCreated, grant)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.roles.Revoke(r.Context(), req.roleID(), req.UserID); err != nil {
		s.log.WithError(err).Error("failed to revoke grant")
		s.writeError(w, http.StatusInternalServerError, "grant could not be revoked")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
