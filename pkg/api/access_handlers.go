package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/helmsmanhq/helmsman/pkg/access"
	"github.com/helmsmanhq/helmsman/pkg/objects"
)

// checkRequest is the body of every decision endpoint
type checkRequest struct {
	User access.User          `json:"user"`
	Data access.ChangeRequest `json:"data,omitempty"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

func (s *Server) handleCanAdd(w http.ResponseWriter, r *http.Request) {
	objType, req, ok := s.decodeCheck(w, r)
	if !ok {
		return
	}

	allowed, err := s.dispatcher.CanAdd(r.Context(), req.User, objType, req.Data)
	s.respondDecision(w, r, allowed, err)
}

func (s *Server) handleCanChange(w http.ResponseWriter, r *http.Request) {
	objType, req, ok := s.decodeCheck(w, r)
	if !ok {
		return
	}
	obj, ok := s.fetchObject(w, r, objType)
	if !ok {
		return
	}

	allowed, err := s.dispatcher.CanChange(r.Context(), req.User, objType, obj, req.Data)
	s.respondDecision(w, r, allowed, err)
}

func (s *Server) handleCanRead(w http.ResponseWriter, r *http.Request) {
	objType, req, ok := s.decodeCheck(w, r)
	if !ok {
		return
	}
	obj, ok := s.fetchObject(w, r, objType)
	if !ok {
		return
	}

	allowed, err := s.dispatcher.CanRead(r.Context(), req.User, objType, obj)
	s.respondDecision(w, r, allowed, err)
}

func (s *Server) handleCanDelete(w http.ResponseWriter, r *http.Request) {
	objType, req, ok := s.decodeCheck(w, r)
	if !ok {
		return
	}
	obj, ok := s.fetchObject(w, r, objType)
	if !ok {
		return
	}

	allowed, err := s.dispatcher.CanDelete(r.Context(), req.User, objType, obj)
	s.respondDecision(w, r, allowed, err)
}

// decodeCheck parses the object type from the route and the check
// body. An unregistered type is a 404, a malformed body a 400.
func (s *Server) decodeCheck(w http.ResponseWriter, r *http.Request) (objects.Type, *checkRequest, bool) {
	objType := objects.Type(mux.Vars(r)["type"])
	if _, err := s.dispatcher.Policy(objType); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return "", nil, false
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return "", nil, false
	}
	return objType, &req, true
}

// fetchObject loads the decision target named in the route
func (s *Server) fetchObject(w http.ResponseWriter, r *http.Request, objType objects.Type) (any, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed object id")
		return nil, false
	}

	obj, err := s.resolveObject(r.Context(), objType, id)
	if err != nil {
		if errors.Is(err, objects.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "object not found")
		} else {
			s.log.WithError(err).Error("failed to load object")
			s.writeError(w, http.StatusInternalServerError, "object lookup failed")
		}
		return nil, false
	}
	return obj, true
}

func (s *Server) resolveObject(ctx context.Context, objType objects.Type, id int64) (any, error) {
	switch objType {
	case objects.TypeOrganization:
		return s.resolver.GetOrganization(ctx, id)
	case objects.TypeProject:
		return s.resolver.GetProject(ctx, id)
	case objects.TypeInventory:
		return s.resolver.GetInventory(ctx, id)
	case objects.TypeCredential:
		return s.resolver.GetCredential(ctx, id)
	case objects.TypeJobTemplate:
		return s.resolver.GetJobTemplate(ctx, id)
	default:
		return nil, objects.ErrNotFound
	}
}

// respondDecision maps a decision to a status: 200 for permitted, 403
// for denied, 500 when membership or object lookup failed and no
// answer exists.
func (s *Server) respondDecision(w http.ResponseWriter, r *http.Request, allowed bool, err error) {
	if err != nil {
		s.log.WithError(err).Error("decision failed")
		s.writeError(w, http.StatusInternalServerError, "decision could not be evaluated")
		return
	}
	if !allowed {
		s.writeJSON(w, http.StatusForbidden, checkResponse{Allowed: false})
		return
	}
	s.writeJSON(w, http.StatusOK, checkResponse{Allowed: true})
}
