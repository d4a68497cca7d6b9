package sso

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/helmsmanhq/helmsman/pkg/observability"
)

const stateCookie = "sso_state"

// Handlers exposes the login flow over HTTP
type Handlers struct {
	registry    *Registry
	provisioner *Provisioner
	sessions    *SessionStore
	log         *observability.Logger
}

// NewHandlers creates the HTTP surface for the login flow
func NewHandlers(registry *Registry, provisioner *Provisioner, sessions *SessionStore, log *observability.Logger) *Handlers {
	return &Handlers{registry: registry, provisioner: provisioner, sessions: sessions, log: log}
}

// Register mounts the login routes
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/sso/backends", h.ListBackends).Methods(http.MethodGet)
	r.HandleFunc("/sso/login/{backend}", h.Login).Methods(http.MethodGet)
	r.HandleFunc("/sso/complete/{backend}", h.Complete).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/sso/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/sso/metadata/{idp}", h.Metadata).Methods(http.MethodGet)
}

// ListBackends answers the names of the active backends
func (h *Handlers) ListBackends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"backends": h.registry.Names()})
}

// Login starts the flow for one backend
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	backend, err := h.registry.Lookup(mux.Vars(r)["backend"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})

	if err := backend.InitiateLogin(w, r, state); err != nil {
		h.log.WithError(err).Error("failed to initiate login")
		writeError(w, http.StatusBadGateway, "login could not be started")
	}
}

// Complete finishes the flow: validates the callback, provisions the
// account, and opens a session.
func (h *Handlers) Complete(w http.ResponseWriter, r *http.Request) {
	backend, err := h.registry.Lookup(mux.Vars(r)["backend"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	// OAuth2-family backends echo state in the query; verify against
	// the cookie. SAML carries RelayState instead.
	if state := r.URL.Query().Get("state"); state != "" {
		cookie, err := r.Cookie(stateCookie)
		if err != nil || cookie.Value != state {
			writeError(w, http.StatusForbidden, "state mismatch")
			return
		}
	}

	identity, err := backend.HandleCallback(w, r)
	if err != nil {
		h.log.WithError(err).Warn("login callback rejected")
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	user, err := h.provisioner.Login(r.Context(), identity)
	if err != nil {
		h.log.WithError(err).Error("failed to provision user")
		writeError(w, http.StatusInternalServerError, "account could not be provisioned")
		return
	}

	session, err := h.sessions.Create(r.Context(), user.ID, identity, r.FormValue("SessionIndex"))
	if err != nil {
		h.log.WithError(err).Error("failed to create session")
		writeError(w, http.StatusInternalServerError, "session could not be created")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "helmsman_session",
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// Logout ends the current session
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("helmsman_session")
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
		h.log.WithError(err).Warn("failed to delete session")
	}
	http.SetCookie(w, &http.Cookie{Name: "helmsman_session", Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// Metadata serves the SAML service-provider metadata for one IdP
func (h *Handlers) Metadata(w http.ResponseWriter, r *http.Request) {
	backend, err := h.registry.Lookup("saml:" + mux.Vars(r)["idp"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	saml, ok := backend.(*SAMLBackend)
	if !ok {
		writeError(w, http.StatusNotFound, "backend has no metadata")
		return
	}
	xml, err := saml.Metadata()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "metadata could not be generated")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write(xml)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
