package api

import (
	"io"
	"net/http"

	"github.com/helmsmanhq/helmsman/pkg/config"
	"github.com/helmsmanhq/helmsman/pkg/ssoconf"
)

// fieldErrorBody is one entry in a 400 validation response
type fieldErrorBody struct {
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// handleValidateProviders validates a providers YAML document without
// installing it, answering the enabled backends on success and the
// accumulated field errors on failure.
func (s *Server) handleValidateProviders(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	providers, err := config.ParseProviders(raw)
	if err != nil {
		if es, ok := err.(ssoconf.FieldErrors); ok {
			body := make([]fieldErrorBody, len(es))
			for i, fe := range es {
				body[i] = fieldErrorBody{Path: fe.Path, Rule: fe.Rule, Message: fe.Message}
			}
			s.writeJSON(w, http.StatusBadRequest, map[string]any{"errors": body})
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"valid":    true,
		"backends": ssoconf.EnabledBackends(providers.Settings(), s.gate),
	})
}
