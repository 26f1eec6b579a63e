package api

import (
	"net/http"

	"github.com/punchamoorthee/libraryops/internal/models"
	"go.uber.org/zap"
)

// IssueTokenHandler signs a session for the posted identity and stores it in
// an HTTP-only cookie.
func (h *Handler) IssueTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := req.Validate()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, expires, err := h.gate.Issue(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.gate.SetCookie(w, token, expires)
	h.logger(r).Info("Session issued", zap.String("email", id.Email), zap.Time("expires_at", expires))
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if id, err := h.gate.Authenticate(r); err == nil {
		h.logger(r).Info("Logging out", zap.String("email", id.Email))
	}
	h.gate.Revoke(w)
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
