package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/libraryops/internal/domain"
	"github.com/punchamoorthee/libraryops/internal/models"
	"github.com/punchamoorthee/libraryops/internal/session"
	"go.uber.org/zap"
)

// ListBorrowsHandler runs behind the session middleware. A caller may only
// list their own records.
func (h *Handler) ListBorrowsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := session.FromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	email, err := models.ParseEmail(r.URL.Query().Get("email"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.gate.Authorize(domain.Identity{Email: email}, caller); err != nil {
		h.logger(r).Warn("Borrow listing denied", zap.String("caller", caller.Email), zap.String("requested", email))
		h.writeError(w, r, err)
		return
	}

	recs, err := h.ledger.ListBorrowsFor(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, recs)
}

func (h *Handler) BorrowHandler(w http.ResponseWriter, r *http.Request) {
	var req models.BorrowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.Validate(time.Now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rec, err := h.ledger.Borrow(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/borrowBooks/"+rec.ID)
	respondWithJSON(w, http.StatusCreated, map[string]string{"id": rec.ID})
}

func (h *Handler) ReturnHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ledger.ReturnBook(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
