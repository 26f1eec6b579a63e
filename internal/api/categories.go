package api

import (
	"net/http"

	"github.com/punchamoorthee/libraryops/internal/models"
)

func (h *Handler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	cats, err := h.ledger.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cats)
}

func (h *Handler) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.Validate()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.ledger.AddCategory(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"id": id})
}
