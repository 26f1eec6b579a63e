package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/libraryops/internal/domain"
	"github.com/punchamoorthee/libraryops/internal/models"
)

func (h *Handler) ListBooksHandler(w http.ResponseWriter, r *http.Request) {
	filter := domain.BookFilter{Category: r.URL.Query().Get("category")}
	books, err := h.ledger.ListBooks(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, books)
}

func (h *Handler) GetBookHandler(w http.ResponseWriter, r *http.Request) {
	book, err := h.ledger.GetBook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, book)
}

func (h *Handler) CreateBookHandler(w http.ResponseWriter, r *http.Request) {
	var req models.BookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.Validate()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.ledger.AddBook(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/books/"+id)
	respondWithJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// UpdateBookHandler replaces a book, creating it when the id is unknown.
func (h *Handler) UpdateBookHandler(w http.ResponseWriter, r *http.Request) {
	var req models.BookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.Validate()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	book, created, err := h.ledger.UpdateBook(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		w.Header().Set("Location", "/books/"+book.ID)
		status = http.StatusCreated
	}
	respondWithJSON(w, status, book)
}

func (h *Handler) AdjustQuantityHandler(w http.ResponseWriter, r *http.Request) {
	var req models.QuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	quantity, err := req.Validate()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	book, err := h.ledger.AdjustQuantity(r.Context(), mux.Vars(r)["id"], quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, book)
}
