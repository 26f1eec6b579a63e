package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/punchamoorthee/libraryops/internal/domain"
	"github.com/punchamoorthee/libraryops/internal/ledger"
	"github.com/punchamoorthee/libraryops/internal/session"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	ledger *ledger.Ledger
	gate   *session.Gate
	log    *zap.Logger
}

func NewHandler(l *ledger.Ledger, g *session.Gate, log *zap.Logger) *Handler {
	return &Handler{ledger: l, gate: g, log: log}
}

func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "Library Management server is running")
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Ping(r.Context()); err != nil {
		h.logger(r).Error("Health check failed", zap.Error(err))
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NotFoundHandler and MethodNotAllowedHandler keep unmatched requests on the
// JSON error contract.
func (h *Handler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, http.StatusNotFound, "not_found", "route not found")
}

func (h *Handler) MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

// logger returns the handler logger tagged with the request id.
func (h *Handler) logger(r *http.Request) *zap.Logger {
	if id := RequestIDFrom(r.Context()); id != "" {
		return h.log.With(zap.String("request_id", id))
	}
	return h.log
}

// writeError maps err onto the status/kind table. Storage failures are logged
// in full and answered with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind := domain.Kind(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger(r).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = "service unavailable, retry later"
	}
	respondWithError(w, status, kind, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOutOfStock), errors.Is(err, domain.ErrAlreadyBorrowed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded body holding exactly one JSON value into v.
// Unknown fields are accepted because front ends resend whole documents
// (including _id) on update.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Validationf("request body too large")
		}
		return domain.Validationf("malformed JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.Validationf("request body must contain a single JSON value")
	}
	return nil
}

func respondWithError(w http.ResponseWriter, code int, kind, message string) {
	respondWithJSON(w, code, map[string]string{"error": kind, "message": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
