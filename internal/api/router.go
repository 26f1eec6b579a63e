package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires every route. CORS, request ids and access logging wrap the
// whole mux so that preflight and unmatched requests pass through them too.
func NewRouter(h *Handler, corsOrigins []string, log *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = Metrics(http.HandlerFunc(h.NotFoundHandler))
	r.MethodNotAllowedHandler = Metrics(http.HandlerFunc(h.MethodNotAllowedHandler))
	r.Use(Metrics)

	r.HandleFunc("/", h.RootHandler).Methods("GET")
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/jwt", h.IssueTokenHandler).Methods("POST")
	r.HandleFunc("/logout", h.LogoutHandler).Methods("POST")

	r.HandleFunc("/books", h.ListBooksHandler).Methods("GET")
	r.HandleFunc("/books", h.CreateBookHandler).Methods("POST")
	r.HandleFunc("/books/{id}", h.GetBookHandler).Methods("GET")
	r.HandleFunc("/books/{id}", h.UpdateBookHandler).Methods("PUT")
	r.HandleFunc("/books/{id}", h.AdjustQuantityHandler).Methods("PATCH")

	r.HandleFunc("/categories", h.ListCategoriesHandler).Methods("GET")
	r.HandleFunc("/categories", h.CreateCategoryHandler).Methods("POST")

	requireSession := h.gate.Middleware(h.writeError)
	r.Handle("/borrowBooks", requireSession(http.HandlerFunc(h.ListBorrowsHandler))).Methods("GET")
	r.HandleFunc("/borrowBooks", h.BorrowHandler).Methods("POST")
	r.HandleFunc("/borrowBooks/{id}", h.ReturnHandler).Methods("DELETE")

	return RequestID(AccessLog(log)(CORS(corsOrigins)(r)))
}
