package ledger

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/libraryops/internal/domain"
)

var (
	borrowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_borrows_total",
		Help: "Borrow attempts, labeled by outcome",
	}, []string{"outcome"})

	returnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_returns_total",
		Help: "Return attempts, labeled by outcome",
	}, []string{"outcome"})
)

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrAlreadyBorrowed):
		return "already_borrowed"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
