package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/punchamoorthee/libraryops/internal/domain"
	"github.com/punchamoorthee/libraryops/internal/events"
	"github.com/punchamoorthee/libraryops/internal/store"
	"go.uber.org/zap"
)

const DefaultTimeout = 5 * time.Second

// Ledger is the authoritative view of book counts and borrow records. It
// bounds every store call with a timeout and separates domain failures from
// storage failures: anything the store returns that is not a domain error is
// wrapped with domain.ErrStorage.
type Ledger struct {
	store     store.Store
	publisher events.Publisher
	log       *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Ledger)

func WithTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(l *Ledger) {
		if p != nil {
			l.publisher = p
		}
	}
}

func New(s store.Store, log *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:     s,
		publisher: events.Nop{},
		log:       log,
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// classify wraps infrastructure failures. Timeouts surface as storage errors
// rather than leaking context errors to callers. Callers log the wrapped
// error at error level with their request context.
func (l *Ledger) classify(op string, err error) error {
	if err == nil || domain.IsDomain(err) {
		return err
	}
	l.log.Debug("Store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

func (l *Ledger) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Ledger) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	books, err := l.store.ListBooks(ctx, filter)
	return books, l.classify("list books", err)
}

func (l *Ledger) GetBook(ctx context.Context, id string) (domain.Book, error) {
	if id == "" {
		return domain.Book{}, domain.Validationf("book id is required")
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	b, err := l.store.GetBook(ctx, id)
	return b, l.classify("get book", err)
}

func (l *Ledger) AddBook(ctx context.Context, in domain.BookInput) (string, error) {
	if err := validateBook(in); err != nil {
		return "", err
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	id, err := l.store.InsertBook(ctx, in)
	if err != nil {
		return "", l.classify("add book", err)
	}
	l.log.Info("Book added", zap.String("book_id", id), zap.String("title", in.Title), zap.Int("quantity", in.Quantity))
	return id, nil
}

// UpdateBook replaces a book's fields, creating it when id is unknown.
func (l *Ledger) UpdateBook(ctx context.Context, id string, in domain.BookInput) (domain.Book, bool, error) {
	if id == "" {
		return domain.Book{}, false, domain.Validationf("book id is required")
	}
	if err := validateBook(in); err != nil {
		return domain.Book{}, false, err
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	b, created, err := l.store.UpsertBook(ctx, id, in)
	if err != nil {
		return domain.Book{}, false, l.classify("update book", err)
	}
	l.log.Info("Book saved", zap.String("book_id", id), zap.Bool("created", created))
	return b, created, nil
}

// AdjustQuantity sets the total number of copies. Copies currently on loan
// stay on loan; available shifts by the same delta, clamped at zero.
func (l *Ledger) AdjustQuantity(ctx context.Context, id string, quantity int) (domain.Book, error) {
	if id == "" {
		return domain.Book{}, domain.Validationf("book id is required")
	}
	if quantity < 0 {
		return domain.Book{}, domain.Validationf("quantity must not be negative")
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	b, err := l.store.SetQuantity(ctx, id, quantity)
	if err != nil {
		return domain.Book{}, l.classify("adjust quantity", err)
	}
	l.log.Info("Quantity adjusted", zap.String("book_id", id), zap.Int("quantity", b.Quantity), zap.Int("available", b.Available))
	return b, nil
}

// Borrow takes one copy of a book for a borrower. Exactly one of several
// concurrent borrows of the last copy succeeds; the others get ErrOutOfStock.
func (l *Ledger) Borrow(ctx context.Context, in domain.BorrowInput) (rec domain.BorrowRecord, err error) {
	defer func() { borrowsTotal.WithLabelValues(outcome(err)).Inc() }()

	in.Email = domain.NormalizeEmail(in.Email)
	if in.BookID == "" {
		return domain.BorrowRecord{}, domain.Validationf("book_id is required")
	}
	if in.Email == "" {
		return domain.BorrowRecord{}, domain.Validationf("email is required")
	}

	sctx, cancel := l.bound(ctx)
	defer cancel()
	rec, err = l.store.Borrow(sctx, in)
	if err != nil {
		l.log.Info("Borrow rejected", zap.String("book_id", in.BookID), zap.String("email", in.Email), zap.Error(err))
		return domain.BorrowRecord{}, l.classify("borrow", err)
	}

	l.log.Info("Book borrowed", zap.String("record_id", rec.ID), zap.String("book_id", rec.BookID), zap.String("email", rec.Email))
	l.publish(ctx, events.BorrowCreated, rec)
	return rec, nil
}

// ListBorrowsFor returns the active borrow records of one borrower. Callers
// are expected to have authorized the request for that identity.
func (l *Ledger) ListBorrowsFor(ctx context.Context, email string) ([]domain.BorrowRecord, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.Validationf("email is required")
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	recs, err := l.store.ListBorrows(ctx, email)
	return recs, l.classify("list borrows", err)
}

// ReturnBook closes a borrow record and puts the copy back on the shelf.
func (l *Ledger) ReturnBook(ctx context.Context, recordID string) (rec domain.BorrowRecord, err error) {
	defer func() { returnsTotal.WithLabelValues(outcome(err)).Inc() }()

	if recordID == "" {
		return domain.BorrowRecord{}, domain.Validationf("record id is required")
	}
	sctx, cancel := l.bound(ctx)
	defer cancel()
	rec, err = l.store.Return(sctx, recordID)
	if err != nil {
		return domain.BorrowRecord{}, l.classify("return", err)
	}

	l.log.Info("Book returned", zap.String("record_id", rec.ID), zap.String("book_id", rec.BookID), zap.String("email", rec.Email))
	l.publish(ctx, events.BorrowReturned, rec)
	return rec, nil
}

func (l *Ledger) AddCategory(ctx context.Context, in domain.CategoryInput) (string, error) {
	if in.Name == "" {
		return "", domain.Validationf("name is required")
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	id, err := l.store.InsertCategory(ctx, in)
	if err != nil {
		return "", l.classify("add category", err)
	}
	l.log.Info("Category added", zap.String("category_id", id), zap.String("name", in.Name))
	return id, nil
}

func (l *Ledger) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	cats, err := l.store.ListCategories(ctx)
	return cats, l.classify("list categories", err)
}

func (l *Ledger) Ping(ctx context.Context) error {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	return l.classify("ping", l.store.Ping(ctx))
}

// publish is best effort: the ledger change has already committed, so a
// broker failure is logged and not returned.
func (l *Ledger) publish(ctx context.Context, eventType string, rec domain.BorrowRecord) {
	ctx, cancel := l.bound(context.WithoutCancel(ctx))
	defer cancel()
	err := l.publisher.Publish(ctx, events.Event{
		Type:       eventType,
		OccurredAt: l.now().UTC(),
		Payload:    rec,
	})
	if err != nil {
		l.log.Warn("Event publish failed", zap.String("event", eventType), zap.String("record_id", rec.ID), zap.Error(err))
	}
}

func validateBook(in domain.BookInput) error {
	switch {
	case in.Title == "":
		return domain.Validationf("title is required")
	case in.Author == "":
		return domain.Validationf("author is required")
	case in.Category == "":
		return domain.Validationf("category is required")
	case in.Quantity < 0:
		return domain.Validationf("quantity must not be negative")
	}
	return nil
}
