package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/libraryops/internal/domain"
	"github.com/punchamoorthee/libraryops/internal/events"
	"github.com/punchamoorthee/libraryops/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// blockingStore waits for the context on every borrow, to exercise timeouts.
type blockingStore struct {
	*store.Memory
}

func (b blockingStore) Borrow(ctx context.Context, _ domain.BorrowInput) (domain.BorrowRecord, error) {
	<-ctx.Done()
	return domain.BorrowRecord{}, ctx.Err()
}

// brokenStore fails every category call with a driver error.
type brokenStore struct {
	*store.Memory
}

func (brokenStore) ListCategories(context.Context) ([]domain.Category, error) {
	return nil, errors.New("connection refused")
}

func newTestLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	return New(store.NewMemory(), zap.NewNop(), opts...)
}

func dune(quantity int) domain.BookInput {
	return domain.BookInput{Title: "Dune", Author: "Frank Herbert", Category: "Fiction", Quantity: quantity}
}

func available(t *testing.T, l *Ledger, id string) int {
	t.Helper()
	b, err := l.GetBook(context.Background(), id)
	require.NoError(t, err)
	return b.Available
}

func TestLibraryScenario(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	l := newTestLedger(t, WithPublisher(pub))

	_, err := l.AddCategory(ctx, domain.CategoryInput{Name: "Fiction"})
	require.NoError(t, err)

	id, err := l.AddBook(ctx, dune(2))
	require.NoError(t, err)

	a, err := l.Borrow(ctx, domain.BorrowInput{BookID: id, Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, available(t, l, id))

	_, err = l.Borrow(ctx, domain.BorrowInput{BookID: id, Email: "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 0, available(t, l, id))

	_, err = l.Borrow(ctx, domain.BorrowInput{BookID: id, Email: "c@x.com"})
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	_, err = l.ReturnBook(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, available(t, l, id))

	assert.Equal(t, []string{events.BorrowCreated, events.BorrowCreated, events.BorrowReturned}, pub.types())
}

func TestAddListRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	id, err := l.AddBook(ctx, dune(5))
	require.NoError(t, err)

	books, err := l.ListBooks(ctx, domain.BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, id, books[0].ID)
	assert.Equal(t, 5, books[0].Quantity)
	assert.Equal(t, 5, books[0].Available)

	rec, err := l.Borrow(ctx, domain.BorrowInput{BookID: id, Email: "a@x.com"})
	require.NoError(t, err)
	_, err = l.ReturnBook(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, available(t, l, id))
}

func TestBorrowRejectsSecondActiveBorrow(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	id, err := l.AddBook(ctx, dune(3))
	require.NoError(t, err)

	_, err = l.Borrow(ctx, domain.BorrowInput{BookID: id, Email: "a@x.com"})
	require.NoError(t, err)
	_, err = l.Borrow(ctx, domain.BorrowInput{BookID: id, Email: " A@X.com"})
	assert.ErrorIs(t, err, domain.ErrAlreadyBorrowed)
	assert.Equal(t, 2, available(t, l, id))
}

func TestConcurrentBorrowsOfLastCopy(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	id, err := l.AddBook(ctx, dune(1))
	require.NoError(t, err)

	const callers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Borrow(ctx, domain.BorrowInput{BookID: id, Email: fmt.Sprintf("u%d@x.com", i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrOutOfStock):
				full++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, full)
	assert.Equal(t, 0, available(t, l, id))
}

func TestUpdateBookUpserts(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	b, created, err := l.UpdateBook(ctx, "book-42", dune(4))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "book-42", b.ID)
	assert.Equal(t, 4, b.Available)

	rec, err := l.Borrow(ctx, domain.BorrowInput{BookID: "book-42", Email: "a@x.com"})
	require.NoError(t, err)

	in := dune(6)
	in.Title = "Dune (Deluxe)"
	b, created, err = l.UpdateBook(ctx, "book-42", in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Dune (Deluxe)", b.Title)
	assert.Equal(t, 6, b.Quantity)
	assert.Equal(t, 5, b.Available)

	_, err = l.ReturnBook(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, available(t, l, "book-42"))
}

func TestAdjustQuantity(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	id, err := l.AddBook(ctx, dune(2))
	require.NoError(t, err)

	b, err := l.AdjustQuantity(ctx, id, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, b.Quantity)
	assert.Equal(t, 7, b.Available)

	_, err = l.AdjustQuantity(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = l.AdjustQuantity(ctx, id, -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.AddBook(ctx, domain.BookInput{Author: "x", Category: "y"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.AddBook(ctx, domain.BookInput{Title: "x", Author: "y", Category: "z", Quantity: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.Borrow(ctx, domain.BorrowInput{BookID: "b"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.ListBorrowsFor(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.AddCategory(ctx, domain.CategoryInput{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.Borrow(ctx, domain.BorrowInput{BookID: "nope", Email: "a@x.com"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = l.ReturnBook(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListBorrowsForIsScopedToBorrower(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	id, err := l.AddBook(ctx, dune(3))
	require.NoError(t, err)

	_, err = l.Borrow(ctx, domain.BorrowInput{BookID: id, Email: "a@x.com"})
	require.NoError(t, err)
	_, err = l.Borrow(ctx, domain.BorrowInput{BookID: id, Email: "b@x.com"})
	require.NoError(t, err)

	recs, err := l.ListBorrowsFor(ctx, "A@x.com")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a@x.com", recs[0].Email)
}

func TestStoreTimeoutIsStorageError(t *testing.T) {
	mem := store.NewMemory()
	l := New(blockingStore{mem}, zap.NewNop(), WithTimeout(20*time.Millisecond))
	id, err := l.AddBook(context.Background(), dune(1))
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Borrow(context.Background(), domain.BorrowInput{BookID: id, Email: "a@x.com"})
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.False(t, domain.IsDomain(err))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, available(t, l, id))
}

func TestDriverErrorIsStorageError(t *testing.T) {
	l := New(brokenStore{store.NewMemory()}, zap.NewNop())

	_, err := l.ListCategories(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Equal(t, "storage_error", domain.Kind(err))
}

func TestStorageErrorIsNotLoggedAtErrorLevel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(brokenStore{store.NewMemory()}, zap.New(core))

	_, err := l.ListCategories(context.Background())
	require.ErrorIs(t, err, domain.ErrStorage)

	assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("Store operation failed").Len())
}

func TestPublishFailureDoesNotFailBorrow(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	l := newTestLedger(t, WithPublisher(pub))
	id, err := l.AddBook(ctx, dune(1))
	require.NoError(t, err)

	_, err = l.Borrow(ctx, domain.BorrowInput{BookID: id, Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{events.BorrowCreated}, pub.types())
}
