package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/libraryops/internal/domain"
)

// bookSlot guards one book. Borrow and Return on the same book serialize on
// mu; different books never contend.
type bookSlot struct {
	mu   sync.Mutex
	book domain.Book
}

// Memory is an in-process Store. Lock order is slot.mu before Memory.mu.
type Memory struct {
	mu         sync.RWMutex
	books      map[string]*bookSlot
	categories []domain.Category
	borrows    map[string]domain.BorrowRecord
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		books:   make(map[string]*bookSlot),
		borrows: make(map[string]domain.BorrowRecord),
		now:     time.Now,
	}
}

func (m *Memory) slot(id string) (*bookSlot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.books[id]
	return s, ok
}

func (m *Memory) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	slots := make([]*bookSlot, 0, len(m.books))
	for _, s := range m.books {
		slots = append(slots, s)
	}
	m.mu.RUnlock()

	books := make([]domain.Book, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		b := s.book
		s.mu.Unlock()
		if filter.Category != "" && b.Category != filter.Category {
			continue
		}
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].CreatedAt.Equal(books[j].CreatedAt) {
			return books[i].ID < books[j].ID
		}
		return books[i].CreatedAt.Before(books[j].CreatedAt)
	})
	return books, nil
}

func (m *Memory) GetBook(ctx context.Context, id string) (domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return domain.Book{}, err
	}
	s, ok := m.slot(id)
	if !ok {
		return domain.Book{}, domain.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book, nil
}

func (m *Memory) InsertBook(ctx context.Context, in domain.BookInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := m.now()
	m.mu.Lock()
	m.books[id] = &bookSlot{book: newBook(id, in, now)}
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) UpsertBook(ctx context.Context, id string, in domain.BookInput) (domain.Book, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Book{}, false, err
	}
	now := m.now()

	m.mu.Lock()
	s, ok := m.books[id]
	if !ok {
		b := newBook(id, in, now)
		m.books[id] = &bookSlot{book: b}
		m.mu.Unlock()
		return b, true, nil
	}
	m.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	b := &s.book
	b.Available = domain.Rebase(b.Available, b.Quantity, in.Quantity)
	b.Quantity = in.Quantity
	b.Title = in.Title
	b.Author = in.Author
	b.Category = in.Category
	b.Image = in.Image
	b.Rating = in.Rating
	b.Description = in.Description
	b.UpdatedAt = now
	return *b, false, nil
}

func (m *Memory) SetQuantity(ctx context.Context, id string, quantity int) (domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return domain.Book{}, err
	}
	s, ok := m.slot(id)
	if !ok {
		return domain.Book{}, domain.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book.Available = domain.Rebase(s.book.Available, s.book.Quantity, quantity)
	s.book.Quantity = quantity
	s.book.UpdatedAt = m.now()
	return s.book, nil
}

func (m *Memory) Borrow(ctx context.Context, in domain.BorrowInput) (domain.BorrowRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.BorrowRecord{}, err
	}
	s, ok := m.slot(in.BookID)
	if !ok {
		return domain.BorrowRecord{}, domain.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.borrows {
		if rec.BookID == in.BookID && rec.Email == in.Email {
			return domain.BorrowRecord{}, domain.ErrAlreadyBorrowed
		}
	}
	if s.book.Available <= 0 {
		return domain.BorrowRecord{}, domain.ErrOutOfStock
	}

	rec := domain.BorrowRecord{
		ID:         uuid.NewString(),
		BookID:     in.BookID,
		Email:      in.Email,
		Name:       in.Name,
		BorrowedAt: m.now(),
		DueAt:      in.DueAt,
	}
	s.book.Available--
	m.borrows[rec.ID] = rec
	return rec, nil
}

func (m *Memory) Return(ctx context.Context, recordID string) (domain.BorrowRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.BorrowRecord{}, err
	}
	m.mu.RLock()
	rec, ok := m.borrows[recordID]
	var s *bookSlot
	if ok {
		s = m.books[rec.BookID]
	}
	m.mu.RUnlock()
	if !ok {
		return domain.BorrowRecord{}, domain.ErrNotFound
	}

	if s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	m.mu.Lock()
	if _, still := m.borrows[recordID]; !still {
		m.mu.Unlock()
		return domain.BorrowRecord{}, domain.ErrNotFound
	}
	delete(m.borrows, recordID)
	m.mu.Unlock()

	if s != nil && s.book.Available < s.book.Quantity {
		s.book.Available++
	}
	return rec, nil
}

func (m *Memory) ListBorrows(ctx context.Context, email string) ([]domain.BorrowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]domain.BorrowRecord, 0)
	for _, rec := range m.borrows {
		if rec.Email == email {
			out = append(out, rec)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowedAt.Before(out[j].BorrowedAt) })
	return out, nil
}

func (m *Memory) InsertCategory(ctx context.Context, in domain.CategoryInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	m.mu.Lock()
	m.categories = append(m.categories, domain.Category{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
	})
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Category, len(m.categories))
	copy(out, m.categories)
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Close(context.Context) error {
	return nil
}

func newBook(id string, in domain.BookInput, now time.Time) domain.Book {
	return domain.Book{
		ID:          id,
		Title:       in.Title,
		Author:      in.Author,
		Category:    in.Category,
		Image:       in.Image,
		Rating:      in.Rating,
		Description: in.Description,
		Quantity:    in.Quantity,
		Available:   in.Quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
