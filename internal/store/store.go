package store

import (
	"context"

	"github.com/punchamoorthee/libraryops/internal/domain"
)

// Store persists books, categories and borrow records.
//
// Implementations must make Borrow and Return atomic per book: the
// availability check, the counter change and the record insert/delete either
// all land or none do. Domain failures are reported with the sentinel errors
// from package domain; anything else is treated as an infrastructure failure
// by the caller.
type Store interface {
	ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error)
	GetBook(ctx context.Context, id string) (domain.Book, error)
	InsertBook(ctx context.Context, in domain.BookInput) (string, error)
	// UpsertBook replaces the descriptive fields of a book and rebases its
	// counters, creating the book when id is unknown. created reports which
	// path was taken.
	UpsertBook(ctx context.Context, id string, in domain.BookInput) (book domain.Book, created bool, err error)
	SetQuantity(ctx context.Context, id string, quantity int) (domain.Book, error)

	Borrow(ctx context.Context, in domain.BorrowInput) (domain.BorrowRecord, error)
	Return(ctx context.Context, recordID string) (domain.BorrowRecord, error)
	ListBorrows(ctx context.Context, email string) ([]domain.BorrowRecord, error)

	InsertCategory(ctx context.Context, in domain.CategoryInput) (string, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
