package domain

import (
	"strings"
	"time"
)

// Book is a title held by the library together with its copy counts.
// Available never drops below 0 and never exceeds Quantity.
type Book struct {
	ID          string    `json:"_id" bson:"-"`
	Title       string    `json:"title" bson:"title"`
	Author      string    `json:"author" bson:"author"`
	Category    string    `json:"category" bson:"category"`
	Image       string    `json:"image,omitempty" bson:"image,omitempty"`
	Rating      float64   `json:"rating" bson:"rating"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Quantity    int       `json:"quantity" bson:"quantity"`
	Available   int       `json:"available" bson:"available"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Category groups books. Categories are immutable once created.
type Category struct {
	ID          string `json:"_id" bson:"-"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Image       string `json:"image,omitempty" bson:"image,omitempty"`
}

// BorrowRecord is an active loan of one copy of a book. Returning the book
// deletes the record.
type BorrowRecord struct {
	ID         string     `json:"_id" bson:"-"`
	BookID     string     `json:"book_id" bson:"-"`
	Email      string     `json:"email" bson:"email"`
	Name       string     `json:"name,omitempty" bson:"name,omitempty"`
	BorrowedAt time.Time  `json:"borrowed_at" bson:"borrowed_at"`
	DueAt      *time.Time `json:"due_at,omitempty" bson:"due_at,omitempty"`
}

// BookInput carries the mutable fields of a book for create and replace.
type BookInput struct {
	Title       string
	Author      string
	Category    string
	Image       string
	Rating      float64
	Description string
	Quantity    int
}

// BorrowInput identifies who borrows which book.
type BorrowInput struct {
	BookID string
	Email  string
	Name   string
	DueAt  *time.Time
}

// CategoryInput carries the fields of a new category.
type CategoryInput struct {
	Name        string
	Description string
	Image       string
}

// BookFilter narrows ListBooks. The zero value matches every book.
type BookFilter struct {
	Category string
}

// Identity is the stable user key a session is bound to.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// NormalizeEmail lower-cases and trims an email so that identities compare
// the same way everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Rebase applies a new total to a book, shifting Available by the same delta
// and clamping it into [0, quantity].
func Rebase(available, oldQuantity, newQuantity int) int {
	next := available + (newQuantity - oldQuantity)
	if next < 0 {
		return 0
	}
	if next > newQuantity {
		return newQuantity
	}
	return next
}
