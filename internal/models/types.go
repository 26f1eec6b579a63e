package models

import (
	"strings"
	"time"

	"github.com/punchamoorthee/libraryops/internal/domain"
)

// SessionRequest is the payload of POST /jwt.
type SessionRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (r SessionRequest) Validate() (domain.Identity, error) {
	email := domain.NormalizeEmail(r.Email)
	if err := validateEmail(email); err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{Email: email, Name: strings.TrimSpace(r.Name)}, nil
}

// BookRequest is the payload of POST /books and PUT /books/{id}.
// Quantity is a pointer so that a missing field is told apart from zero.
type BookRequest struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      float64 `json:"rating"`
	Description string  `json:"description"`
	Quantity    *int    `json:"quantity"`
}

func (r BookRequest) Validate() (domain.BookInput, error) {
	in := domain.BookInput{
		Title:       strings.TrimSpace(r.Title),
		Author:      strings.TrimSpace(r.Author),
		Category:    strings.TrimSpace(r.Category),
		Image:       strings.TrimSpace(r.Image),
		Rating:      r.Rating,
		Description: strings.TrimSpace(r.Description),
	}
	switch {
	case in.Title == "":
		return in, domain.Validationf("title is required")
	case in.Author == "":
		return in, domain.Validationf("author is required")
	case in.Category == "":
		return in, domain.Validationf("category is required")
	case r.Quantity == nil:
		return in, domain.Validationf("quantity is required")
	case *r.Quantity < 0:
		return in, domain.Validationf("quantity must not be negative")
	case r.Rating < 0 || r.Rating > 5:
		return in, domain.Validationf("rating must be between 0 and 5")
	}
	in.Quantity = *r.Quantity
	return in, nil
}

// QuantityRequest is the payload of PATCH /books/{id}.
type QuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (r QuantityRequest) Validate() (int, error) {
	if r.Quantity == nil {
		return 0, domain.Validationf("quantity is required")
	}
	if *r.Quantity < 0 {
		return 0, domain.Validationf("quantity must not be negative")
	}
	return *r.Quantity, nil
}

// CategoryRequest is the payload of POST /categories.
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

func (r CategoryRequest) Validate() (domain.CategoryInput, error) {
	in := domain.CategoryInput{
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		Image:       strings.TrimSpace(r.Image),
	}
	if in.Name == "" {
		return in, domain.Validationf("name is required")
	}
	return in, nil
}

// BorrowRequest is the payload of POST /borrowBooks.
type BorrowRequest struct {
	BookID string     `json:"book_id"`
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	DueAt  *time.Time `json:"due_at"`
}

func (r BorrowRequest) Validate(now time.Time) (domain.BorrowInput, error) {
	in := domain.BorrowInput{
		BookID: strings.TrimSpace(r.BookID),
		Email:  domain.NormalizeEmail(r.Email),
		Name:   strings.TrimSpace(r.Name),
		DueAt:  r.DueAt,
	}
	if in.BookID == "" {
		return in, domain.Validationf("book_id is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return in, err
	}
	if in.DueAt != nil && !in.DueAt.After(now) {
		return in, domain.Validationf("due_at must be in the future")
	}
	return in, nil
}

// ParseEmail normalizes raw and checks that it looks like an email address.
func ParseEmail(raw string) (string, error) {
	email := domain.NormalizeEmail(raw)
	return email, validateEmail(email)
}

func validateEmail(email string) error {
	if email == "" {
		return domain.Validationf("email is required")
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return domain.Validationf("email %q is malformed", email)
	}
	return nil
}
