package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		category TEXT NOT NULL,
		image TEXT NOT NULL DEFAULT '',
		rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		available INTEGER NOT NULL CHECK (available >= 0 AND available <= quantity),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_books_category ON books (category)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS borrows (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL REFERENCES books (id),
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		borrowed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		due_at TIMESTAMPTZ
	)`,
	// Records are deleted on return, so every row is an active borrow.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_borrows_book_email ON borrows (book_id, email)`,
	`CREATE INDEX IF NOT EXISTS idx_borrows_email ON borrows (email)`,
}

// Migrate creates the tables the store needs. It is safe to run on every start.
func (s *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.Db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
