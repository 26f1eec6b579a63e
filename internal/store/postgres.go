package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/libraryops/internal/domain"
)

const pgUniqueViolation = "23505"

const bookColumns = "id, title, author, category, image, rating, description, quantity, available, created_at, updated_at"

type Postgres struct {
	Db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{Db: pool}, nil
}

func (s *Postgres) Close(context.Context) error {
	s.Db.Close()
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx)
}

func scanBook(row pgx.Row) (domain.Book, error) {
	var b domain.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.Image, &b.Rating,
		&b.Description, &b.Quantity, &b.Available, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// ListBooks returns books in insertion order, optionally narrowed to a category.
func (s *Postgres) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	query := "SELECT " + bookColumns + " FROM books"
	var args []any
	if filter.Category != "" {
		query += " WHERE category = $1"
		args = append(args, filter.Category)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.Db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]domain.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *Postgres) GetBook(ctx context.Context, id string) (domain.Book, error) {
	b, err := scanBook(s.Db.QueryRow(ctx, "SELECT "+bookColumns+" FROM books WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Book{}, domain.ErrNotFound
	}
	return b, err
}

// InsertBook creates a book with every copy available.
func (s *Postgres) InsertBook(ctx context.Context, in domain.BookInput) (string, error) {
	id := uuid.NewString()
	_, err := s.Db.Exec(ctx,
		`INSERT INTO books (id, title, author, category, image, rating, description, quantity, available)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		id, in.Title, in.Author, in.Category, in.Image, in.Rating, in.Description, in.Quantity)
	if err != nil {
		return "", fmt.Errorf("book insert failed: %w", err)
	}
	return id, nil
}

// UpsertBook relies on ON CONFLICT so the create-or-update decision and the
// counter rebase happen in one statement under the row lock.
func (s *Postgres) UpsertBook(ctx context.Context, id string, in domain.BookInput) (domain.Book, bool, error) {
	var created bool
	var b domain.Book
	err := s.Db.QueryRow(ctx,
		`INSERT INTO books AS b (id, title, author, category, image, rating, description, quantity, available)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			category = EXCLUDED.category,
			image = EXCLUDED.image,
			rating = EXCLUDED.rating,
			description = EXCLUDED.description,
			available = GREATEST(0, LEAST(EXCLUDED.quantity, b.available + (EXCLUDED.quantity - b.quantity))),
			quantity = EXCLUDED.quantity,
			updated_at = now()
		 RETURNING `+bookColumns+`, (xmax = 0)`,
		id, in.Title, in.Author, in.Category, in.Image, in.Rating, in.Description, in.Quantity,
	).Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.Image, &b.Rating,
		&b.Description, &b.Quantity, &b.Available, &b.CreatedAt, &b.UpdatedAt, &created)
	if err != nil {
		return domain.Book{}, false, fmt.Errorf("book upsert failed: %w", err)
	}
	return b, created, nil
}

func (s *Postgres) SetQuantity(ctx context.Context, id string, quantity int) (domain.Book, error) {
	b, err := scanBook(s.Db.QueryRow(ctx,
		`UPDATE books SET
			available = GREATEST(0, LEAST($2, available + ($2 - quantity))),
			quantity = $2,
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+bookColumns,
		id, quantity))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Book{}, domain.ErrNotFound
	}
	return b, err
}

// Borrow locks the book row, checks stock and the active-borrow constraint,
// then decrements and records the loan in one transaction.
func (s *Postgres) Borrow(ctx context.Context, in domain.BorrowInput) (domain.BorrowRecord, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.BorrowRecord{}, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var available int
	err = tx.QueryRow(ctx, "SELECT available FROM books WHERE id = $1 FOR UPDATE", in.BookID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BorrowRecord{}, domain.ErrNotFound
		}
		return domain.BorrowRecord{}, fmt.Errorf("lock acquisition failed: %w", err)
	}

	var active bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM borrows WHERE book_id = $1 AND email = $2)",
		in.BookID, in.Email).Scan(&active)
	if err != nil {
		return domain.BorrowRecord{}, fmt.Errorf("active borrow check failed: %w", err)
	}
	if active {
		return domain.BorrowRecord{}, domain.ErrAlreadyBorrowed
	}
	if available <= 0 {
		return domain.BorrowRecord{}, domain.ErrOutOfStock
	}

	if _, err = tx.Exec(ctx,
		"UPDATE books SET available = available - 1, updated_at = now() WHERE id = $1",
		in.BookID); err != nil {
		return domain.BorrowRecord{}, fmt.Errorf("decrement failed: %w", err)
	}

	rec := domain.BorrowRecord{
		ID:     uuid.NewString(),
		BookID: in.BookID,
		Email:  in.Email,
		Name:   in.Name,
		DueAt:  in.DueAt,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO borrows (id, book_id, email, name, due_at) VALUES ($1, $2, $3, $4, $5)
		 RETURNING borrowed_at`,
		rec.ID, rec.BookID, rec.Email, rec.Name, rec.DueAt,
	).Scan(&rec.BorrowedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.BorrowRecord{}, domain.ErrAlreadyBorrowed
		}
		return domain.BorrowRecord{}, fmt.Errorf("borrow insert failed: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.BorrowRecord{}, fmt.Errorf("tx commit failed: %w", err)
	}
	return rec, nil
}

// Return deletes the record and gives the copy back, capped at quantity.
func (s *Postgres) Return(ctx context.Context, recordID string) (domain.BorrowRecord, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.BorrowRecord{}, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var rec domain.BorrowRecord
	err = tx.QueryRow(ctx,
		"DELETE FROM borrows WHERE id = $1 RETURNING id, book_id, email, name, borrowed_at, due_at",
		recordID,
	).Scan(&rec.ID, &rec.BookID, &rec.Email, &rec.Name, &rec.BorrowedAt, &rec.DueAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BorrowRecord{}, domain.ErrNotFound
		}
		return domain.BorrowRecord{}, fmt.Errorf("borrow delete failed: %w", err)
	}

	if _, err = tx.Exec(ctx,
		"UPDATE books SET available = LEAST(available + 1, quantity), updated_at = now() WHERE id = $1",
		rec.BookID); err != nil {
		return domain.BorrowRecord{}, fmt.Errorf("increment failed: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.BorrowRecord{}, fmt.Errorf("tx commit failed: %w", err)
	}
	return rec, nil
}

func (s *Postgres) ListBorrows(ctx context.Context, email string) ([]domain.BorrowRecord, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT id, book_id, email, name, borrowed_at, due_at FROM borrows
		 WHERE email = $1 ORDER BY borrowed_at`,
		email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.BorrowRecord, 0)
	for rows.Next() {
		var rec domain.BorrowRecord
		if err := rows.Scan(&rec.ID, &rec.BookID, &rec.Email, &rec.Name, &rec.BorrowedAt, &rec.DueAt); err != nil {
			return nil, fmt.Errorf("scan borrow: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Postgres) InsertCategory(ctx context.Context, in domain.CategoryInput) (string, error) {
	id := uuid.NewString()
	_, err := s.Db.Exec(ctx,
		"INSERT INTO categories (id, name, description, image) VALUES ($1, $2, $3, $4)",
		id, in.Name, in.Description, in.Image)
	if err != nil {
		return "", fmt.Errorf("category insert failed: %w", err)
	}
	return id, nil
}

func (s *Postgres) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.Db.Query(ctx, "SELECT id, name, description, image FROM categories ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Image); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
