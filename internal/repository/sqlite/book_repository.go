package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"small-library/internal/domain"
	"small-library/internal/repository"
)

const createBooksTable = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL UNIQUE,
	published INTEGER NOT NULL,
	author TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_books_author ON books(author);

CREATE TABLE IF NOT EXISTS book_genres (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	genre TEXT NOT NULL,
	FOREIGN KEY(book_id) REFERENCES books(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_book_genres_book_id ON book_genres(book_id);
CREATE INDEX IF NOT EXISTS idx_book_genres_genre ON book_genres(genre);
`

type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) repository.BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createBooksTable); err != nil {
		return fmt.Errorf("create books table: %w", err)
	}
	return nil
}

// Create inserts the book row and its ordered genre rows in one transaction.
func (r *BookRepository) Create(ctx context.Context, book *domain.Book) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
INSERT INTO books (title, published, author, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		book.Title,
		book.Published,
		book.Author,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.Duplicate("Book", "title", book.Title)
		}
		return fmt.Errorf("insert book: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("book last insert id: %w", err)
	}

	for pos, genre := range book.Genres {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO book_genres (book_id, position, genre)
VALUES (?, ?, ?)`,
			id,
			pos,
			genre,
		); err != nil {
			return fmt.Errorf("insert genre: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	book.ID = strconv.FormatInt(id, 10)
	return nil
}

func bookWhere(filter domain.BookFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Author != nil {
		clauses = append(clauses, "b.author = ?")
		args = append(args, *filter.Author)
	}
	if filter.Genre != nil {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM book_genres fg WHERE fg.book_id = b.id AND fg.genre = ?)")
		args = append(args, *filter.Genre)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (r *BookRepository) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	where, args := bookWhere(filter)

	rows, err := r.db.QueryContext(ctx, `
SELECT b.id, b.title, b.published, b.author
FROM books b
`+where+`
ORDER BY b.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := []domain.Book{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			book domain.Book
			id   int64
		)
		if err := rows.Scan(&id, &book.Title, &book.Published, &book.Author); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		book.ID = strconv.FormatInt(id, 10)
		book.Genres = []string{}
		index[id] = len(books)
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	if len(books) == 0 {
		return books, nil
	}

	if err := r.attachGenres(ctx, where, args, books, index); err != nil {
		return nil, err
	}
	return books, nil
}

// attachGenres loads genres for every book matched by where in one query.
func (r *BookRepository) attachGenres(ctx context.Context, where string, args []any, books []domain.Book, index map[int64]int) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT g.book_id, g.genre
FROM book_genres g
JOIN books b ON b.id = g.book_id
`+where+`
ORDER BY g.book_id ASC, g.position ASC`, args...)
	if err != nil {
		return fmt.Errorf("query book genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID int64
			genre  string
		)
		if err := rows.Scan(&bookID, &genre); err != nil {
			return fmt.Errorf("scan genre: %w", err)
		}
		if i, ok := index[bookID]; ok {
			books[i].Genres = append(books[i].Genres, genre)
		}
	}
	return rows.Err()
}

func (r *BookRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

func (r *BookRepository) CountByAuthors(ctx context.Context, names []string) (map[string]int, error) {
	counts := make(map[string]int, len(names))
	if len(names) == 0 {
		return counts, nil
	}
	for _, name := range names {
		counts[name] = 0
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT author, COUNT(*)
FROM books
WHERE author IN (`+placeholders(len(names))+`)
GROUP BY author`, stringArgs(names)...)
	if err != nil {
		return nil, fmt.Errorf("count books by author: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			author string
			n      int
		)
		if err := rows.Scan(&author, &n); err != nil {
			return nil, fmt.Errorf("scan book count: %w", err)
		}
		counts[author] = n
	}
	return counts, rows.Err()
}

func (r *BookRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM books`); err != nil {
		return fmt.Errorf("delete books: %w", err)
	}
	return nil
}
