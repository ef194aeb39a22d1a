package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"small-library/internal/domain"
	"small-library/internal/repository"
)

const createAuthorsTable = `
CREATE TABLE IF NOT EXISTS authors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	born INTEGER NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type AuthorRepository struct {
	db *sql.DB
}

func NewAuthorRepository(db *sql.DB) repository.AuthorRepository {
	return &AuthorRepository{db: db}
}

func (r *AuthorRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAuthorsTable); err != nil {
		return fmt.Errorf("create authors table: %w", err)
	}
	return nil
}

func (r *AuthorRepository) Create(ctx context.Context, author *domain.Author) error {
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO authors (name, born, created_at, updated_at)
VALUES (?, ?, ?, ?)`,
		author.Name,
		nullInt(author.Born),
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.Duplicate("Author", "name", author.Name)
		}
		return fmt.Errorf("insert author: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("author last insert id: %w", err)
	}
	author.ID = strconv.FormatInt(id, 10)
	return nil
}

func (r *AuthorRepository) Update(ctx context.Context, author *domain.Author) error {
	id, err := strconv.ParseInt(author.ID, 10, 64)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE authors SET name=?, born=?, updated_at=?
WHERE id=?`,
		author.Name,
		nullInt(author.Born),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.Duplicate("Author", "name", author.Name)
		}
		return fmt.Errorf("update author: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("author rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AuthorRepository) GetByName(ctx context.Context, name string) (*domain.Author, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, born
FROM authors
WHERE name = ?`,
		name,
	)
	return scanAuthor(row)
}

func (r *AuthorRepository) ListByNames(ctx context.Context, names []string) ([]domain.Author, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return r.query(ctx, `
SELECT id, name, born
FROM authors
WHERE name IN (`+placeholders(len(names))+`)
ORDER BY id ASC`, stringArgs(names)...)
}

func (r *AuthorRepository) List(ctx context.Context) ([]domain.Author, error) {
	return r.query(ctx, `
SELECT id, name, born
FROM authors
ORDER BY id ASC`)
}

func (r *AuthorRepository) query(ctx context.Context, q string, args ...any) ([]domain.Author, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	authors := []domain.Author{}
	for rows.Next() {
		author, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, *author)
	}
	return authors, rows.Err()
}

func (r *AuthorRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count authors: %w", err)
	}
	return n, nil
}

func (r *AuthorRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM authors`); err != nil {
		return fmt.Errorf("delete authors: %w", err)
	}
	return nil
}

func scanAuthor(row interface {
	Scan(dest ...any) error
}) (*domain.Author, error) {
	var (
		author domain.Author
		id     int64
		born   sql.NullInt64
	)
	if err := row.Scan(&id, &author.Name, &born); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan author: %w", err)
	}
	author.ID = strconv.FormatInt(id, 10)
	if born.Valid {
		v := int(born.Int64)
		author.Born = &v
	}
	return &author, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
