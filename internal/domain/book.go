package domain

// Book is a catalog entry. Author holds the author's name rather than an ID;
// readers resolve it to an Author by name.
type Book struct {
	ID        string   `json:"id"`
	Title     string   `json:"title" yaml:"title" validate:"required,min=5"`
	Published int      `json:"published" yaml:"published"`
	Author    string   `json:"author" yaml:"author" validate:"required"`
	Genres    []string `json:"genres" yaml:"genres"`
}

// BookFilter narrows book listings. Nil fields match everything; set fields
// are combined with AND.
type BookFilter struct {
	Author *string
	Genre  *string
}

// Matches reports whether b satisfies the filter. Author comparison is exact
// and case-sensitive; Genre must equal one of the book's genres.
func (f BookFilter) Matches(b Book) bool {
	if f.Author != nil && b.Author != *f.Author {
		return false
	}
	if f.Genre != nil && !b.HasGenre(*f.Genre) {
		return false
	}
	return true
}

// HasGenre reports whether genre is one of the book's genres.
func (b Book) HasGenre(genre string) bool {
	for _, g := range b.Genres {
		if g == genre {
			return true
		}
	}
	return false
}
