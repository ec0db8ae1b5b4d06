// internal/catalog/domain.go
package catalog

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Genre is the closed set of genres a book can be filed under.
// The zero value is not a valid genre.
type Genre uint8

const (
	GenreFiction Genre = iota + 1
	GenreNonFiction
	GenreMystery
	GenreRomance
	GenreScienceFiction
	GenreFantasy
	GenreBiography
	GenreHistory
	GenreTechnology
)

// genreCount is one past the highest genre value.
const genreCount = int(GenreTechnology) + 1

// Genres returns every genre in declaration order.
func Genres() []Genre {
	out := make([]Genre, 0, genreCount-1)
	for g := GenreFiction; g <= GenreTechnology; g++ {
		out = append(out, g)
	}
	return out
}

func (g Genre) String() string {
	switch g {
	case GenreFiction:
		return "fiction"
	case GenreNonFiction:
		return "non-fiction"
	case GenreMystery:
		return "mystery"
	case GenreRomance:
		return "romance"
	case GenreScienceFiction:
		return "science-fiction"
	case GenreFantasy:
		return "fantasy"
	case GenreBiography:
		return "biography"
	case GenreHistory:
		return "history"
	case GenreTechnology:
		return "technology"
	default:
		return ""
	}
}

// Valid reports whether g is one of the declared genres.
func (g Genre) Valid() bool {
	return g.String() != ""
}

// ParseGenre returns the genre whose wire name is s.
func ParseGenre(s string) (Genre, error) {
	for _, g := range Genres() {
		if g.String() == s {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown genre %q", s)
}

func (g Genre) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid genre %d", uint8(g))
	}
	return []byte(g.String()), nil
}

func (g *Genre) UnmarshalText(text []byte) error {
	parsed, err := ParseGenre(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Book is a single catalog entry as stored by the Store.
type Book struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	Genre           Genre      `json:"genre"`
	PublicationYear int        `json:"publication_year"`
	Pages           int        `json:"pages"`
	ISBN            *string    `json:"isbn"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

// clone returns a copy of b that shares no pointers with it.
func (b Book) clone() Book {
	if b.ISBN != nil {
		isbn := *b.ISBN
		b.ISBN = &isbn
	}
	if b.UpdatedAt != nil {
		at := *b.UpdatedAt
		b.UpdatedAt = &at
	}
	return b
}

// BookCandidate holds the unvalidated fields submitted to create a book.
// Genre is kept as its wire name so that an unknown genre is reported
// together with the other field failures.
type BookCandidate struct {
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Genre           string  `json:"genre"`
	PublicationYear int     `json:"publication_year"`
	Pages           int     `json:"pages"`
	ISBN            *string `json:"isbn"`
}

// BookPatch holds the unvalidated fields of a partial update. Only the
// fields that are present are validated and merged.
type BookPatch struct {
	Title           Optional[string] `json:"title"`
	Author          Optional[string] `json:"author"`
	Genre           Optional[string] `json:"genre"`
	PublicationYear Optional[int]    `json:"publication_year"`
	Pages           Optional[int]    `json:"pages"`
	ISBN            Optional[string] `json:"isbn"`
}

// Empty reports whether no field is present in the patch.
func (p BookPatch) Empty() bool {
	return !p.Title.Present() && !p.Author.Present() && !p.Genre.Present() &&
		!p.PublicationYear.Present() && !p.Pages.Present() && !p.ISBN.Present()
}

// MarshalJSON emits only the present fields, so a patch survives a round
// trip through the HTTP client unchanged.
func (p BookPatch) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, 6)
	putOptional(fields, "title", p.Title)
	putOptional(fields, "author", p.Author)
	putOptional(fields, "genre", p.Genre)
	putOptional(fields, "publication_year", p.PublicationYear)
	putOptional(fields, "pages", p.Pages)
	putOptional(fields, "isbn", p.ISBN)
	return json.Marshal(fields)
}

func putOptional[T any](fields map[string]any, key string, o Optional[T]) {
	switch {
	case o.Null():
		fields[key] = nil
	case o.Present():
		fields[key] = o.value
	}
}

// Optional marks a field as absent, explicitly null, or set to a value.
type Optional[T any] struct {
	value   T
	present bool
	null    bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// Null returns a present Optional holding an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{present: true, null: true}
}

// Get returns the value and whether one is set. Absent and null both report false.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present && !o.null
}

// Present reports whether the field was supplied at all, null included.
func (o Optional[T]) Present() bool { return o.present }

// Null reports whether the field was supplied as an explicit null.
func (o Optional[T]) Null() bool { return o.present && o.null }

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		return nil
	}
	return json.Unmarshal(data, &o.value)
}

// ListQuery is the filter and pagination request of ListBooks. Nil filters
// are not applied.
type ListQuery struct {
	Skip   int     `json:"skip"`
	Limit  int     `json:"limit"`
	Genre  *string `json:"genre"`
	Author *string `json:"author"`
	Year   *int    `json:"year"`
}

// DefaultLimit is the page size used when the caller does not pick one.
const DefaultLimit = 10

// MaxLimit is the largest page size ListBooks accepts.
const MaxLimit = 100

// Page is one slice of a filtered listing.
//
// PageNumber is skip/limit+1. It only names the slice actually shown when
// skip is a multiple of limit; callers using other offsets get an
// approximate indicator, and the formula is kept as is.
type Page struct {
	Books      []Book `json:"books"`
	Total      int    `json:"total"`
	PageNumber int    `json:"page"`
	Limit      int    `json:"limit"`
	HasNext    bool   `json:"has_next"`
}

// YearRange is the span of publication years in the catalog.
type YearRange struct {
	Earliest int `json:"earliest"`
	Latest   int `json:"latest"`
}

// Statistics summarises the catalog at one moment.
type Statistics struct {
	TotalBooks           int           `json:"total_books"`
	Genres               map[Genre]int `json:"genres"`
	AveragePages         int           `json:"average_pages"`
	PublicationYearRange *YearRange    `json:"publication_year_range"`
}

// Event types written to the change journal.
const (
	EventBookAdded   = "BookAdded"
	EventBookUpdated = "BookUpdated"
	EventBookRemoved = "BookRemoved"
)

// AggregateType is the journal aggregate type used for books.
const AggregateType = "book"

// BookRemovedEvent is the journal payload of a deletion.
type BookRemovedEvent struct {
	ID int64 `json:"id"`
}

// MarshalJSON keys the genre counts by wire name.
func (s Statistics) MarshalJSON() ([]byte, error) {
	genres := make(map[string]int, len(s.Genres))
	for g, n := range s.Genres {
		genres[g.String()] = n
	}
	type statistics Statistics
	return json.Marshal(struct {
		statistics
		Genres map[string]int `json:"genres"`
	}{statistics: statistics(s), Genres: genres})
}

func (s *Statistics) UnmarshalJSON(data []byte) error {
	type statistics Statistics
	var raw struct {
		statistics
		Genres map[string]int `json:"genres"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Statistics(raw.statistics)
	s.Genres = make(map[Genre]int, len(raw.Genres))
	for name, n := range raw.Genres {
		g, err := ParseGenre(name)
		if err != nil {
			return err
		}
		s.Genres[g] = n
	}
	return nil
}
