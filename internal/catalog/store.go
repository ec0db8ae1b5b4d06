package catalog

import (
	"iter"
	"slices"
	"sync"
	"time"
)

// Store is the authoritative in-memory collection of books. It owns the id
// counter and the ISBN index; writers are serialised by one RWMutex so id
// assignment and ISBN uniqueness checks are atomic with the write that
// depends on them. Readers share the lock and see whole writes only.
type Store struct {
	mu        sync.RWMutex
	books     []Book
	isbns     map[string]int64
	lastID    int64
	validator *Validator
	now       func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the clock used for timestamps and for the
// publication-year check.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns an empty catalog whose first book gets id 1.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		isbns: make(map[string]int64),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewValidator(s.now)
	return s
}

// Validator returns the validator the store checks writes with.
func (s *Store) Validator() *Validator {
	return s.validator
}

// Insert validates c, assigns the next id and stores the book.
func (s *Store) Insert(c BookCandidate) (Book, error) {
	book, err := s.validator.ValidateCandidate(c)
	if err != nil {
		return Book{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if book.ISBN != nil {
		if _, taken := s.isbns[*book.ISBN]; taken {
			return Book{}, &ConflictError{ISBN: *book.ISBN}
		}
	}

	s.lastID++
	book.ID = s.lastID
	book.CreatedAt = s.now()
	book.UpdatedAt = nil
	s.books = append(s.books, book)
	if book.ISBN != nil {
		s.isbns[*book.ISBN] = book.ID
	}
	return book.clone(), nil
}

// Get returns the book with the given id.
func (s *Store) Get(id int64) (Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Book{}, &NotFoundError{ID: id}
	}
	return s.books[i].clone(), nil
}

// Update merges the fields present in p into the book with the given id
// and stamps UpdatedAt. Absent fields are left as they are.
func (s *Store) Update(id int64, p BookPatch) (Book, error) {
	changes, err := s.validator.ValidatePatch(p)
	if err != nil {
		return Book{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Book{}, &NotFoundError{ID: id}
	}
	if isbn, ok := changes.newISBN(); ok {
		if owner, taken := s.isbns[isbn]; taken && owner != id {
			return Book{}, &ConflictError{ISBN: isbn}
		}
	}

	book := s.books[i].clone()
	oldISBN := book.ISBN
	changes.apply(&book)
	updatedAt := s.now()
	book.UpdatedAt = &updatedAt

	if oldISBN != nil {
		delete(s.isbns, *oldISBN)
	}
	if book.ISBN != nil {
		s.isbns[*book.ISBN] = id
	}
	s.books[i] = book
	return book.clone(), nil
}

// Delete removes the book with the given id. Its id is never handed out again.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	if isbn := s.books[i].ISBN; isbn != nil {
		delete(s.isbns, *isbn)
	}
	s.books = slices.Delete(s.books, i, i+1)
	return nil
}

// All returns the books in insertion order. Each iteration reads a
// snapshot taken when it starts, so the sequence can be ranged over any
// number of times and never holds the lock while yielding.
func (s *Store) All() iter.Seq[Book] {
	return func(yield func(Book) bool) {
		for _, b := range s.snapshot() {
			if !yield(b) {
				return
			}
		}
	}
}

// Len returns the number of stored books.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books)
}

func (s *Store) snapshot() []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Book, len(s.books))
	for i, b := range s.books {
		out[i] = b.clone()
	}
	return out
}

// indexOf relies on ids being assigned in increasing order, which keeps
// s.books sorted by id. Callers hold s.mu.
func (s *Store) indexOf(id int64) int {
	i, found := slices.BinarySearchFunc(s.books, id, func(b Book, id int64) int {
		switch {
		case b.ID < id:
			return -1
		case b.ID > id:
			return 1
		default:
			return 0
		}
	})
	if !found {
		return -1
	}
	return i
}
