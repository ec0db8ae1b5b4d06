// internal/catalog/service.go
package catalog

import (
	"context"

	"libracatalog/internal/eventstore"
)

// Service defines the interface for the catalog service.
type Service interface {
	CreateBook(ctx context.Context, c BookCandidate) (*Book, error)
	ListBooks(ctx context.Context, q ListQuery) (*Page, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	UpdateBook(ctx context.Context, id int64, p BookPatch) (*Book, error)
	DeleteBook(ctx context.Context, id int64) error
	Statistics(ctx context.Context) (*Statistics, error)

	// BookHistory returns the journal entries of one book, oldest first.
	// It fails with ErrNotFound only if the book never existed.
	BookHistory(ctx context.Context, id int64) ([]eventstore.Event, error)
	// Changes returns up to limit journal entries with an id above after.
	Changes(ctx context.Context, after int64, limit int) ([]eventstore.Event, error)
}
