package clients

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libracatalog/internal/catalog"
	"libracatalog/internal/eventstore"
)

func newTestClient(t *testing.T) *CatalogClient {
	t.Helper()
	svc := catalog.NewService(catalog.NewStore(), eventstore.NewEventStore(nil))
	r := chi.NewRouter()
	catalog.NewHandler(svc).Routes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return NewCatalogClient(ts.URL, ts.Client())
}

func ptr[T any](v T) *T { return &v }

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	created, err := client.CreateBook(ctx, catalog.BookCandidate{
		Title:           "dune",
		Author:          "frank herbert",
		Genre:           "science-fiction",
		PublicationYear: 1965,
		Pages:           412,
		ISBN:            ptr("9780441013593"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "Dune", created.Title)
	assert.Equal(t, "Frank Herbert", created.Author)
	assert.Nil(t, created.UpdatedAt)

	_, err = client.CreateBook(ctx, catalog.BookCandidate{
		Title: "Dune", Author: "Frank Herbert", Genre: "science-fiction",
		PublicationYear: 1965, Pages: 412, ISBN: ptr("9780441013593"),
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Status)
	assert.ErrorIs(t, err, catalog.ErrConflict)

	updated, err := client.UpdateBook(ctx, created.ID, catalog.BookPatch{Pages: catalog.Some(500)})
	require.NoError(t, err)
	assert.Equal(t, 500, updated.Pages)
	assert.Equal(t, created.ISBN, updated.ISBN)
	require.NotNil(t, updated.UpdatedAt)

	stats, err := client.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[catalog.Genre]int{catalog.GenreScienceFiction: 1}, stats.Genres)

	require.NoError(t, client.DeleteBook(ctx, created.ID))
	_, err = client.GetBook(ctx, created.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	page, err := client.ListBooks(ctx, catalog.ListQuery{Skip: 0, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, &catalog.Page{Books: []catalog.Book{}, Total: 0, PageNumber: 1, Limit: 10, HasNext: false}, page)

	history, err := client.BookHistory(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	changes, err := client.Changes(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, catalog.EventBookRemoved, changes[1].EventType)
}

func TestClientDecodesValidationErrors(t *testing.T) {
	client := newTestClient(t)

	_, err := client.ListBooks(context.Background(), catalog.ListQuery{Limit: 500, Genre: ptr("poetry")})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)
	assert.Equal(t, catalog.CodeValidation, apiErr.Code)
	assert.ErrorIs(t, err, catalog.ErrValidation)
	require.Len(t, apiErr.Errors, 2)
	assert.Equal(t, "limit", apiErr.Errors[0].Field)
	assert.Equal(t, "genre", apiErr.Errors[1].Field)
}

func TestClientUpdateClearsISBN(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	created, err := client.CreateBook(ctx, catalog.BookCandidate{
		Title: "Emma", Author: "Jane Austen", Genre: "romance", PublicationYear: 1815, Pages: 474, ISBN: ptr("0141439580"),
	})
	require.NoError(t, err)

	updated, err := client.UpdateBook(ctx, created.ID, catalog.BookPatch{ISBN: catalog.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, updated.ISBN)
	assert.Equal(t, "Emma", updated.Title)
}

func TestAPIErrorIs(t *testing.T) {
	assert.ErrorIs(t, &APIError{Code: catalog.CodeRateLimited}, catalog.ErrRateLimited)
	assert.NotErrorIs(t, &APIError{Code: catalog.CodeInternal}, catalog.ErrNotFound)
	assert.Equal(t, "catalog api: 404 BOOK_NOT_FOUND: book with ID 3 not found",
		(&APIError{Status: 404, Code: catalog.CodeNotFound, Detail: "book with ID 3 not found"}).Error())
}
