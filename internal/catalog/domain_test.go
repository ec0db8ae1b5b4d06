package catalog

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenreRoundTrip(t *testing.T) {
	for _, g := range Genres() {
		text, err := g.MarshalText()
		require.NoError(t, err)

		var parsed Genre
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, g, parsed)
	}
	assert.Len(t, Genres(), 9)
}

func TestGenreZeroValueIsInvalid(t *testing.T) {
	var g Genre
	assert.False(t, g.Valid())
	_, err := g.MarshalText()
	assert.Error(t, err)

	_, err = ParseGenre("Fiction")
	assert.Error(t, err, "genre names are case sensitive")
}

func TestBookJSONShape(t *testing.T) {
	book := Book{
		ID:              1,
		Title:           "Dune",
		Author:          "Frank Herbert",
		Genre:           GenreScienceFiction,
		PublicationYear: 1965,
		Pages:           412,
		CreatedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(book)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 1,
		"title": "Dune",
		"author": "Frank Herbert",
		"genre": "science-fiction",
		"publication_year": 1965,
		"pages": 412,
		"isbn": null,
		"created_at": "2025-03-01T12:00:00Z",
		"updated_at": null
	}`, string(data))
}

func TestBookPatchDistinguishesAbsentFromNull(t *testing.T) {
	var p BookPatch
	require.NoError(t, json.Unmarshal([]byte(`{"pages": 500, "isbn": null}`), &p))

	pages, ok := p.Pages.Get()
	assert.True(t, ok)
	assert.Equal(t, 500, pages)

	assert.True(t, p.ISBN.Present())
	assert.True(t, p.ISBN.Null())
	_, ok = p.ISBN.Get()
	assert.False(t, ok)

	assert.False(t, p.Title.Present())
	assert.False(t, p.Title.Null())
	assert.False(t, p.Empty())

	var empty BookPatch
	require.NoError(t, json.Unmarshal([]byte(`{}`), &empty))
	assert.True(t, empty.Empty())
}

func TestBookPatchMarshalsPresentFieldsOnly(t *testing.T) {
	p := BookPatch{
		Title: Some("Dune Messiah"),
		ISBN:  Null[string](),
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "Dune Messiah", "isbn": null}`, string(data))

	var back BookPatch
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)
}

func TestStatisticsJSON(t *testing.T) {
	stats := Statistics{
		TotalBooks:           3,
		Genres:               map[Genre]int{GenreFantasy: 2, GenreHistory: 1},
		AveragePages:         300,
		PublicationYearRange: &YearRange{Earliest: 1937, Latest: 2001},
	}
	data, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"total_books": 3,
		"genres": {"fantasy": 2, "history": 1},
		"average_pages": 300,
		"publication_year_range": {"earliest": 1937, "latest": 2001}
	}`, string(data))

	var back Statistics
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, stats, back)

	data, err = json.Marshal(Statistics{Genres: map[Genre]int{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_books":0,"genres":{},"average_pages":0,"publication_year_range":null}`, string(data))
}
