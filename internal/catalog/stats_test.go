package catalog

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(slices.Values([]Book(nil)))
	assert.Equal(t, 0, stats.TotalBooks)
	assert.NotNil(t, stats.Genres)
	assert.Empty(t, stats.Genres)
	assert.Equal(t, 0, stats.AveragePages)
	assert.Nil(t, stats.PublicationYearRange)
}

func TestSummarize(t *testing.T) {
	stats := Summarize(slices.Values(library()))
	assert.Equal(t, 5, stats.TotalBooks)
	assert.Equal(t, map[Genre]int{
		GenreFantasy:        2,
		GenreScienceFiction: 2,
		GenreMystery:        1,
	}, stats.Genres)
	// (310+412+365+256+501)/5 = 368.8
	assert.Equal(t, 369, stats.AveragePages)
	require.NotNil(t, stats.PublicationYearRange)
	assert.Equal(t, YearRange{Earliest: 1935, Latest: 1977}, *stats.PublicationYearRange)
}

func TestSummarizeRoundsHalfToEven(t *testing.T) {
	tests := []struct {
		pages []int
		want  int
	}{
		{[]int{100, 101}, 100},
		{[]int{101, 102}, 102},
		{[]int{1, 2, 2}, 2},
		{[]int{7}, 7},
	}
	for _, tt := range tests {
		var books []Book
		for _, p := range tt.pages {
			books = append(books, Book{Genre: GenreFiction, Pages: p, PublicationYear: 2000})
		}
		assert.Equal(t, tt.want, Summarize(slices.Values(books)).AveragePages, "pages %v", tt.pages)
	}
}

func TestSummarizeSingleBookRange(t *testing.T) {
	stats := Summarize(slices.Values([]Book{{Genre: GenreBiography, Pages: 10, PublicationYear: 1850}}))
	assert.Equal(t, &YearRange{Earliest: 1850, Latest: 1850}, stats.PublicationYearRange)
}

func TestSummarizeReflectsStore(t *testing.T) {
	store := NewStore(WithClock(fixedClock))
	_, err := store.Insert(dune())
	require.NoError(t, err)
	_, err = store.Insert(candidate("emma", GenreRomance, 1815))
	require.NoError(t, err)

	stats := Summarize(store.All())
	assert.Equal(t, 2, stats.TotalBooks)
	assert.Equal(t, map[Genre]int{GenreScienceFiction: 1, GenreRomance: 1}, stats.Genres)

	require.NoError(t, store.Delete(1))
	stats = Summarize(store.All())
	assert.Equal(t, 1, stats.TotalBooks)
	assert.Equal(t, &YearRange{Earliest: 1815, Latest: 1815}, stats.PublicationYearRange)
}
