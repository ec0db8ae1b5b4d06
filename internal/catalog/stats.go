package catalog

import (
	"iter"
	"math"
)

// Summarize computes catalog statistics from one pass over books. The
// average is rounded half to even.
func Summarize(books iter.Seq[Book]) Statistics {
	var (
		counts     [genreCount]int
		totalPages int
		years      *YearRange
		stats      Statistics
	)
	for b := range books {
		stats.TotalBooks++
		totalPages += b.Pages
		counts[b.Genre]++
		switch {
		case years == nil:
			years = &YearRange{Earliest: b.PublicationYear, Latest: b.PublicationYear}
		case b.PublicationYear < years.Earliest:
			years.Earliest = b.PublicationYear
		case b.PublicationYear > years.Latest:
			years.Latest = b.PublicationYear
		}
	}

	stats.Genres = make(map[Genre]int)
	for _, g := range Genres() {
		if counts[g] > 0 {
			stats.Genres[g] = counts[g]
		}
	}
	if stats.TotalBooks > 0 {
		stats.AveragePages = int(math.RoundToEven(float64(totalPages) / float64(stats.TotalBooks)))
	}
	stats.PublicationYearRange = years
	return stats
}
