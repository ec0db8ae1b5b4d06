package catalog

import (
	"iter"
	"strings"
)

// Filter is a validated listing request. Nil fields match every book.
type Filter struct {
	Skip   int
	Limit  int
	Genre  *Genre
	Author *string
	Year   *int
}

// Matches reports whether b passes every filter that is set.
func (f Filter) Matches(b Book) bool {
	if f.Genre != nil && b.Genre != *f.Genre {
		return false
	}
	if f.Author != nil && !strings.Contains(strings.ToLower(b.Author), strings.ToLower(*f.Author)) {
		return false
	}
	if f.Year != nil && b.PublicationYear != *f.Year {
		return false
	}
	return true
}

// Query filters books in their original order, counts every match and
// returns the matches in [Skip, Skip+Limit). f must come from
// Validator.ValidateQuery, so Limit is at least 1.
func Query(books iter.Seq[Book], f Filter) Page {
	page := Page{
		Books:      []Book{},
		PageNumber: f.Skip/f.Limit + 1,
		Limit:      f.Limit,
	}
	for b := range books {
		if !f.Matches(b) {
			continue
		}
		if page.Total >= f.Skip && len(page.Books) < f.Limit {
			page.Books = append(page.Books, b)
		}
		page.Total++
	}
	// Skip may be near MaxInt, so compare without summing.
	page.HasNext = page.Total > f.Skip && page.Total-f.Skip > f.Limit
	return page
}
