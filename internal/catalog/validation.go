package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var isbnRX = regexp.MustCompile(`^\d{10}(\d{3})?$`)

// candidateFields is the create payload after trimming, in the shape the
// struct validator checks.
type candidateFields struct {
	Title           string  `json:"title" validate:"required,max=200"`
	Author          string  `json:"author" validate:"required,max=100"`
	Genre           string  `json:"genre" validate:"required,genre"`
	PublicationYear int     `json:"publication_year" validate:"min=1000,notfuture"`
	Pages           int     `json:"pages" validate:"gt=0,max=10000"`
	ISBN            *string `json:"isbn" validate:"omitnil,isbndigits"`
}

// patchFields mirrors candidateFields with every field optional.
type patchFields struct {
	Title           *string `json:"title" validate:"omitnil,min=1,max=200"`
	Author          *string `json:"author" validate:"omitnil,min=1,max=100"`
	Genre           *string `json:"genre" validate:"omitnil,genre"`
	PublicationYear *int    `json:"publication_year" validate:"omitnil,min=1000,notfuture"`
	Pages           *int    `json:"pages" validate:"omitnil,gt=0,max=10000"`
	ISBN            *string `json:"isbn" validate:"omitnil,isbndigits"`
}

type queryFields struct {
	Skip   int     `json:"skip" validate:"min=0"`
	Limit  int     `json:"limit" validate:"min=1,max=100"`
	Genre  *string `json:"genre" validate:"omitnil,genre"`
	Author *string `json:"author" validate:"omitnil,min=1"`
	Year   *int    `json:"year" validate:"omitnil,min=1000,notfuture"`
}

type changesFields struct {
	After int64 `json:"after" validate:"min=0"`
	Limit int   `json:"limit" validate:"min=1,max=100"`
}

var fieldOrder = []string{"title", "author", "genre", "publication_year", "pages", "isbn"}

// Validator checks and normalises create, update and list input. The
// current year is read from now at every call, so a year accepted today
// may be rejected by an earlier clock but is never re-checked afterwards.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewValidator builds a Validator. A nil now defaults to time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      now,
	}
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.validate.RegisterValidation("genre", func(fl validator.FieldLevel) bool {
		_, err := ParseGenre(fl.Field().String())
		return err == nil
	})
	_ = v.validate.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= int64(v.now().Year())
	})
	_ = v.validate.RegisterValidation("isbndigits", func(fl validator.FieldLevel) bool {
		return isbnRX.MatchString(fl.Field().String())
	})
	return v
}

// ValidateCandidate returns the normalised book described by c, without id
// or timestamps, or a *ValidationError listing every violated constraint.
func (v *Validator) ValidateCandidate(c BookCandidate) (Book, error) {
	fields := candidateFields{
		Title:           strings.TrimSpace(c.Title),
		Author:          strings.TrimSpace(c.Author),
		Genre:           c.Genre,
		PublicationYear: c.PublicationYear,
		Pages:           c.Pages,
		ISBN:            c.ISBN,
	}
	verr := &ValidationError{}
	v.collect(verr, fields)
	if err := verr.orNil(); err != nil {
		return Book{}, err
	}

	genre, _ := ParseGenre(fields.Genre)
	book := Book{
		Title:           normalizeText(fields.Title),
		Author:          normalizeText(fields.Author),
		Genre:           genre,
		PublicationYear: fields.PublicationYear,
		Pages:           fields.Pages,
	}
	if c.ISBN != nil {
		isbn := *c.ISBN
		book.ISBN = &isbn
	}
	return book, nil
}

// ValidatePatch checks only the fields present in p. An explicit null is
// accepted for isbn, where it clears the value, and rejected elsewhere.
func (v *Validator) ValidatePatch(p BookPatch) (bookChanges, error) {
	verr := &ValidationError{}
	var fields patchFields

	fields.Title = trimmedField(verr, "title", p.Title)
	fields.Author = trimmedField(verr, "author", p.Author)
	fields.Genre = pointerField(verr, "genre", p.Genre)
	fields.PublicationYear = pointerField(verr, "publication_year", p.PublicationYear)
	fields.Pages = pointerField(verr, "pages", p.Pages)
	if isbn, ok := p.ISBN.Get(); ok {
		fields.ISBN = &isbn
	}

	v.collect(verr, fields)
	if err := verr.orNil(); err != nil {
		slices.SortStableFunc(verr.Fields, func(a, b FieldError) int {
			return slices.Index(fieldOrder, a.Field) - slices.Index(fieldOrder, b.Field)
		})
		return bookChanges{}, err
	}

	var changes bookChanges
	if fields.Title != nil {
		changes.title = Some(normalizeText(*fields.Title))
	}
	if fields.Author != nil {
		changes.author = Some(normalizeText(*fields.Author))
	}
	if fields.Genre != nil {
		genre, _ := ParseGenre(*fields.Genre)
		changes.genre = Some(genre)
	}
	if fields.PublicationYear != nil {
		changes.publicationYear = Some(*fields.PublicationYear)
	}
	if fields.Pages != nil {
		changes.pages = Some(*fields.Pages)
	}
	switch {
	case p.ISBN.Null():
		changes.isbn = Null[string]()
	case fields.ISBN != nil:
		changes.isbn = Some(*fields.ISBN)
	}
	return changes, nil
}

// ValidateQuery checks the pagination bounds and filters of a listing.
func (v *Validator) ValidateQuery(q ListQuery) (Filter, error) {
	verr := &ValidationError{}
	v.collect(verr, queryFields(q))
	if err := verr.orNil(); err != nil {
		return Filter{}, err
	}

	f := Filter{Skip: q.Skip, Limit: q.Limit, Author: q.Author, Year: q.Year}
	if q.Genre != nil {
		genre, _ := ParseGenre(*q.Genre)
		f.Genre = &genre
	}
	return f, nil
}

// ValidateChanges checks the cursor and batch size of a change feed read.
func (v *Validator) ValidateChanges(after int64, limit int) error {
	verr := &ValidationError{}
	v.collect(verr, changesFields{After: after, Limit: limit})
	return verr.orNil()
}

func (v *Validator) collect(verr *ValidationError, s any) {
	err := v.validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add("", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verr.add(fe.Field(), v.message(fe))
	}
}

func (v *Validator) message(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		if isString {
			return "cannot be empty or only whitespace"
		}
		return "is required"
	case "min":
		if isString {
			return "cannot be empty or only whitespace"
		}
		return "must be at least " + fe.Param()
	case "max":
		if isString {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "genre":
		names := make([]string, 0, genreCount)
		for _, g := range Genres() {
			names = append(names, g.String())
		}
		return "must be one of: " + strings.Join(names, ", ")
	case "notfuture":
		return fmt.Sprintf("cannot be greater than %d", v.now().Year())
	case "isbndigits":
		return "must be exactly 10 or 13 digits"
	default:
		return "is invalid"
	}
}

func trimmedField(verr *ValidationError, name string, o Optional[string]) *string {
	p := pointerField(verr, name, o)
	if p != nil {
		trimmed := strings.TrimSpace(*p)
		p = &trimmed
	}
	return p
}

func pointerField[T any](verr *ValidationError, name string, o Optional[T]) *T {
	if o.Null() {
		verr.add(name, "may not be null")
		return nil
	}
	if v, ok := o.Get(); ok {
		return &v
	}
	return nil
}

// normalizeText title-cases an already trimmed title or author. Applying
// it to its own output returns the same string.
func normalizeText(s string) string {
	return cases.Title(language.Und).String(s)
}

// bookChanges is a validated, normalised patch ready to merge.
type bookChanges struct {
	title           Optional[string]
	author          Optional[string]
	genre           Optional[Genre]
	publicationYear Optional[int]
	pages           Optional[int]
	isbn            Optional[string]
}

// apply copies the present fields onto b and leaves the others untouched.
func (c bookChanges) apply(b *Book) {
	if v, ok := c.title.Get(); ok {
		b.Title = v
	}
	if v, ok := c.author.Get(); ok {
		b.Author = v
	}
	if v, ok := c.genre.Get(); ok {
		b.Genre = v
	}
	if v, ok := c.publicationYear.Get(); ok {
		b.PublicationYear = v
	}
	if v, ok := c.pages.Get(); ok {
		b.Pages = v
	}
	switch v, ok := c.isbn.Get(); {
	case ok:
		b.ISBN = &v
	case c.isbn.Null():
		b.ISBN = nil
	}
}

// newISBN returns the ISBN the patch assigns, if it assigns one.
func (c bookChanges) newISBN() (string, bool) {
	return c.isbn.Get()
}
