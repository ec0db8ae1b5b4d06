// internal/catalog/handler.go
package catalog

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"libracatalog/internal/logging"
)

const (
	maxBodyBytes = 1 << 20
	// changes page size when ?limit is omitted
	defaultChangesLimit = 50
)

// Error codes carried in ErrorResponse.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeDuplicate   = "DUPLICATE_ISBN"
	CodeNotFound    = "BOOK_NOT_FOUND"
	CodeRateLimited = "RATE_LIMITED"
	CodeBadRequest  = "BAD_REQUEST"
	CodeInternal    = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail    string       `json:"detail"`
	ErrorCode string       `json:"error_code"`
	Timestamp time.Time    `json:"timestamp"`
	Errors    []FieldError `json:"errors,omitempty"`
}

type Handler struct {
	service   Service
	validator *Validator
	now       func() time.Time
}

func NewHandler(service Service) *Handler {
	h := &Handler{service: service, now: time.Now}
	h.validator = NewValidator(func() time.Time { return h.now() })
	return h
}

// Routes mounts the book endpoints under /books.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/books", func(r chi.Router) {
		r.Post("/", h.handleCreateBook)
		r.Get("/", h.handleListBooks)
		r.Get("/stats/summary", h.handleStatistics)
		r.Get("/changes", h.handleChanges)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetBook)
			r.Put("/", h.handleUpdateBook)
			r.Patch("/", h.handleUpdateBook)
			r.Delete("/", h.handleDeleteBook)
			r.Get("/history", h.handleBookHistory)
		})
	})
}

func (h *Handler) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var c BookCandidate
	typeErrs, ok := h.decodeBody(w, r, &c)
	if !ok {
		return
	}
	if typeErrs != nil {
		_, err := h.validator.ValidateCandidate(c)
		h.writeError(w, r, typeErrs.merge(err))
		return
	}

	book, err := h.service.CreateBook(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	verr := &ValidationError{}
	q := ListQuery{
		Skip:  intParam(verr, params.Get("skip"), "skip", 0),
		Limit: intParam(verr, params.Get("limit"), "limit", DefaultLimit),
	}
	if params.Has("genre") {
		genre := params.Get("genre")
		q.Genre = &genre
	}
	if params.Has("author") {
		author := params.Get("author")
		q.Author = &author
	}
	if params.Has("year") {
		year := intParam(verr, params.Get("year"), "year", 0)
		q.Year = &year
	}
	if err := verr.orNil(); err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.service.ListBooks(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *Handler) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}
	var p BookPatch
	typeErrs, ok := h.decodeBody(w, r, &p)
	if !ok {
		return
	}
	if typeErrs != nil {
		_, err := h.validator.ValidatePatch(p)
		h.writeError(w, r, typeErrs.merge(err))
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *Handler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleBookHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	events, err := h.service.BookHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleChanges(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	verr := &ValidationError{}
	after := intParam(verr, params.Get("after"), "after", 0)
	limit := intParam(verr, params.Get("limit"), "limit", defaultChangesLimit)
	if err := verr.orNil(); err != nil {
		h.writeError(w, r, err)
		return
	}

	events, err := h.service.Changes(r.Context(), int64(after), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// bookID parses the {id} path parameter. It writes a 422 and reports false
// when the id is not a positive integer.
func (h *Handler) bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	switch {
	case err != nil:
		h.writeError(w, r, &ValidationError{Fields: []FieldError{{Field: "book_id", Message: "must be a valid integer"}}})
		return 0, false
	case id <= 0:
		h.writeError(w, r, &ValidationError{Fields: []FieldError{{Field: "book_id", Message: "must be greater than 0"}}})
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON object into v. It writes a 400 and reports false
// when the body is missing or malformed. Fields holding the wrong JSON type
// are left zero and returned as failures, so the caller can report them
// together with the rest of the payload's violations.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) (*ValidationError, bool) {
	if r.ContentLength == 0 {
		h.writeStatus(w, r, http.StatusBadRequest, CodeBadRequest, "request body is required", nil)
		return nil, false
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeStatus(w, r, http.StatusBadRequest, CodeBadRequest, "request body is too large or unreadable", nil)
		return nil, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		h.writeStatus(w, r, http.StatusBadRequest, CodeBadRequest, "request body is required", nil)
		return nil, false
	}

	err = json.Unmarshal(data, v)
	if err == nil {
		return nil, true
	}
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		h.writeStatus(w, r, http.StatusBadRequest, CodeBadRequest, "malformed JSON body", nil)
		return nil, false
	}

	typeErrs, err := decodeFields(data, v)
	if err != nil || len(typeErrs.Fields) == 0 {
		h.writeError(w, r, &ValidationError{Fields: []FieldError{{Field: "body", Message: "must be a JSON object"}}})
		return nil, false
	}
	return typeErrs, true
}

// decodeFields resets v and decodes the object in data one struct field at
// a time, collecting a failure for every field that does not decode.
func decodeFields(data []byte, v any) (*ValidationError, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	rv := reflect.ValueOf(v).Elem()
	rv.SetZero()
	verr := &ValidationError{}
	for i := range rv.NumField() {
		name := strings.SplitN(rv.Type().Field(i).Tag.Get("json"), ",", 2)[0]
		msg, ok := raw[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, rv.Field(i).Addr().Interface()); err != nil {
			message := "is invalid"
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				message = "must be of type " + typeErr.Type.String()
			}
			verr.add(name, message)
		}
	}
	return verr, nil
}

// writeError maps the catalog error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *ValidationError
		conflict *ConflictError
		notFound *NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		h.writeStatus(w, r, http.StatusUnprocessableEntity, CodeValidation, "validation failed", verr.Fields)
	case errors.As(err, &conflict):
		h.writeStatus(w, r, http.StatusConflict, CodeDuplicate, conflict.Error(), nil)
	case errors.As(err, &notFound):
		h.writeStatus(w, r, http.StatusNotFound, CodeNotFound, notFound.Error(), nil)
	case errors.Is(err, ErrRateLimited):
		h.writeStatus(w, r, http.StatusTooManyRequests, CodeRateLimited, err.Error(), nil)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		h.writeStatus(w, r, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
	}
}

func (h *Handler) writeStatus(w http.ResponseWriter, r *http.Request, status int, code, detail string, fields []FieldError) {
	writeJSON(w, status, ErrorResponse{
		Detail:    detail,
		ErrorCode: code,
		Timestamp: h.now().UTC(),
		Errors:    fields,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// intParam parses an optional integer query parameter, recording a field
// failure and returning def when it does not parse.
func intParam(verr *ValidationError, raw, field string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.add(field, "must be a valid integer")
		return def
	}
	return n
}
