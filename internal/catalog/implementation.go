// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"libracatalog/internal/eventstore"
	"libracatalog/internal/logging"
)

// service implements the Service interface.
type service struct {
	store       *Store
	eventStore  *eventstore.EventStore
	rateLimiter *rate.Limiter
	tracer      trace.Tracer

	// writeMu keeps journal order equal to store mutation order.
	writeMu sync.Mutex
}

// Option configures the service.
type Option func(*service)

// WithWriteLimit throttles create, update and delete to r per second with
// the given burst. Reads are never throttled.
func WithWriteLimit(r rate.Limit, burst int) Option {
	return func(s *service) {
		s.rateLimiter = rate.NewLimiter(r, burst)
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) {
		s.tracer = tp.Tracer("libracatalog/catalog")
	}
}

// NewService creates a new catalog service instance.
func NewService(store *Store, es *eventstore.EventStore, opts ...Option) Service {
	s := &service{
		store:       store,
		eventStore:  es,
		rateLimiter: rate.NewLimiter(rate.Inf, 0),
		tracer:      otel.Tracer("libracatalog/catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	booksGauge.Set(float64(store.Len()))
	return s
}

// CreateBook validates and stores a new book.
func (s *service) CreateBook(ctx context.Context, c BookCandidate) (_ *Book, err error) {
	ctx, done := s.observe(ctx, "create_book")
	defer func() { done(err) }()

	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	book, err := s.store.Insert(c)
	if err != nil {
		return nil, err
	}
	booksGauge.Set(float64(s.store.Len()))
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("book.id", book.ID))

	s.record(ctx, book.ID, EventBookAdded, book)
	logging.Ctx(ctx).Info().Int64("book_id", book.ID).Str("title", book.Title).Msg("book created")
	return &book, nil
}

// ListBooks returns one filtered page of the catalog.
func (s *service) ListBooks(ctx context.Context, q ListQuery) (_ *Page, err error) {
	ctx, done := s.observe(ctx, "list_books")
	defer func() { done(err) }()

	filter, err := s.store.Validator().ValidateQuery(q)
	if err != nil {
		return nil, err
	}
	page := Query(s.store.All(), filter)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("page.total", page.Total),
		attribute.Int("page.returned", len(page.Books)),
	)
	return &page, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id int64) (_ *Book, err error) {
	_, done := s.observe(ctx, "get_book", attribute.Int64("book.id", id))
	defer func() { done(err) }()

	book, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBook merges the present fields of p into a stored book.
func (s *service) UpdateBook(ctx context.Context, id int64, p BookPatch) (_ *Book, err error) {
	ctx, done := s.observe(ctx, "update_book", attribute.Int64("book.id", id))
	defer func() { done(err) }()

	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	book, err := s.store.Update(id, p)
	if err != nil {
		return nil, err
	}

	s.record(ctx, id, EventBookUpdated, book)
	logging.Ctx(ctx).Info().Int64("book_id", id).Msg("book updated")
	return &book, nil
}

// DeleteBook removes a book from the catalog.
func (s *service) DeleteBook(ctx context.Context, id int64) (err error) {
	ctx, done := s.observe(ctx, "delete_book", attribute.Int64("book.id", id))
	defer func() { done(err) }()

	if !s.rateLimiter.Allow() {
		return ErrRateLimited
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Delete(id); err != nil {
		return err
	}
	booksGauge.Set(float64(s.store.Len()))

	s.record(ctx, id, EventBookRemoved, BookRemovedEvent{ID: id})
	logging.Ctx(ctx).Info().Int64("book_id", id).Msg("book deleted")
	return nil
}

// Statistics summarises the whole catalog.
func (s *service) Statistics(ctx context.Context) (_ *Statistics, err error) {
	ctx, done := s.observe(ctx, "statistics")
	defer func() { done(err) }()

	stats := Summarize(s.store.All())
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("books.total", stats.TotalBooks))
	return &stats, nil
}

// BookHistory loads every journal entry of one book.
func (s *service) BookHistory(ctx context.Context, id int64) (_ []eventstore.Event, err error) {
	ctx, done := s.observe(ctx, "book_history", attribute.Int64("book.id", id))
	defer func() { done(err) }()

	events, err := s.eventStore.LoadEvents(ctx, id, AggregateType, 0, 0)
	if errors.Is(err, eventstore.ErrAggregateNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return events, nil
}

// Changes reads the journal after a cursor.
func (s *service) Changes(ctx context.Context, after int64, limit int) (_ []eventstore.Event, err error) {
	ctx, done := s.observe(ctx, "changes",
		attribute.Int64("cursor.after", after),
		attribute.Int("cursor.limit", limit),
	)
	defer func() { done(err) }()

	if err := s.store.Validator().ValidateChanges(after, limit); err != nil {
		return nil, err
	}
	events, err := s.eventStore.StreamEvents(ctx, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to stream events: %w", err)
	}
	return events, nil
}

// record appends one event for a mutation that already happened. The store
// is authoritative, so a journal failure is logged and not returned.
// Callers hold writeMu.
func (s *service) record(ctx context.Context, id int64, eventType string, payload any) {
	if err := s.appendEvent(ctx, id, eventType, payload); err != nil {
		logging.Ctx(ctx).Error().Err(err).Int64("book_id", id).Str("event_type", eventType).
			Msg("failed to record change")
	}
}

func (s *service) appendEvent(ctx context.Context, id int64, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := eventstore.Event{
		EventType: eventType,
		EventData: data,
	}
	if reqID := logging.RequestID(ctx); reqID != "" {
		event.Metadata = map[string]any{"request_id": reqID}
	}

	version, err := s.eventStore.GetCurrentVersion(ctx, id, AggregateType)
	if err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	if err := s.eventStore.AppendEvents(ctx, id, AggregateType, version, []eventstore.Event{event}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// observe starts the span of one operation. The returned func ends it and
// records the outcome in metrics and logs.
func (s *service) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "catalog."+op, trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(err error) {
		outcome := outcomeOf(err)
		operationsTotal.WithLabelValues(op, outcome).Inc()
		operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("outcome", outcome))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)

			level := zerolog.DebugLevel
			if outcome == outcomeError {
				level = zerolog.ErrorLevel
			}
			logging.Ctx(ctx).WithLevel(level).Err(err).Str("operation", op).Msg("catalog operation failed")
		}
		span.End()
	}
}
