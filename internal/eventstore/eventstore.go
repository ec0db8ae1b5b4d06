package eventstore

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrAggregateNotFound   = errors.New("aggregate not found")
	ErrInvalidBatchSize    = errors.New("invalid batch size")
)

// Event is one immutable journal entry. ID is a journal-wide sequence
// starting at 1; Version counts the events of one aggregate starting at 1.
type Event struct {
	ID            int64           `json:"id"`
	AggregateID   int64           `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}

// clone returns a copy of e that shares no memory with the journal.
func (e Event) clone() Event {
	e.EventData = bytes.Clone(e.EventData)
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

type aggregateKey struct {
	typ string
	id  int64
}

// EventStore is an append-only, in-memory event journal with optimistic
// concurrency per aggregate. It lives as long as the process.
type EventStore struct {
	mu     sync.RWMutex
	events []Event
	byKey  map[aggregateKey][]int
	tracer trace.Tracer
	now    func() time.Time
}

// NewEventStore creates an empty journal. A nil now defaults to time.Now.
func NewEventStore(now func() time.Time) *EventStore {
	if now == nil {
		now = time.Now
	}
	return &EventStore{
		byKey:  make(map[aggregateKey][]int),
		tracer: otel.Tracer("libracatalog/eventstore"),
		now:    now,
	}
}

// AppendEvents atomically appends events after expectedVersion. The
// aggregate fields and versions of the given events are overwritten.
func (es *EventStore) AppendEvents(ctx context.Context, aggregateID int64, aggregateType string, expectedVersion int, events []Event) error {
	_, span := es.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.Int64("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	es.mu.Lock()
	defer es.mu.Unlock()

	key := aggregateKey{typ: aggregateType, id: aggregateID}
	currentVersion := len(es.byKey[key])
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	createdAt := es.now().UTC()
	for i, event := range events {
		event.ID = int64(len(es.events) + 1)
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = expectedVersion + i + 1
		event.CreatedAt = createdAt

		es.byKey[key] = append(es.byKey[key], len(es.events))
		es.events = append(es.events, event.clone())

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", event.ID),
			attribute.Int("event.version", event.Version),
			attribute.String("event.type", event.EventType),
		))
	}

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// LoadEvents returns the events of one aggregate with fromVersion <= version,
// and version <= toVersion when toVersion is positive.
func (es *EventStore) LoadEvents(ctx context.Context, aggregateID int64, aggregateType string, fromVersion, toVersion int) ([]Event, error) {
	_, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.Int64("aggregate.id", aggregateID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	es.mu.RLock()
	defer es.mu.RUnlock()

	positions, ok := es.byKey[aggregateKey{typ: aggregateType, id: aggregateID}]
	if !ok {
		return nil, ErrAggregateNotFound
	}

	events := make([]Event, 0, len(positions))
	for _, pos := range positions {
		event := es.events[pos]
		if event.Version < fromVersion || (toVersion > 0 && event.Version > toVersion) {
			continue
		}
		events = append(events, event.clone())
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// GetCurrentVersion returns the latest version of an aggregate, 0 if it has no events.
func (es *EventStore) GetCurrentVersion(ctx context.Context, aggregateID int64, aggregateType string) (int, error) {
	_, span := es.tracer.Start(ctx, "eventstore.get_version",
		trace.WithAttributes(
			attribute.Int64("aggregate.id", aggregateID),
		),
	)
	defer span.End()

	es.mu.RLock()
	version := len(es.byKey[aggregateKey{typ: aggregateType, id: aggregateID}])
	es.mu.RUnlock()

	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}

// StreamEvents returns up to batchSize events with ID greater than fromID,
// oldest first. It is the cursor used by change feeds.
func (es *EventStore) StreamEvents(ctx context.Context, fromID int64, batchSize int) ([]Event, error) {
	_, span := es.tracer.Start(ctx, "eventstore.stream",
		trace.WithAttributes(
			attribute.Int64("from.id", fromID),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	if batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if fromID < 0 {
		fromID = 0
	}

	es.mu.RLock()
	defer es.mu.RUnlock()

	// IDs are positions plus one, so the cursor indexes directly.
	start := int(min(fromID, int64(len(es.events))))
	end := min(start+batchSize, len(es.events))
	events := make([]Event, 0, end-start)
	for _, event := range es.events[start:end] {
		events = append(events, event.clone())
	}

	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events, nil
}
