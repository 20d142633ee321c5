package persistence

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-shelf/core/query"
	"github.com/asaidimu/go-shelf/core/schema"
)

// Collection wraps a CollectionBase and adds event emission
type Collection struct {
	collection *CollectionBase
	bus        *events.TypedEventBus[PersistenceEvent]
	schema     *schema.SchemaDefinition
}

var _ PersistenceCollectionInterface = (*Collection)(nil)

// NewEventEmittingCollection creates a new event-emitting collection wrapper
func NewEventEmittingCollection(collection *CollectionBase) *Collection {
	return &Collection{
		collection: collection,
		bus:        collection.bus,
		schema:     collection.schema,
	}
}

// emitEvent is a helper method to emit events
func (e *Collection) emitEvent(event PersistenceEvent) {
	if e.bus != nil {
		e.bus.Emit(string(event.Type), event)
	}
}

// withEventEmission wraps an operation with start, success, and failure events
func withEventEmission[T any](
	e *Collection,
	operation string,
	startEventType PersistenceEventType,
	successEventType PersistenceEventType,
	failedEventType PersistenceEventType,
	input any,
	queryParam any,
	fn func() (T, error),
) (T, error) {
	startTime := time.Now()

	e.emitEvent(createEvent(startEventType, operation, e.schema.Name, input, nil, queryParam, nil, nil, startTime))

	result, err := fn()

	if err != nil {
		var issues []schema.Issue
		var verr *ValidationError
		if errors.As(err, &verr) {
			issues = verr.Issues
		}
		e.emitEvent(createEvent(failedEventType, operation, e.schema.Name, input, nil, queryParam, errorString(err), issues, startTime))
		var zero T
		return zero, err
	}

	e.emitEvent(createEvent(successEventType, operation, e.schema.Name, input, result, queryParam, nil, nil, startTime))
	return result, nil
}

// Name returns the collection name.
func (e *Collection) Name() string {
	return e.collection.Name()
}

// Schema returns the collection's schema definition.
func (e *Collection) Schema() *schema.SchemaDefinition {
	return e.collection.Schema()
}

// List wraps the collection's List method with event emission
func (e *Collection) List(ctx context.Context, q *query.QueryDSL) (*query.QueryResult, error) {
	return withEventEmission(e, "list",
		DocumentReadStart, DocumentReadSuccess, DocumentReadFailed,
		nil, q,
		func() (*query.QueryResult, error) {
			return e.collection.List(ctx, q)
		},
	)
}

// ParseQuery delegates to the underlying collection.
func (e *Collection) ParseQuery(values url.Values) (*query.QueryDSL, error) {
	return e.collection.ParseQuery(values)
}

// ParseID delegates to the underlying collection.
func (e *Collection) ParseID(raw string) (any, error) {
	return e.collection.ParseID(raw)
}

// Get wraps the collection's Get method with event emission
func (e *Collection) Get(ctx context.Context, id any) (schema.Document, error) {
	return withEventEmission(e, "get",
		DocumentReadStart, DocumentReadSuccess, DocumentReadFailed,
		map[string]any{"id": id}, nil,
		func() (schema.Document, error) {
			return e.collection.Get(ctx, id)
		},
	)
}

// Create wraps the collection's Create method with event emission
func (e *Collection) Create(ctx context.Context, fields map[string]any) (schema.Document, error) {
	return withEventEmission(e, "create",
		DocumentCreateStart, DocumentCreateSuccess, DocumentCreateFailed,
		fields, nil,
		func() (schema.Document, error) {
			return e.collection.Create(ctx, fields)
		},
	)
}

type replaceResult struct {
	Document schema.Document `json:"document"`
	Created  bool            `json:"created"`
}

// Replace wraps the collection's Replace method with event emission
func (e *Collection) Replace(ctx context.Context, id any, fields map[string]any) (schema.Document, bool, error) {
	result, err := withEventEmission(e, "replace",
		DocumentReplaceStart, DocumentReplaceSuccess, DocumentReplaceFailed,
		map[string]any{"id": id, "data": fields}, nil,
		func() (replaceResult, error) {
			doc, created, err := e.collection.Replace(ctx, id, fields)
			return replaceResult{Document: doc, Created: created}, err
		},
	)
	if err != nil {
		return nil, false, err
	}
	return result.Document, result.Created, nil
}

// Update wraps the collection's Update method with event emission
func (e *Collection) Update(ctx context.Context, id any, partial map[string]any) (schema.Document, error) {
	return withEventEmission(e, "update",
		DocumentUpdateStart, DocumentUpdateSuccess, DocumentUpdateFailed,
		map[string]any{"id": id, "data": partial}, nil,
		func() (schema.Document, error) {
			return e.collection.Update(ctx, id, partial)
		},
	)
}

// Delete wraps the collection's Delete method with event emission
func (e *Collection) Delete(ctx context.Context, id any) (schema.Document, error) {
	return withEventEmission(e, "delete",
		DocumentDeleteStart, DocumentDeleteSuccess, DocumentDeleteFailed,
		map[string]any{"id": id}, nil,
		func() (schema.Document, error) {
			return e.collection.Delete(ctx, id)
		},
	)
}

// Validate delegates to the underlying collection (no events needed for validation)
func (e *Collection) Validate(data map[string]any, loose bool) *schema.ValidationResult {
	return e.collection.Validate(data, loose)
}

// RegisterSubscription wraps subscription registration with event emission
func (e *Collection) RegisterSubscription(options RegisterSubscriptionOptions) string {
	id := e.collection.RegisterSubscription(options)

	e.emitEvent(createEvent(
		SubscriptionRegister,
		"register_subscription",
		e.schema.Name,
		map[string]any{
			"event":       options.Event,
			"label":       options.Label,
			"description": options.Description,
		},
		map[string]any{
			"subscriptionId": id,
		},
		nil,
		nil,
		nil,
		time.Now(),
	))

	return id
}

// UnregisterSubscription wraps subscription unregistration with event emission
func (e *Collection) UnregisterSubscription(id string) {
	e.collection.UnregisterSubscription(id)

	e.emitEvent(createEvent(
		SubscriptionUnregister,
		"unregister_subscription",
		e.schema.Name,
		map[string]any{
			"subscriptionId": id,
		},
		nil,
		nil,
		nil,
		nil,
		time.Now(),
	))
}

// Subscriptions delegates to the underlying collection
func (e *Collection) Subscriptions() ([]SubscriptionInfo, error) {
	return e.collection.Subscriptions()
}
