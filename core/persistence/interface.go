package persistence

import (
	"context"
	"net/url"

	"github.com/asaidimu/go-shelf/core/query"
	"github.com/asaidimu/go-shelf/core/schema"
)

// PersistenceEventType defines the possible event types for persistence operations.
type PersistenceEventType string

const (
	DocumentCreateStart     PersistenceEventType = "document:create:start"
	DocumentCreateSuccess   PersistenceEventType = "document:create:success"
	DocumentCreateFailed    PersistenceEventType = "document:create:failed"
	DocumentReadStart       PersistenceEventType = "document:read:start"
	DocumentReadSuccess     PersistenceEventType = "document:read:success"
	DocumentReadFailed      PersistenceEventType = "document:read:failed"
	DocumentReplaceStart    PersistenceEventType = "document:replace:start"
	DocumentReplaceSuccess  PersistenceEventType = "document:replace:success"
	DocumentReplaceFailed   PersistenceEventType = "document:replace:failed"
	DocumentUpdateStart     PersistenceEventType = "document:update:start"
	DocumentUpdateSuccess   PersistenceEventType = "document:update:success"
	DocumentUpdateFailed    PersistenceEventType = "document:update:failed"
	DocumentDeleteStart     PersistenceEventType = "document:delete:start"
	DocumentDeleteSuccess   PersistenceEventType = "document:delete:success"
	DocumentDeleteFailed    PersistenceEventType = "document:delete:failed"
	StorageReadFailed       PersistenceEventType = "storage:read:failed"
	StorageWriteFailed      PersistenceEventType = "storage:write:failed"
	CollectionCreateSuccess PersistenceEventType = "collection:create:success"
	SubscriptionRegister    PersistenceEventType = "subscription:register"
	SubscriptionUnregister  PersistenceEventType = "subscription:unregister"
)

// PersistenceEvent represents events emitted during persistence operations.
type PersistenceEvent struct {
	Type       PersistenceEventType `json:"type"`                 // The type of event (e.g., 'document:create:start').
	Timestamp  int64                `json:"timestamp"`            // Timestamp when the event occurred (Unix milliseconds).
	Operation  string               `json:"operation"`            // The operation being performed (e.g., 'create').
	Collection *string              `json:"collection,omitempty"` // Name of the collection affected (if applicable).
	Input      any                  `json:"input,omitempty"`      // Data passed to the operation (if applicable).
	Output     any                  `json:"output,omitempty"`     // Data returned by the operation (if applicable).
	Error      *string              `json:"error,omitempty"`      // Error message if the operation failed.
	Issues     []schema.Issue       `json:"issues,omitempty"`     // Issues that caused the operation to fail.
	Query      any                  `json:"query,omitempty"`      // Query used in the operation (if applicable).
	Duration   *int64               `json:"duration,omitempty"`   // Duration of the operation in milliseconds.
	Context    map[string]any       `json:"context,omitempty"`    // Additional context specific to the operation.
}

// EventCallbackFunction receives persistence events.
type EventCallbackFunction func(ctx context.Context, event PersistenceEvent) error

// SubscriptionInfo describes a subscription configuration.
type SubscriptionInfo struct {
	Id          *string              `json:"id,omitempty"`
	Event       PersistenceEventType `json:"event"`                 // The event subscribed to.
	Collection  *string              `json:"collection,omitempty"`  // Set for collection-scoped subscriptions.
	Label       *string              `json:"label,omitempty"`       // Optional short identifier.
	Description *string              `json:"description,omitempty"` // Optional description.
	Unsubscribe func()               `json:"-"`
}

// RegisterSubscriptionOptions defines options for registering a subscription.
// The returned id identifies the subscription for UnregisterSubscription.
type RegisterSubscriptionOptions struct {
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// CollectionOptions configures a collection beyond its schema.
type CollectionOptions struct {
	// Seed documents are used when storage holds no snapshot yet.
	Seed []schema.Document
	// Parameters are the query-string parameters ParseQuery accepts.
	Parameters []query.Parameter
	// Functions are extra validation predicates for schema constraints.
	Functions schema.FunctionMap
	// Filters are custom query operators.
	Filters map[query.ComparisonOperator]query.PredicateFunction
}

// PersistenceInterface is the registry of collections sharing one storage driver.
type PersistenceInterface interface {
	Create(def schema.SchemaDefinition, options CollectionOptions) (PersistenceCollectionInterface, error)
	Collection(name string) (PersistenceCollectionInterface, error)
	Collections() []string

	RegisterSubscription(options RegisterSubscriptionOptions) string
	UnregisterSubscription(id string)
	Subscriptions() ([]SubscriptionInfo, error)

	Close() error
}

// PersistenceCollectionInterface defines the operations on a single collection.
// Every operation reloads the collection from storage, and every mutation
// rewrites it. Operations on one collection are serialized.
type PersistenceCollectionInterface interface {
	Name() string
	Schema() *schema.SchemaDefinition

	// List returns the documents matching dsl, sorted and paginated.
	List(ctx context.Context, dsl *query.QueryDSL) (*query.QueryResult, error)
	// ParseQuery converts query-string values into a QueryDSL.
	ParseQuery(values url.Values) (*query.QueryDSL, error)
	// Get returns the document with the given identity.
	Get(ctx context.Context, id any) (schema.Document, error)
	// ParseID converts an external identifier into the collection's identity type.
	ParseID(raw string) (any, error)
	// Create validates fields, assigns a fresh identity and stores the document.
	Create(ctx context.Context, fields map[string]any) (schema.Document, error)
	// Replace stores fields as the complete document with the given identity,
	// creating it when absent. The bool reports whether it was created.
	Replace(ctx context.Context, id any, fields map[string]any) (schema.Document, bool, error)
	// Update merges partial into the document with the given identity.
	Update(ctx context.Context, id any, partial map[string]any) (schema.Document, error)
	// Delete removes and returns the document with the given identity.
	Delete(ctx context.Context, id any) (schema.Document, error)
	// Validate checks data against the collection's schema.
	Validate(data map[string]any, loose bool) *schema.ValidationResult

	RegisterSubscription(options RegisterSubscriptionOptions) string
	UnregisterSubscription(id string)
	Subscriptions() ([]SubscriptionInfo, error)
}
