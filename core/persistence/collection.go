package persistence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/asaidimu/go-shelf/core/query"
	"github.com/asaidimu/go-shelf/core/schema"
	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CollectionBase implements the collection operations on top of an Executor.
// Every operation holds the collection mutex from the moment storage is read
// until the new snapshot has been written.
type CollectionBase struct {
	schema        *schema.SchemaDefinition
	executor      *Executor
	validator     *schema.Validator
	identity      IdentityGenerator
	seed          []schema.Document
	parameters    []query.Parameter
	bus           *events.TypedEventBus[PersistenceEvent]
	logger        *zap.Logger
	mu            sync.Mutex
	subscriptions map[string]*SubscriptionInfo // To store unsubscribe functions
	subMu         sync.RWMutex                 // Mutex to protect subscriptions map
}

// NewCollection creates a collection for def that stores its documents through executor.
func NewCollection(
	bus *events.TypedEventBus[PersistenceEvent],
	def *schema.SchemaDefinition,
	executor *Executor,
	options CollectionOptions,
	logger *zap.Logger,
) (*Collection, error) {
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}
	identity, err := NewIdentityGenerator(def)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seed := make([]schema.Document, 0, len(options.Seed))
	for _, doc := range options.Seed {
		seed = append(seed, def.Normalize(doc))
	}

	executor.RegisterFilterFunctions(options.Filters)

	return NewEventEmittingCollection(&CollectionBase{
		schema:        def,
		executor:      executor,
		validator:     schema.NewValidator(def, options.Functions),
		identity:      identity,
		seed:          seed,
		parameters:    slices.Clone(options.Parameters),
		bus:           bus,
		logger:        logger.With(zap.String("collection", def.Name)),
		subscriptions: map[string]*SubscriptionInfo{},
	}), nil
}

// Name returns the collection name.
func (ci *CollectionBase) Name() string {
	return ci.schema.Name
}

// Schema returns the collection's schema definition.
func (ci *CollectionBase) Schema() *schema.SchemaDefinition {
	return ci.schema
}

// List returns the documents matching dsl.
func (ci *CollectionBase) List(ctx context.Context, dsl *query.QueryDSL) (*query.QueryResult, error) {
	if err := ci.checkQuery(dsl); err != nil {
		return nil, err
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	docs, err := ci.load(ctx)
	if err != nil {
		return nil, err
	}
	result, err := ci.executor.Query(docs, dsl)
	if err != nil {
		return nil, &QueryError{Message: err.Error()}
	}
	return result, nil
}

func (ci *CollectionBase) checkQuery(dsl *query.QueryDSL) error {
	if problems := query.ValidateDSL(dsl, ci.schema); len(problems) > 0 {
		return &QueryError{Parameter: problems[0].Field, Message: problems[0].Message}
	}
	if dsl != nil && dsl.Filters != nil {
		if op, ok := ci.unknownOperator(dsl.Filters); ok {
			return &QueryError{Message: fmt.Sprintf("unknown operator '%s'", op)}
		}
	}
	return nil
}

func (ci *CollectionBase) unknownOperator(filter *query.QueryFilter) (query.ComparisonOperator, bool) {
	if c := filter.Condition; c != nil {
		if !c.Operator.IsStandard() && !ci.executor.HasFilterFunction(c.Operator) {
			return c.Operator, true
		}
	}
	if filter.Group != nil {
		for i := range filter.Group.Conditions {
			if op, ok := ci.unknownOperator(&filter.Group.Conditions[i]); ok {
				return op, true
			}
		}
	}
	return "", false
}

// ParseQuery converts query-string values into a QueryDSL using the
// collection's declared parameters.
func (ci *CollectionBase) ParseQuery(values url.Values) (*query.QueryDSL, error) {
	dsl, err := query.ParseParameters(values, ci.parameters)
	if err != nil {
		var perr *query.ParameterError
		if errors.As(err, &perr) {
			return nil, &QueryError{Parameter: perr.Parameter, Message: perr.Message}
		}
		return nil, &QueryError{Message: err.Error()}
	}
	if err := ci.checkQuery(dsl); err != nil {
		return nil, err
	}
	return dsl, nil
}

// ParseID converts an external identifier into the collection's identity type.
func (ci *CollectionBase) ParseID(raw string) (any, error) {
	return ci.identity.Parse(raw)
}

// Get returns the document with the given identity.
func (ci *CollectionBase) Get(ctx context.Context, id any) (schema.Document, error) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	docs, err := ci.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := ci.indexOf(docs, id)
	if idx < 0 {
		return nil, ci.notFound(id)
	}
	return docs[idx].Clone(), nil
}

// Create validates fields, assigns a fresh identity and appends the document.
func (ci *CollectionBase) Create(ctx context.Context, fields map[string]any) (schema.Document, error) {
	idField := ci.schema.IdentityField()
	if _, ok := fields[idField]; ok {
		return nil, ci.immutableIdentity()
	}
	if err := ci.validate(fields, false); err != nil {
		return nil, err
	}
	doc := ci.prepare(fields)

	ci.mu.Lock()
	defer ci.mu.Unlock()

	docs, err := ci.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := ci.checkUnique(docs, doc, nil); err != nil {
		return nil, err
	}

	id, err := ci.identity.Next(docs)
	if err != nil {
		ci.logger.Warn("No identity available", zap.String("collection", ci.schema.Name), zap.Error(err))
		return nil, fmt.Errorf("cannot create document in '%s': %w", ci.schema.Name, err)
	}
	doc[idField] = id
	docs = append(docs, doc)
	ci.persist(ctx, docs)

	ci.logger.Debug("Document created", zap.Any("id", doc[idField]))
	return doc.Clone(), nil
}

// Replace stores fields as the complete document identified by id. When no
// such document exists it is appended with the caller's id.
func (ci *CollectionBase) Replace(ctx context.Context, id any, fields map[string]any) (schema.Document, bool, error) {
	if err := ci.checkIdentityUnchanged(id, fields); err != nil {
		return nil, false, err
	}
	if err := ci.validate(withoutIdentity(fields, ci.schema.IdentityField()), false); err != nil {
		return nil, false, err
	}
	doc := ci.prepare(fields)
	doc[ci.schema.IdentityField()] = id

	ci.mu.Lock()
	defer ci.mu.Unlock()

	docs, err := ci.load(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := ci.checkUnique(docs, doc, id); err != nil {
		return nil, false, err
	}

	created := false
	if idx := ci.indexOf(docs, id); idx >= 0 {
		docs[idx] = doc
	} else {
		docs = append(docs, doc)
		created = true
	}
	ci.persist(ctx, docs)

	ci.logger.Debug("Document replaced", zap.Any("id", id), zap.Bool("created", created))
	return doc.Clone(), created, nil
}

// Update merges partial into the document identified by id. A null value
// removes an optional field.
func (ci *CollectionBase) Update(ctx context.Context, id any, partial map[string]any) (schema.Document, error) {
	if err := ci.checkIdentityUnchanged(id, partial); err != nil {
		return nil, err
	}
	partial = withoutIdentity(partial, ci.schema.IdentityField())
	if err := ci.validate(partial, true); err != nil {
		return nil, err
	}
	changes := ci.schema.Normalize(partial)

	ci.mu.Lock()
	defer ci.mu.Unlock()

	docs, err := ci.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := ci.indexOf(docs, id)
	if idx < 0 {
		return nil, ci.notFound(id)
	}

	merged := docs[idx].Clone()
	for key, value := range changes {
		if value == nil {
			delete(merged, key)
			continue
		}
		merged[key] = value
	}
	if err := ci.checkUnique(docs, merged, id); err != nil {
		return nil, err
	}

	docs[idx] = merged
	ci.persist(ctx, docs)

	ci.logger.Debug("Document updated", zap.Any("id", id), zap.Int("fields", len(changes)))
	return merged.Clone(), nil
}

// Delete removes and returns the document identified by id.
func (ci *CollectionBase) Delete(ctx context.Context, id any) (schema.Document, error) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	docs, err := ci.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := ci.indexOf(docs, id)
	if idx < 0 {
		return nil, ci.notFound(id)
	}

	removed := docs[idx]
	docs = slices.Delete(docs, idx, idx+1)
	ci.persist(ctx, docs)

	ci.logger.Debug("Document deleted", zap.Any("id", id))
	return removed.Clone(), nil
}

// Validate validates data against the collection's schema.
func (ci *CollectionBase) Validate(data map[string]any, loose bool) *schema.ValidationResult {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	valid, issues := ci.validator.Validate(data, loose)
	return &schema.ValidationResult{
		Valid:  valid,
		Issues: issues,
	}
}

// validate runs the validator and converts failures into a ValidationError.
// The validator keeps per-call state, so it is guarded by the collection mutex.
func (ci *CollectionBase) validate(data map[string]any, loose bool) error {
	ci.mu.Lock()
	valid, issues := ci.validator.Validate(data, loose)
	ci.mu.Unlock()

	if valid {
		return nil
	}
	return &ValidationError{Collection: ci.schema.Name, Issues: issues}
}

// prepare normalizes caller fields into a stored document, dropping nulls.
func (ci *CollectionBase) prepare(fields map[string]any) schema.Document {
	doc := ci.schema.Normalize(withoutIdentity(fields, ci.schema.IdentityField()))
	for key, value := range doc {
		if value == nil {
			delete(doc, key)
		}
	}
	return doc
}

func (ci *CollectionBase) checkIdentityUnchanged(id any, fields map[string]any) error {
	value, ok := fields[ci.schema.IdentityField()]
	if !ok {
		return nil
	}
	if !sameID(ci.schema.NormalizeID(value), id) {
		return ci.immutableIdentity()
	}
	return nil
}

func (ci *CollectionBase) immutableIdentity() error {
	field := ci.schema.IdentityField()
	return &ValidationError{
		Collection: ci.schema.Name,
		Issues: []schema.Issue{{
			Code:     schema.IssueImmutableField,
			Message:  fmt.Sprintf("Field '%s' is assigned by the collection and cannot be changed", field),
			Path:     field,
			Severity: "error",
		}},
	}
}

func (ci *CollectionBase) notFound(id any) error {
	return fmt.Errorf("%w: '%v' in '%s'", ErrNotFound, id, ci.schema.Name)
}

// load reads the collection. Storage failures are reported and then treated
// as an empty collection.
func (ci *CollectionBase) load(ctx context.Context) ([]schema.Document, error) {
	docs, err := ci.executor.Load(ctx, ci.schema, ci.seed)
	if err == nil {
		return docs, nil
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		return nil, err
	}
	ci.logger.Warn("Storage read failed, treating collection as empty", zap.Error(err))
	ci.emit(createEvent(StorageReadFailed, "load", ci.schema.Name, nil, nil, nil, errorString(err), nil, time.Time{}))
	return docs, nil
}

// persist rewrites the collection. A failed write is reported but does not
// fail the operation.
func (ci *CollectionBase) persist(ctx context.Context, docs []schema.Document) {
	if err := ci.executor.Save(ctx, ci.schema, docs); err != nil {
		ci.logger.Error("Storage write failed", zap.Error(err), zap.Int("count", len(docs)))
		ci.emit(createEvent(StorageWriteFailed, "save", ci.schema.Name, nil, nil, nil, errorString(err), nil, time.Time{}))
	}
}

func (ci *CollectionBase) emit(event PersistenceEvent) {
	if ci.bus != nil {
		ci.bus.Emit(string(event.Type), event)
	}
}

func (ci *CollectionBase) indexOf(docs []schema.Document, id any) int {
	field := ci.schema.IdentityField()
	return slices.IndexFunc(docs, func(doc schema.Document) bool {
		return sameID(doc[field], id)
	})
}

// checkUnique reports a ConflictError when doc collides with another
// document on a unique index. The document identified by self is skipped.
// Documents missing any indexed field are not checked.
func (ci *CollectionBase) checkUnique(docs []schema.Document, doc schema.Document, self any) error {
	idField := ci.schema.IdentityField()
	for _, index := range ci.schema.UniqueIndexes() {
		if !hasAll(doc, index.Fields) {
			continue
		}
		for _, other := range docs {
			if self != nil && sameID(other[idField], self) {
				continue
			}
			if !hasAll(other, index.Fields) {
				continue
			}
			if sameKey(doc, other, index) {
				return &ConflictError{
					Collection: ci.schema.Name,
					Index:      index.Name,
					Fields:     slices.Clone(index.Fields),
				}
			}
		}
	}
	return nil
}

func hasAll(doc schema.Document, fields []string) bool {
	for _, field := range fields {
		if v, ok := doc[field]; !ok || v == nil {
			return false
		}
	}
	return true
}

func sameKey(a, b schema.Document, index schema.IndexDefinition) bool {
	for _, field := range index.Fields {
		va, vb := a[field], b[field]
		sa, okA := va.(string)
		sb, okB := vb.(string)
		switch {
		case okA && okB && index.IgnoreCase:
			if !strings.EqualFold(sa, sb) {
				return false
			}
		case okA && okB:
			if sa != sb {
				return false
			}
		default:
			if !sameID(va, vb) {
				return false
			}
		}
	}
	return true
}

// sameID compares identities, treating all numeric representations of the
// same integer as equal.
func sameID(a, b any) bool {
	if ia, ok := schema.AsInt64(a); ok {
		ib, ok := schema.AsInt64(b)
		return ok && ia == ib
	}
	if fa, ok := schema.AsFloat64(a); ok {
		fb, ok := schema.AsFloat64(b)
		return ok && fa == fb
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return sa == sb
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	return false
}

func withoutIdentity(fields map[string]any, idField string) map[string]any {
	if _, ok := fields[idField]; !ok {
		return fields
	}
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if key != idField {
			out[key] = value
		}
	}
	return out
}

// RegisterSubscription registers a collection-scoped subscription. The
// callback only receives events about this collection.
func (ci *CollectionBase) RegisterSubscription(options RegisterSubscriptionOptions) string {
	ci.subMu.Lock()
	defer ci.subMu.Unlock()

	name := ci.schema.Name
	callback := options.Callback
	unsubscribe := ci.bus.Subscribe(string(options.Event), func(ctx context.Context, event PersistenceEvent) error {
		if event.Collection == nil || *event.Collection != name {
			return nil
		}
		return callback(ctx, event)
	})
	callbackID := uuid.New().String()

	data := SubscriptionInfo{
		Id:          &callbackID,
		Event:       options.Event,
		Collection:  &name,
		Unsubscribe: unsubscribe,
		Label:       options.Label,
		Description: options.Description,
	}

	ci.subscriptions[callbackID] = &data
	return callbackID
}

// UnregisterSubscription unregisters a collection-scoped subscription.
func (ci *CollectionBase) UnregisterSubscription(id string) {
	ci.subMu.Lock()
	defer ci.subMu.Unlock()
	info := ci.subscriptions[id]
	if info != nil {
		info.Unsubscribe()
		delete(ci.subscriptions, id)
	}
}

// Subscriptions returns all registered collection-scoped subscriptions.
func (ci *CollectionBase) Subscriptions() ([]SubscriptionInfo, error) {
	ci.subMu.RLock()
	defer ci.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(ci.subscriptions))
	for _, sub := range ci.subscriptions {
		subs = append(subs, *sub)
	}
	return subs, nil
}
