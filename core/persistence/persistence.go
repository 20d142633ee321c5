package persistence

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-shelf/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Persistence is the main implementation of the PersistenceInterface. It owns
// the storage driver shared by its collections, the registry of collections
// and the event bus their events are published on.
type Persistence struct {
	executor      *Executor
	driver        StorageDriver
	logger        *zap.Logger
	collections   map[string]*Collection
	mu            sync.RWMutex                 // Mutex to protect collections map
	subscriptions map[string]*SubscriptionInfo // To store unsubscribe functions
	subMu         sync.RWMutex                 // Mutex to protect subscriptions map
	bus           *events.TypedEventBus[PersistenceEvent]
}

var _ PersistenceInterface = (*Persistence)(nil)

// NewPersistence creates a new instance of the Persistence service over driver.
func NewPersistence(driver StorageDriver, logger *zap.Logger) (*Persistence, error) {
	if driver == nil {
		return nil, fmt.Errorf("a storage driver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	return &Persistence{
		executor:      NewExecutor(driver, logger),
		driver:        driver,
		logger:        logger,
		collections:   make(map[string]*Collection),
		subscriptions: make(map[string]*SubscriptionInfo),
		bus:           bus,
	}, nil
}

// Create registers a new collection for def. Collection names are unique
// within a Persistence.
func (p *Persistence) Create(def schema.SchemaDefinition, options CollectionOptions) (PersistenceCollectionInterface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.collections[def.Name]; exists {
		return nil, fmt.Errorf("%w: '%s'", ErrCollectionExists, def.Name)
	}

	collection, err := NewCollection(p.bus, &def, p.executor, options, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", def.Name, err)
	}
	p.collections[def.Name] = collection

	p.logger.Info("Collection registered",
		zap.String("collection", def.Name),
		zap.String("identity", string(def.Identity.Strategy)),
		zap.Int("seed", len(options.Seed)))
	p.bus.Emit(string(CollectionCreateSuccess), createEvent(
		CollectionCreateSuccess, "create_collection", def.Name,
		map[string]any{"version": def.Version}, nil, nil, nil, nil, time.Time{},
	))
	return collection, nil
}

// Collection returns the registered collection with the given name.
func (p *Persistence) Collection(name string) (PersistenceCollectionInterface, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	collection, ok := p.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrCollectionNotFound, name)
	}
	return collection, nil
}

// Collections returns the names of all registered collections, sorted.
func (p *Persistence) Collections() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.collections))
	for name := range p.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RegisterSubscription registers a callback for a specific persistence event
// from any collection. It returns a unique ID that can be used to unregister
// the subscription later.
func (p *Persistence) RegisterSubscription(options RegisterSubscriptionOptions) string {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	unsubscribe := p.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	data := SubscriptionInfo{
		Id:          &id,
		Event:       options.Event,
		Unsubscribe: unsubscribe,
		Label:       options.Label,
		Description: options.Description,
	}

	p.subscriptions[id] = &data
	return id
}

// UnregisterSubscription removes a subscription by its ID.
func (p *Persistence) UnregisterSubscription(id string) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	if info, ok := p.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(p.subscriptions, id)
	}
}

// Subscriptions returns a list of all currently active subscriptions.
func (p *Persistence) Subscriptions() ([]SubscriptionInfo, error) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(p.subscriptions))
	for _, sub := range p.subscriptions {
		subs = append(subs, *sub)
	}

	return subs, nil
}

// Close unsubscribes every registry-level subscription and closes the storage driver.
func (p *Persistence) Close() error {
	p.subMu.Lock()
	for id, info := range p.subscriptions {
		info.Unsubscribe()
		delete(p.subscriptions, id)
	}
	p.subMu.Unlock()

	if err := p.driver.Close(); err != nil {
		return fmt.Errorf("error closing storage driver: %w", err)
	}
	return nil
}
