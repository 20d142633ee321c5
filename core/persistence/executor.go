package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaidimu/go-shelf/core/query"
	"github.com/asaidimu/go-shelf/core/schema"
	"go.uber.org/zap"
)

// Executor orchestrates storage operations by coordinating between a StorageDriver and a DataProcessor.
type Executor struct {
	driver        StorageDriver
	dataProcessor *query.DataProcessor
	logger        *zap.Logger
}

// NewExecutor creates an Executor over driver.
func NewExecutor(driver StorageDriver, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		driver:        driver,
		dataProcessor: query.NewDataProcessor(logger),
		logger:        logger,
	}
}

// RegisterFilterFunction registers a Go function for custom filtering.
func (e *Executor) RegisterFilterFunction(operator query.ComparisonOperator, fn query.PredicateFunction) {
	e.dataProcessor.RegisterFilterFunction(operator, fn)
}

// RegisterFilterFunctions registers multiple PredicateFunction functions from a map.
func (e *Executor) RegisterFilterFunctions(functionMap map[query.ComparisonOperator]query.PredicateFunction) {
	e.dataProcessor.RegisterFilterFunctions(functionMap)
}

// Load reads the current snapshot of a collection and normalizes it against
// the schema. When nothing is stored yet it returns a copy of seed. Any
// other read failure yields an empty collection together with an error
// wrapping ErrStorageUnavailable, which callers log and otherwise ignore.
// Context errors are returned as they are.
func (e *Executor) Load(ctx context.Context, def *schema.SchemaDefinition, seed []schema.Document) ([]schema.Document, error) {
	docs, err := e.driver.Load(ctx, def.Name)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoSnapshot):
		e.logger.Debug("No snapshot stored, using seed documents",
			zap.String("collection", def.Name), zap.Int("count", len(seed)))
		docs = cloneDocuments(seed)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		return []schema.Document{}, fmt.Errorf("%w: reading '%s': %w", ErrStorageUnavailable, def.Name, err)
	}

	out := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		out = append(out, def.Normalize(doc))
	}
	e.logger.Debug("Loaded collection", zap.String("collection", def.Name), zap.Int("count", len(out)))
	return out, nil
}

// Save rewrites the stored snapshot of a collection.
func (e *Executor) Save(ctx context.Context, def *schema.SchemaDefinition, docs []schema.Document) error {
	if err := e.driver.Save(ctx, def.Name, docs); err != nil {
		return fmt.Errorf("%w: writing '%s': %w", ErrStorageUnavailable, def.Name, err)
	}
	e.logger.Debug("Saved collection", zap.String("collection", def.Name), zap.Int("count", len(docs)))
	return nil
}

// Query runs dsl over docs in memory.
func (e *Executor) Query(docs []schema.Document, dsl *query.QueryDSL) (*query.QueryResult, error) {
	return e.dataProcessor.Process(docs, dsl)
}

// HasFilterFunction reports whether a custom query operator is registered.
func (e *Executor) HasFilterFunction(operator query.ComparisonOperator) bool {
	return e.dataProcessor.HasFilterFunction(operator)
}
