package catalog

import (
	"context"

	"github.com/asaidimu/go-shelf/core/persistence"
	"github.com/asaidimu/go-shelf/core/query"
	"github.com/asaidimu/go-shelf/utils"
)

// Film is the typed form of a films document.
type Film struct {
	ID          int64    `json:"id,omitempty"`
	Title       string   `json:"title"`
	Director    string   `json:"director"`
	Duration    int64    `json:"duration"`
	Budget      *float64 `json:"budget,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

// Level grades the difficulty of a text.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
)

// Text is the typed form of a texts document.
type Text struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
	Level   Level  `json:"level"`
}

// Records wraps a collection with typed create, get and list calls.
type Records[T any] struct {
	collection persistence.PersistenceCollectionInterface
}

// NewRecords returns a typed view of collection.
func NewRecords[T any](collection persistence.PersistenceCollectionInterface) *Records[T] {
	return &Records[T]{collection: collection}
}

// Create stores record and returns it with its assigned identity.
func (r *Records[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T
	doc, err := utils.StructToDocument(record)
	if err != nil {
		return zero, err
	}
	created, err := r.collection.Create(ctx, doc)
	if err != nil {
		return zero, err
	}
	return utils.DocumentToStruct[T](created)
}

// Get returns the record with the given identity.
func (r *Records[T]) Get(ctx context.Context, id any) (T, error) {
	var zero T
	doc, err := r.collection.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	return utils.DocumentToStruct[T](doc)
}

// List runs dsl against the collection and decodes the page.
func (r *Records[T]) List(ctx context.Context, dsl *query.QueryDSL) ([]T, error) {
	result, err := r.collection.List(ctx, dsl)
	if err != nil {
		return nil, err
	}
	return utils.DocumentsToStructs[T](result.Data)
}
