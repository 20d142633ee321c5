// Package catalog defines the collections served by shelf: films and texts.
package catalog

import (
	"fmt"

	"github.com/asaidimu/go-shelf/core/persistence"
	"github.com/asaidimu/go-shelf/core/query"
	"github.com/asaidimu/go-shelf/core/schema"
)

const (
	FilmsCollection = "films"
	TextsCollection = "texts"
)

// FilmsSchemaJSON describes the films collection.
const FilmsSchemaJSON = `{
	"name": "films",
	"version": "1.0.0",
	"description": "Feature films with their director, running time and budget",
	"identity": {"field": "id", "strategy": "sequence"},
	"fields": {
		"title": {
			"name": "title",
			"type": "string",
			"required": true,
			"constraints": [{"name": "title_not_empty", "predicate": "nonEmpty", "errorMessage": "title must not be empty"}]
		},
		"director": {
			"name": "director",
			"type": "string",
			"required": true,
			"constraints": [{"name": "director_not_empty", "predicate": "nonEmpty", "errorMessage": "director must not be empty"}]
		},
		"duration": {
			"name": "duration",
			"type": "integer",
			"required": true,
			"description": "Running time in minutes",
			"constraints": [{"name": "duration_positive", "predicate": "exclusiveMin", "parameters": 0, "errorMessage": "duration must be a positive number of minutes"}]
		},
		"budget": {
			"name": "budget",
			"type": "number",
			"description": "Production budget in millions of US dollars",
			"constraints": [{"name": "budget_non_negative", "predicate": "min", "parameters": 0, "errorMessage": "budget must not be negative"}]
		},
		"description": {"name": "description", "type": "string"},
		"imageUrl": {"name": "imageUrl", "type": "string"}
	},
	"indexes": [
		{"name": "uq_films_title_director", "fields": ["title", "director"], "type": "unique", "ignoreCase": true}
	]
}`

// TextsSchemaJSON describes the texts collection.
const TextsSchemaJSON = `{
	"name": "texts",
	"version": "1.0.0",
	"description": "Reading passages graded by difficulty",
	"identity": {"field": "id", "strategy": "uuid"},
	"fields": {
		"content": {
			"name": "content",
			"type": "string",
			"required": true,
			"constraints": [{"name": "content_not_empty", "predicate": "nonEmpty", "errorMessage": "content must not be empty"}]
		},
		"level": {
			"name": "level",
			"type": "enum",
			"required": true,
			"values": ["easy", "medium", "hard"]
		}
	}
}`

// FilmParameters are the query-string filters accepted by the films collection.
var FilmParameters = []query.Parameter{
	{
		Name:        "duration",
		Field:       "duration",
		Operator:    query.ComparisonOperatorGte,
		Type:        query.ValueTypeInteger,
		Positive:    true,
		Description: "Films running at least this many minutes",
	},
	{
		Name:        "title",
		Field:       "title",
		Operator:    query.ComparisonOperatorStartsWith,
		Type:        query.ValueTypeString,
		IgnoreCase:  true,
		Description: "Films whose title starts with the value",
	},
	{
		Name:        "director",
		Field:       "director",
		Operator:    query.ComparisonOperatorStartsWith,
		Type:        query.ValueTypeString,
		IgnoreCase:  true,
		Description: "Films whose director starts with the value",
	},
	{
		Name:        "minBudget",
		Field:       "budget",
		Operator:    query.ComparisonOperatorGte,
		Type:        query.ValueTypeNumber,
		NonNegative: true,
		Description: "Films with at least this budget",
	},
}

// TextParameters are the query-string filters accepted by the texts collection.
var TextParameters = []query.Parameter{
	{
		Name:        "level",
		Field:       "level",
		Operator:    query.ComparisonOperatorEq,
		Type:        query.ValueTypeEnum,
		Values:      []string{string(LevelEasy), string(LevelMedium), string(LevelHard)},
		Description: "Texts of the given difficulty",
	},
}

// FilmSeed returns the films a fresh store starts with.
func FilmSeed() []schema.Document {
	return []schema.Document{
		{
			"id":          int64(1),
			"title":       "The Lord of the Rings: The Fellowship of the Ring",
			"director":    "Peter Jackson",
			"duration":    int64(178),
			"budget":      93.0,
			"description": "A meek Hobbit from the Shire and eight companions set out on a journey to destroy the powerful One Ring.",
			"imageUrl":    "https://en.wikipedia.org/wiki/The_Lord_of_the_Rings:_The_Fellowship_of_the_Ring#/media/File:The_Lord_of_the_Rings_The_Fellowship_of_the_Ring_(2001).jpg",
		},
		{
			"id":          int64(2),
			"title":       "Inception",
			"director":    "Christopher Nolan",
			"duration":    int64(148),
			"budget":      160.0,
			"description": "A thief who steals corporate secrets through dream-sharing technology is given the inverse task of planting an idea.",
			"imageUrl":    "https://en.wikipedia.org/wiki/Inception#/media/File:Inception_(2010)_theatrical_poster.jpg",
		},
		{
			"id":          int64(3),
			"title":       "Interstellar",
			"director":    "Christopher Nolan",
			"duration":    int64(169),
			"budget":      165.0,
			"description": "A team of explorers travel through a wormhole in space in an attempt to ensure humanity's survival.",
			"imageUrl":    "https://en.wikipedia.org/wiki/Interstellar_(film)#/media/File:Interstellar_film_poster.jpg",
		},
	}
}

// Options controls how the catalog collections are registered.
type Options struct {
	// Seed loads FilmSeed into an empty films collection.
	Seed bool
	// Functions adds validation predicates to both collections.
	Functions schema.FunctionMap
}

// Register creates the films and texts collections on p.
func Register(p persistence.PersistenceInterface, options Options) error {
	films, err := persistence.ParseSchema([]byte(FilmsSchemaJSON))
	if err != nil {
		return fmt.Errorf("films schema: %w", err)
	}
	texts, err := persistence.ParseSchema([]byte(TextsSchemaJSON))
	if err != nil {
		return fmt.Errorf("texts schema: %w", err)
	}

	filmOptions := persistence.CollectionOptions{Parameters: FilmParameters, Functions: options.Functions}
	if options.Seed {
		filmOptions.Seed = FilmSeed()
	}
	if _, err := p.Create(*films, filmOptions); err != nil {
		return fmt.Errorf("failed to register %s: %w", FilmsCollection, err)
	}
	if _, err := p.Create(*texts, persistence.CollectionOptions{Parameters: TextParameters, Functions: options.Functions}); err != nil {
		return fmt.Errorf("failed to register %s: %w", TextsCollection, err)
	}
	return nil
}
