// Package persistence provides schema-driven collections of documents kept
// in a StorageDriver. Collections are registered with a Persistence registry
// that shares one driver and one event bus between them.
package persistence

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/asaidimu/go-shelf/core/schema"
)

// collectionNamePattern restricts names to what every driver can use as a
// file name or row key.
var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ParseSchema decodes a JSON schema definition and checks that it is usable.
func ParseSchema(raw []byte) (*schema.SchemaDefinition, error) {
	var s schema.SchemaDefinition
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("error unmarshaling schema definition: %w", err)
	}
	if err := ValidateDefinition(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ValidateDefinition reports whether def can back a collection.
func ValidateDefinition(def *schema.SchemaDefinition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidSchema)
	}
	if !collectionNamePattern.MatchString(def.Name) {
		return fmt.Errorf("%w: invalid collection name '%s'", ErrInvalidSchema, def.Name)
	}
	switch def.Identity.Strategy {
	case schema.IdentitySequence, schema.IdentityUUID:
	default:
		return fmt.Errorf("%w: '%s' has unknown identity strategy '%s'", ErrInvalidSchema, def.Name, def.Identity.Strategy)
	}
	if _, ok := def.Fields[def.IdentityField()]; ok {
		return fmt.Errorf("%w: '%s' declares its identity field '%s' as a regular field",
			ErrInvalidSchema, def.Name, def.IdentityField())
	}

	for _, name := range def.FieldNames() {
		field := def.Fields[name]
		if field == nil {
			return fmt.Errorf("%w: '%s' has an empty definition for field '%s'", ErrInvalidSchema, def.Name, name)
		}
		switch field.Type {
		case schema.FieldTypeString, schema.FieldTypeNumber, schema.FieldTypeInteger, schema.FieldTypeBoolean:
		case schema.FieldTypeEnum:
			if len(field.Values) == 0 {
				return fmt.Errorf("%w: enum field '%s.%s' declares no values", ErrInvalidSchema, def.Name, name)
			}
		default:
			return fmt.Errorf("%w: field '%s.%s' has unsupported type '%s'", ErrInvalidSchema, def.Name, name, field.Type)
		}
	}

	for _, index := range def.Indexes {
		if len(index.Fields) == 0 {
			return fmt.Errorf("%w: index '%s' on '%s' has no fields", ErrInvalidSchema, index.Name, def.Name)
		}
		for _, field := range index.Fields {
			if !def.HasField(field) {
				return fmt.Errorf("%w: index '%s' references unknown field '%s'", ErrInvalidSchema, index.Name, field)
			}
		}
	}
	return nil
}
