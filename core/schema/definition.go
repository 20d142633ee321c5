// Package schema defines the structure of a collection: its fields, their
// types and constraints, the identity field and the unique indexes that the
// persistence layer enforces.
package schema

import (
	"maps"
	"sort"
)

// LogicalOperator for combining conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and" // All conditions must be true
	LogicalOr  LogicalOperator = "or"  // At least one condition must be true
	LogicalNot LogicalOperator = "not" // Negates a condition or group of conditions
)

// FieldType represents the basic field types supported by the schema system.
type FieldType string

const (
	FieldTypeString  FieldType = "string"  // Text data
	FieldTypeNumber  FieldType = "number"  // Floating point numeric data
	FieldTypeInteger FieldType = "integer" // Whole numbers
	FieldTypeBoolean FieldType = "boolean" // True/false values
	FieldTypeEnum    FieldType = "enum"    // One out of a set of pre-defined items
)

// IndexType represents the kind of index declared on a schema.
type IndexType string

const (
	IndexTypeNormal IndexType = "normal" // General-purpose index, informational only
	IndexTypeUnique IndexType = "unique" // Unique index, enforced on every write
)

// IdentityStrategy names the way a collection assigns identities to new documents.
type IdentityStrategy string

const (
	// IdentitySequence assigns integers, one more than the largest existing id.
	IdentitySequence IdentityStrategy = "sequence"
	// IdentityUUID assigns randomly generated UUID strings.
	IdentityUUID IdentityStrategy = "uuid"
)

// DefaultIdentityField is used when a schema does not name its identity field.
const DefaultIdentityField = "id"

// PredicateParams carries the input of a predicate evaluation.
type PredicateParams struct {
	Data  any     // The value being validated.
	Field *string // Optional field the predicate applies to.
	Args  any     // Parameters declared on the constraint.
}

// Predicate reports whether the value in params satisfies a constraint.
type Predicate func(params PredicateParams) bool

// FunctionMap is a map of predicate names to their validation functions.
type FunctionMap map[string]Predicate

// Constraint defines a constraint on a field, using a named predicate for validation.
type Constraint struct {
	// Predicate is the name of the predicate function to use for validation.
	Predicate string `json:"predicate"`
	// Parameters are the arguments passed to the predicate.
	Parameters any `json:"parameters,omitempty"`
	// Name is the unique name of the constraint.
	Name string `json:"name"`
	// Description provides a brief explanation of the constraint.
	Description *string `json:"description,omitempty"`
	// ErrorMessage is the custom error message to report if the constraint fails.
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

// SchemaConstraint is an ordered list of constraints.
type SchemaConstraint []Constraint

// FieldDefinition defines a field within a schema.
type FieldDefinition struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
	// Required indicates if the field is mandatory on create and replace.
	Required *bool `json:"required,omitempty"`
	// Constraints are validation rules applied to non-null values.
	Constraints SchemaConstraint `json:"constraints,omitempty"`
	// Values specifies the allowed values for an 'enum' type field.
	Values []any `json:"values,omitempty"`
	// Description provides a brief explanation of the field.
	Description *string `json:"description,omitempty"`
}

// IsRequired reports whether the field must be present.
func (f *FieldDefinition) IsRequired() bool {
	return f.Required != nil && *f.Required
}

// IndexDefinition defines an index over one or more fields.
type IndexDefinition struct {
	Name   string    `json:"name"`
	Fields []string  `json:"fields"`
	Type   IndexType `json:"type"`
	// IgnoreCase makes string values compare case-insensitively for unique indexes.
	IgnoreCase  bool    `json:"ignoreCase,omitempty"`
	Description *string `json:"description,omitempty"`
}

// IdentityDefinition names the identity field and how new identities are assigned.
type IdentityDefinition struct {
	Field    string           `json:"field,omitempty"`
	Strategy IdentityStrategy `json:"strategy"`
}

// SchemaDefinition defines a complete collection schema.
type SchemaDefinition struct {
	Name        string                      `json:"name"`
	Version     string                      `json:"version"`
	Description *string                     `json:"description,omitempty"`
	Identity    IdentityDefinition          `json:"identity"`
	Fields      map[string]*FieldDefinition `json:"fields"`
	Indexes     []IndexDefinition           `json:"indexes,omitempty"`
}

// IdentityField returns the name of the identity field.
func (s *SchemaDefinition) IdentityField() string {
	if s.Identity.Field == "" {
		return DefaultIdentityField
	}
	return s.Identity.Field
}

// FieldNames returns the declared field names in lexical order.
func (s *SchemaDefinition) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasField reports whether name is a declared field or the identity field.
func (s *SchemaDefinition) HasField(name string) bool {
	if name == s.IdentityField() {
		return true
	}
	_, ok := s.Fields[name]
	return ok
}

// UniqueIndexes returns the indexes that must be enforced on writes.
func (s *SchemaDefinition) UniqueIndexes() []IndexDefinition {
	var out []IndexDefinition
	for _, idx := range s.Indexes {
		if idx.Type == IndexTypeUnique {
			out = append(out, idx)
		}
	}
	return out
}

// Issue represents a validation or operational issue.
type Issue struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Path        string `json:"path,omitempty"`
	Severity    string `json:"severity,omitempty"` // e.g., "error", "warning"
	Description string `json:"description,omitempty"`
}

// ValidationResult is the outcome of validating a document.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// Document is a single record of a collection.
type Document map[string]any

// Clone returns a copy of the document. Values are scalars, so a shallow
// copy is enough to keep callers from aliasing stored state.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}
