// Package schema provides the Validator, a key component for ensuring that data
// conforms to a given schema definition. It supports detailed error reporting and
// can be extended with custom validation predicates.
package schema

import (
	"fmt"
	"maps"
	"strings"
)

// Issue codes reported by the Validator.
const (
	IssueRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	IssueUnexpectedField      = "UNEXPECTED_FIELD"
	IssueNullValue            = "NULL_VALUE"
	IssueTypeMismatch         = "TYPE_MISMATCH"
	IssueEnumViolation        = "ENUM_VIOLATION"
	IssueConstraintViolation  = "CONSTRAINT_VIOLATION"
	IssueMissingPredicate     = "MISSING_PREDICATE"
	IssueImmutableField       = "IMMUTABLE_FIELD"
)

// Validator is responsible for validating data against a schema. It checks for
// type correctness, required fields, enum membership and constraints, and it
// can be configured with a map of predicate functions for extensibility.
//
// A Validator is not safe for concurrent use.
type Validator struct {
	schema *SchemaDefinition
	fmap   FunctionMap
	issues []Issue
}

// NewValidator creates a new Validator instance for a given schema and function map.
// The built-in predicates are always available; entries in fmap override them.
func NewValidator(schema *SchemaDefinition, fmap FunctionMap) *Validator {
	merged := BuiltinPredicates()
	maps.Copy(merged, fmap)
	return &Validator{
		schema: schema,
		fmap:   merged,
		issues: make([]Issue, 0),
	}
}

// Validate checks if a given data map conforms to the validator's schema.
// It returns a boolean indicating whether the validation was successful, and a slice
// of any issues that were found. The `loose` parameter ignores missing required
// fields, which is what partial updates need. The identity field is not
// checked here; the collection owns it.
func (v *Validator) Validate(data map[string]any, loose bool) (bool, []Issue) {
	v.issues = make([]Issue, 0)

	v.validateData(data)

	finalIssues := v.issues
	if loose {
		filteredIssues := make([]Issue, 0, len(v.issues))
		for _, issue := range v.issues {
			if issue.Code != IssueRequiredFieldMissing {
				filteredIssues = append(filteredIssues, issue)
			}
		}
		finalIssues = filteredIssues
	}

	return len(finalIssues) == 0, finalIssues
}

// validateData checks every declared field, then flags undeclared ones.
func (v *Validator) validateData(data map[string]any) {
	for _, fieldName := range v.schema.FieldNames() {
		fieldDef := v.schema.Fields[fieldName]
		value, exists := data[fieldName]

		if fieldDef.IsRequired() && !exists {
			v.addIssue(IssueRequiredFieldMissing, fmt.Sprintf("Required field '%s' is missing", fieldName), fieldName)
			continue
		}

		if !exists {
			continue
		}

		v.validateFieldValue(value, fieldDef, fieldName)
	}

	idField := v.schema.IdentityField()
	for dataKey := range data {
		if dataKey == idField {
			continue
		}
		if _, exists := v.schema.Fields[dataKey]; !exists {
			v.addIssue(IssueUnexpectedField, fmt.Sprintf("Unexpected field '%s' not defined in schema", dataKey), dataKey)
		}
	}
}

// validateFieldValue validates a single field's value against its definition.
func (v *Validator) validateFieldValue(value any, fieldDef *FieldDefinition, path string) {
	if value == nil {
		if fieldDef.IsRequired() {
			v.addIssue(IssueNullValue, "Field cannot be null", path)
		}
		return
	}

	coerced, ok := CoerceValue(value, fieldDef.Type)
	if !ok {
		v.addIssue(IssueTypeMismatch, fmt.Sprintf("Expected %s, got %s", fieldDef.Type, describe(value)), path)
		return
	}

	if fieldDef.Type == FieldTypeEnum && len(fieldDef.Values) > 0 {
		if !v.validateEnumValue(coerced, fieldDef.Values, path) {
			return
		}
	}

	v.validateFieldConstraints(coerced, fieldDef.Constraints, path)
}

// validateFieldConstraints validates all constraints for a given field.
func (v *Validator) validateFieldConstraints(value any, constraints SchemaConstraint, path string) {
	for _, constraint := range constraints {
		v.validateConstraint(value, constraint, path)
	}
}

// validateConstraint validates a single constraint by executing its predicate function.
func (v *Validator) validateConstraint(value any, constraint Constraint, path string) {
	predicate, exists := v.fmap[constraint.Predicate]
	if !exists {
		v.addIssue(IssueMissingPredicate, fmt.Sprintf("Predicate function '%s' not found", constraint.Predicate), path)
		return
	}

	field := path
	params := PredicateParams{
		Data:  value,
		Field: &field,
		Args:  constraint.Parameters,
	}

	if !predicate(params) {
		message := fmt.Sprintf("Constraint '%s' failed", constraint.Name)
		if constraint.ErrorMessage != nil {
			message = *constraint.ErrorMessage
		}
		v.addIssue(IssueConstraintViolation, message, path)
	}
}

// validateEnumValue validates that a value is one of the allowed enum values.
func (v *Validator) validateEnumValue(value any, allowedValues []any, path string) bool {
	for _, allowedValue := range allowedValues {
		if enumEqual(value, allowedValue) {
			return true
		}
	}
	v.addIssue(IssueEnumViolation, fmt.Sprintf("Value must be one of: %s", formatValues(allowedValues)), path)
	return false
}

func enumEqual(a, b any) bool {
	if fa, ok := AsFloat64(a); ok {
		fb, ok := AsFloat64(b)
		return ok && fa == fb
	}
	return a == b
}

func formatValues(values []any) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = fmt.Sprintf("%v", value)
	}
	return strings.Join(parts, ", ")
}

// describe names the JSON kind of a value for error messages.
func describe(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := AsFloat64(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}

// addIssue adds a new validation issue to the validator's list of issues.
func (v *Validator) addIssue(code, message, path string) {
	issue := Issue{
		Code:     code,
		Message:  message,
		Path:     path,
		Severity: "error",
	}
	v.issues = append(v.issues, issue)
}
