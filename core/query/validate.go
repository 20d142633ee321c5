package query

import (
	"fmt"

	"github.com/asaidimu/go-shelf/core/schema"
)

// QueryValidationError represents an error found during query validation.
type QueryValidationError struct {
	Field   string
	Message string
}

// Error returns the error message for a QueryValidationError.
func (ve QueryValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidateDSL checks a query for structural errors such as non-positive
// pagination values, unknown sort directions or conflicting projections.
// When s is not nil, filter and sort fields must also be declared by the
// schema (the identity field included).
func ValidateDSL(dsl *QueryDSL, s *schema.SchemaDefinition) []QueryValidationError {
	var errors []QueryValidationError
	if dsl == nil {
		return errors
	}

	if dsl.Pagination != nil {
		if dsl.Pagination.Page <= 0 {
			errors = append(errors, QueryValidationError{
				Field:   "pagination.page",
				Message: "page must be greater than 0",
			})
		}
		if dsl.Pagination.Limit <= 0 {
			errors = append(errors, QueryValidationError{
				Field:   "pagination.limit",
				Message: "limit must be greater than 0",
			})
		}
	}

	for i, sort := range dsl.Sort {
		path := fmt.Sprintf("sort[%d]", i)
		if sort.Direction != SortDirectionAsc && sort.Direction != SortDirectionDesc {
			errors = append(errors, QueryValidationError{
				Field:   path,
				Message: fmt.Sprintf("unknown sort direction '%s'", sort.Direction),
			})
		}
		if s != nil && !s.HasField(sort.Field) {
			errors = append(errors, QueryValidationError{
				Field:   path,
				Message: fmt.Sprintf("cannot sort by unknown field '%s'", sort.Field),
			})
		}
	}

	if dsl.Projection != nil {
		if len(dsl.Projection.Include) > 0 && len(dsl.Projection.Exclude) > 0 {
			errors = append(errors, QueryValidationError{
				Field:   "projection",
				Message: "cannot have both include and exclude fields",
			})
		}
	}

	if dsl.Filters != nil {
		errors = validateFilter(dsl.Filters, "filters", s, errors)
	}

	return errors
}

func validateFilter(filter *QueryFilter, path string, s *schema.SchemaDefinition, errors []QueryValidationError) []QueryValidationError {
	switch {
	case filter.Condition != nil && filter.Group != nil:
		return append(errors, QueryValidationError{
			Field:   path,
			Message: "filter cannot be both a condition and a group",
		})
	case filter.Condition != nil:
		if filter.Condition.Field == "" {
			return append(errors, QueryValidationError{Field: path, Message: "condition field is required"})
		}
		if s != nil && !s.HasField(filter.Condition.Field) {
			errors = append(errors, QueryValidationError{
				Field:   path,
				Message: fmt.Sprintf("cannot filter on unknown field '%s'", filter.Condition.Field),
			})
		}
		return errors
	case filter.Group != nil:
		switch filter.Group.Operator {
		case schema.LogicalAnd, schema.LogicalOr, schema.LogicalNot:
		default:
			errors = append(errors, QueryValidationError{
				Field:   path,
				Message: fmt.Sprintf("unknown logical operator '%s'", filter.Group.Operator),
			})
		}
		for i := range filter.Group.Conditions {
			errors = validateFilter(&filter.Group.Conditions[i], fmt.Sprintf("%s.conditions[%d]", path, i), s, errors)
		}
		return errors
	default:
		return append(errors, QueryValidationError{Field: path, Message: "empty filter"})
	}
}
