// Package query defines the Domain-Specific Language (DSL) for querying a
// collection. This DSL provides a structured way to express filtering,
// sorting, pagination and projection, and is evaluated in memory by the
// DataProcessor.
package query

import (
	"math"

	"github.com/asaidimu/go-shelf/core/schema"
)

// Logical operators for combining filter conditions.
const (
	LogicalOperatorAnd schema.LogicalOperator = schema.LogicalAnd
	LogicalOperatorOr  schema.LogicalOperator = schema.LogicalOr
	LogicalOperatorNot schema.LogicalOperator = schema.LogicalNot
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq          ComparisonOperator = "eq"
	ComparisonOperatorNeq         ComparisonOperator = "neq"
	ComparisonOperatorLt          ComparisonOperator = "lt"
	ComparisonOperatorLte         ComparisonOperator = "lte"
	ComparisonOperatorGt          ComparisonOperator = "gt"
	ComparisonOperatorGte         ComparisonOperator = "gte"
	ComparisonOperatorIn          ComparisonOperator = "in"
	ComparisonOperatorNin         ComparisonOperator = "nin"
	ComparisonOperatorContains    ComparisonOperator = "contains"
	ComparisonOperatorNotContains ComparisonOperator = "ncontains"
	ComparisonOperatorStartsWith  ComparisonOperator = "startswith"
	ComparisonOperatorEndsWith    ComparisonOperator = "endswith"
	ComparisonOperatorExists      ComparisonOperator = "exists"
	ComparisonOperatorNotExists   ComparisonOperator = "nexists"
)

// FilterValue represents the value used in a filter condition. It can be of any type,
// allowing for flexible query construction.
type FilterValue any

// FilterCondition defines a single condition for filtering the results of a query.
type FilterCondition struct {
	Field    string             `json:"field"`                // The field to apply the filter on.
	Operator ComparisonOperator `json:"operator"`             // The comparison operator to use.
	Value    FilterValue        `json:"value,omitempty"`      // The value to compare against.
	// IgnoreCase makes string comparisons case-insensitive.
	IgnoreCase bool `json:"ignoreCase,omitempty"`
}

// FilterGroup combines multiple filter conditions using a logical operator.
// This allows for the construction of nested filter logic.
type FilterGroup struct {
	Operator   schema.LogicalOperator `json:"operator"`   // The logical operator (AND, OR, NOT) to combine the conditions.
	Conditions []QueryFilter          `json:"conditions"` // The list of conditions or nested groups.
}

// QueryFilter is a union type that can represent either a single filter condition
// or a group of conditions.
type QueryFilter struct {
	Condition *FilterCondition `json:"condition,omitempty"` // A single filter condition.
	Group     *FilterGroup     `json:"group,omitempty"`     // A group of filter conditions.
}

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SortConfiguration defines the sorting order for a specific field.
type SortConfiguration struct {
	Field     string        `json:"field"`     // The field to sort by.
	Direction SortDirection `json:"direction"` // The direction of the sort (ascending or descending).
}

// PaginationOptions defines how the query results should be paginated.
// Pages are numbered from 1.
type PaginationOptions struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Offset returns the number of documents skipped before the page starts.
// It saturates at math.MaxInt instead of wrapping.
func (p PaginationOptions) Offset() int {
	if p.Page > 1 && p.Limit > 0 && p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// ProjectionField defines a field to be included or excluded in the query result.
type ProjectionField struct {
	Name string `json:"name"`
}

// ProjectionConfiguration defines which fields should be returned in the query result.
type ProjectionConfiguration struct {
	Include []ProjectionField `json:"include,omitempty"` // A list of fields to include.
	Exclude []ProjectionField `json:"exclude,omitempty"` // A list of fields to exclude.
}

// QueryDSL is the top-level structure that represents a complete query.
// Filters are applied first, then sorting, then pagination, then projection.
type QueryDSL struct {
	Filters    *QueryFilter             `json:"filters,omitempty"`
	Sort       []SortConfiguration      `json:"sort,omitempty"`
	Pagination *PaginationOptions       `json:"pagination,omitempty"`
	Projection *ProjectionConfiguration `json:"projection,omitempty"`
}

// QueryResult represents the result of a query.
type QueryResult struct {
	Data       []schema.Document `json:"data"`
	Count      int               `json:"count"`
	Pagination *PaginationResult `json:"pagination,omitempty"`
}

// PaginationResult contains the pagination information for a query result.
type PaginationResult struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// standardComparisonOperators is a set of all the standard, built-in comparison operators.
var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:          {},
	ComparisonOperatorNeq:         {},
	ComparisonOperatorLt:          {},
	ComparisonOperatorLte:         {},
	ComparisonOperatorGt:          {},
	ComparisonOperatorGte:         {},
	ComparisonOperatorIn:          {},
	ComparisonOperatorNin:         {},
	ComparisonOperatorContains:    {},
	ComparisonOperatorNotContains: {},
	ComparisonOperatorStartsWith:  {},
	ComparisonOperatorEndsWith:    {},
	ComparisonOperatorExists:      {},
	ComparisonOperatorNotExists:   {},
}

// IsStandard checks if a comparison operator is one of the standard, built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}

// GetStandardComparisonOperators returns a map of all standard comparison operators.
func GetStandardComparisonOperators() map[ComparisonOperator]struct{} {
	return standardComparisonOperators
}
