// Package query provides a fluent API for building queries using the
// structured QueryDSL.
package query

import (
	"github.com/asaidimu/go-shelf/core/schema"
)

// QueryBuilder provides a fluent API for building QueryDSL structures.
// Successive Where calls are combined with AND.
type QueryBuilder struct {
	query QueryDSL
}

// NewQueryBuilder creates a new, empty query builder instance.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		query: QueryDSL{},
	}
}

// Build returns the constructed QueryDSL object.
func (qb *QueryBuilder) Build() QueryDSL {
	return qb.query
}

// addFilter ANDs filter into the query's existing filters.
func (qb *QueryBuilder) addFilter(filter QueryFilter) {
	switch {
	case qb.query.Filters == nil:
		qb.query.Filters = &filter
	case qb.query.Filters.Group != nil && qb.query.Filters.Group.Operator == LogicalOperatorAnd:
		qb.query.Filters.Group.Conditions = append(qb.query.Filters.Group.Conditions, filter)
	default:
		existing := *qb.query.Filters
		qb.query.Filters = &QueryFilter{Group: &FilterGroup{
			Operator:   LogicalOperatorAnd,
			Conditions: []QueryFilter{existing, filter},
		}}
	}
}

// Where begins the construction of a filter condition for a specific field.
func (qb *QueryBuilder) Where(field string) *FilterConditionBuilder {
	return &FilterConditionBuilder{
		add: func(filter QueryFilter) *QueryBuilder {
			qb.addFilter(filter)
			return qb
		},
		field: field,
	}
}

// WhereGroup begins the construction of a group of filter conditions, combined
// with a logical operator.
func (qb *QueryBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{
		parent:     qb,
		operator:   operator,
		conditions: []QueryFilter{},
	}
}

// FilterConditionBuilder is used to build a single filter condition (e.g., field = value).
type FilterConditionBuilder = conditionBuilder[*QueryBuilder]

// conditionBuilder builds one condition and hands it to add, returning
// whatever builder the condition belongs to.
type conditionBuilder[R any] struct {
	add        func(QueryFilter) R
	field      string
	ignoreCase bool
}

// IgnoreCase makes the next string comparison case-insensitive.
func (cb *conditionBuilder[R]) IgnoreCase() *conditionBuilder[R] {
	cb.ignoreCase = true
	return cb
}

// Eq adds an equality condition.
func (cb *conditionBuilder[R]) Eq(value FilterValue) R {
	return cb.addCondition(ComparisonOperatorEq, value)
}

// Neq adds a not-equal condition.
func (cb *conditionBuilder[R]) Neq(value FilterValue) R {
	return cb.addCondition(ComparisonOperatorNeq, value)
}

// Lt adds a less-than condition.
func (cb *conditionBuilder[R]) Lt(value FilterValue) R {
	return cb.addCondition(ComparisonOperatorLt, value)
}

// Lte adds a less-than-or-equal condition.
func (cb *conditionBuilder[R]) Lte(value FilterValue) R {
	return cb.addCondition(ComparisonOperatorLte, value)
}

// Gt adds a greater-than condition.
func (cb *conditionBuilder[R]) Gt(value FilterValue) R {
	return cb.addCondition(ComparisonOperatorGt, value)
}

// Gte adds a greater-than-or-equal condition.
func (cb *conditionBuilder[R]) Gte(value FilterValue) R {
	return cb.addCondition(ComparisonOperatorGte, value)
}

// In adds an "in" condition, checking if a field's value is within a set of values.
func (cb *conditionBuilder[R]) In(values ...FilterValue) R {
	return cb.addCondition(ComparisonOperatorIn, values)
}

// Nin adds a "not in" condition, checking if a field's value is not within a set of values.
func (cb *conditionBuilder[R]) Nin(values ...FilterValue) R {
	return cb.addCondition(ComparisonOperatorNin, values)
}

// Contains adds a condition to check if a string field contains a substring.
func (cb *conditionBuilder[R]) Contains(value FilterValue) R {
	return cb.addCondition(ComparisonOperatorContains, value)
}

// NotContains adds a condition to check if a string field does not contain a substring.
func (cb *conditionBuilder[R]) NotContains(value FilterValue) R {
	return cb.addCondition(ComparisonOperatorNotContains, value)
}

// StartsWith adds a condition to check if a string field starts with a specific prefix.
func (cb *conditionBuilder[R]) StartsWith(value FilterValue) R {
	return cb.addCondition(ComparisonOperatorStartsWith, value)
}

// EndsWith adds a condition to check if a string field ends with a specific suffix.
func (cb *conditionBuilder[R]) EndsWith(value FilterValue) R {
	return cb.addCondition(ComparisonOperatorEndsWith, value)
}

// Exists adds a condition to check if a field exists and is not null.
func (cb *conditionBuilder[R]) Exists() R {
	return cb.addCondition(ComparisonOperatorExists, true)
}

// NotExists adds a condition to check if a field does not exist or is null.
func (cb *conditionBuilder[R]) NotExists() R {
	return cb.addCondition(ComparisonOperatorNotExists, true)
}

// Custom allows for the use of a registered custom comparison operator.
func (cb *conditionBuilder[R]) Custom(operator ComparisonOperator, value FilterValue) R {
	return cb.addCondition(operator, value)
}

func (cb *conditionBuilder[R]) addCondition(operator ComparisonOperator, value FilterValue) R {
	return cb.add(QueryFilter{Condition: &FilterCondition{
		Field:      cb.field,
		Operator:   operator,
		Value:      value,
		IgnoreCase: cb.ignoreCase,
	}})
}

// FilterGroupBuilder is used to build a group of filter conditions.
type FilterGroupBuilder struct {
	parent     *QueryBuilder
	operator   schema.LogicalOperator
	conditions []QueryFilter
}

// Where adds a new condition to the current filter group.
func (fgb *FilterGroupBuilder) Where(field string) *conditionBuilder[*FilterGroupBuilder] {
	return &conditionBuilder[*FilterGroupBuilder]{
		add: func(filter QueryFilter) *FilterGroupBuilder {
			fgb.conditions = append(fgb.conditions, filter)
			return fgb
		},
		field: field,
	}
}

// End finalizes the current filter group and returns to the main query builder.
func (fgb *FilterGroupBuilder) End() *QueryBuilder {
	fgb.parent.addFilter(QueryFilter{Group: &FilterGroup{
		Operator:   fgb.operator,
		Conditions: fgb.conditions,
	}})
	return fgb.parent
}

// OrderBy adds a sorting configuration to the query.
func (qb *QueryBuilder) OrderBy(field string, direction SortDirection) *QueryBuilder {
	sort := SortConfiguration{
		Field:     field,
		Direction: direction,
	}
	qb.query.Sort = append(qb.query.Sort, sort)
	return qb
}

// OrderByAsc adds an ascending sort order for a specific field.
func (qb *QueryBuilder) OrderByAsc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionAsc)
}

// OrderByDesc adds a descending sort order for a specific field.
func (qb *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionDesc)
}

// Page selects the 1-based page of results. A page without a limit uses DefaultPageSize.
func (qb *QueryBuilder) Page(page int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{Limit: DefaultPageSize}
	}
	qb.query.Pagination.Page = page
	return qb
}

// Limit sets the maximum number of documents per page. A limit without a page selects page 1.
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{Page: 1}
	}
	qb.query.Pagination.Limit = limit
	return qb
}

// ProjectionBuilder is used to build the projection part of a query, which defines
// which fields should be returned.
type ProjectionBuilder struct {
	parent *QueryBuilder
	config *ProjectionConfiguration
}

// Select begins the construction of the projection for the query.
func (qb *QueryBuilder) Select() *ProjectionBuilder {
	if qb.query.Projection == nil {
		qb.query.Projection = &ProjectionConfiguration{}
	}
	return &ProjectionBuilder{
		parent: qb,
		config: qb.query.Projection,
	}
}

// Include specifies which fields should be included in the result set.
func (pb *ProjectionBuilder) Include(fields ...string) *ProjectionBuilder {
	for _, field := range fields {
		pb.config.Include = append(pb.config.Include, ProjectionField{Name: field})
	}
	return pb
}

// Exclude specifies which fields should be excluded from the result set.
func (pb *ProjectionBuilder) Exclude(fields ...string) *ProjectionBuilder {
	for _, field := range fields {
		pb.config.Exclude = append(pb.config.Exclude, ProjectionField{Name: field})
	}
	return pb
}

// End finalizes the projection and returns to the main query builder.
func (pb *ProjectionBuilder) End() *QueryBuilder {
	return pb.parent
}
