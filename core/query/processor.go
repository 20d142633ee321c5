package query

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/asaidimu/go-shelf/core/schema"
	"go.uber.org/zap"
)

// PredicateFunction is a pure Go function that performs custom filtering logic on a document.
// It takes a Document and returns true if the document passes the filter, false otherwise,
// and an error if evaluation fails.
type PredicateFunction func(doc schema.Document, field string, args FilterValue) (bool, error)

// DataProcessor evaluates a QueryDSL against documents held in memory:
// filtering, then sorting, then pagination, then projection.
type DataProcessor struct {
	filterFunctions map[ComparisonOperator]PredicateFunction
	mu              sync.RWMutex
	logger          *zap.Logger
}

// NewDataProcessor creates a new DataProcessor instance.
func NewDataProcessor(logger *zap.Logger) *DataProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataProcessor{
		filterFunctions: make(map[ComparisonOperator]PredicateFunction),
		logger:          logger,
	}
}

// RegisterFilterFunction registers a Go function for custom filtering.
func (p *DataProcessor) RegisterFilterFunction(operator ComparisonOperator, fn PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filterFunctions[operator] = fn
	p.logger.Info("Registered filter function", zap.String("operator", string(operator)))
}

// RegisterFilterFunctions registers multiple PredicateFunction functions from a map.
func (p *DataProcessor) RegisterFilterFunctions(functionMap map[ComparisonOperator]PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for operator, fn := range functionMap {
		p.filterFunctions[operator] = fn
		p.logger.Info("Registered filter function", zap.String("operator", string(operator)))
	}
}

// HasFilterFunction reports whether a custom operator has been registered.
func (p *DataProcessor) HasFilterFunction(operator ComparisonOperator) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.filterFunctions[operator]
	return ok
}

// Process runs the full query pipeline over docs. The input slice is not
// modified. The result's Count is the size of the returned page and, when the
// query is paginated, Pagination.Total is the number of matches before paging.
func (p *DataProcessor) Process(docs []schema.Document, dsl *QueryDSL) (*QueryResult, error) {
	if dsl == nil {
		dsl = &QueryDSL{}
	}

	filtered, err := p.Filter(docs, dsl.Filters)
	if err != nil {
		return nil, fmt.Errorf("filter failed: %w", err)
	}
	p.logger.Debug("Documents remaining after filters", zap.Int("count", len(filtered)))

	p.Sort(filtered, dsl.Sort)

	total := len(filtered)
	page := Paginate(filtered, dsl.Pagination)

	result := &QueryResult{
		Data:  p.applyProjection(page, dsl.Projection),
		Count: len(page),
	}
	if dsl.Pagination != nil {
		result.Pagination = &PaginationResult{
			Total: total,
			Page:  dsl.Pagination.Page,
			Limit: dsl.Pagination.Limit,
		}
	}
	return result, nil
}

// Filter returns the documents matching filter, preserving their order.
// PRODUCTION WARNING: filtering happens in-memory over the whole collection.
func (p *DataProcessor) Filter(docs []schema.Document, filter *QueryFilter) ([]schema.Document, error) {
	out := make([]schema.Document, 0, len(docs))
	if filter == nil {
		return append(out, docs...), nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, doc := range docs {
		passes, err := p.evaluate(doc, filter)
		if err != nil {
			return nil, err
		}
		if passes {
			out = append(out, doc)
		}
	}
	return out, nil
}

// evaluate recursively evaluates a QueryFilter against one document.
func (p *DataProcessor) evaluate(doc schema.Document, filter *QueryFilter) (bool, error) {
	if filter.Condition != nil {
		if !filter.Condition.Operator.IsStandard() {
			fn, ok := p.filterFunctions[filter.Condition.Operator]
			if !ok {
				return false, fmt.Errorf("unregistered filter function for operator: %s", filter.Condition.Operator)
			}
			return fn(doc, filter.Condition.Field, filter.Condition.Value)
		}
		return evaluateStandardCondition(doc, filter.Condition)
	}
	if filter.Group != nil {
		switch filter.Group.Operator {
		case schema.LogicalAnd:
			return p.evaluateAll(doc, filter.Group.Conditions)
		case schema.LogicalOr:
			for _, cond := range filter.Group.Conditions {
				passes, err := p.evaluate(doc, &cond)
				if err != nil {
					return false, err
				}
				if passes {
					return true, nil
				}
			}
			return false, nil
		case schema.LogicalNot:
			passes, err := p.evaluateAll(doc, filter.Group.Conditions)
			return !passes && err == nil, err
		default:
			return false, fmt.Errorf("unsupported logical operator: %s", filter.Group.Operator)
		}
	}
	return false, fmt.Errorf("empty or invalid filter structure")
}

func (p *DataProcessor) evaluateAll(doc schema.Document, conditions []QueryFilter) (bool, error) {
	for _, cond := range conditions {
		passes, err := p.evaluate(doc, &cond)
		if err != nil || !passes {
			return false, err
		}
	}
	return true, nil
}

// evaluateStandardCondition performs the in-memory evaluation for standard comparison operators.
// A missing or null field satisfies only the negative operators.
func evaluateStandardCondition(doc schema.Document, condition *FilterCondition) (bool, error) {
	fieldValue, ok := doc[condition.Field]
	present := ok && fieldValue != nil

	switch condition.Operator {
	case ComparisonOperatorExists:
		return present, nil
	case ComparisonOperatorNotExists:
		return !present, nil
	}

	if !present {
		switch condition.Operator {
		case ComparisonOperatorNeq, ComparisonOperatorNin, ComparisonOperatorNotContains:
			return true, nil
		}
		return false, nil
	}

	ic := condition.IgnoreCase
	switch condition.Operator {
	case ComparisonOperatorEq:
		return valuesEqual(fieldValue, condition.Value, ic), nil
	case ComparisonOperatorNeq:
		return !valuesEqual(fieldValue, condition.Value, ic), nil
	case ComparisonOperatorGt, ComparisonOperatorGte, ComparisonOperatorLt, ComparisonOperatorLte:
		c, err := compareValues(fieldValue, condition.Value, ic)
		if err != nil {
			return false, fmt.Errorf("unsupported types for %s comparison on '%s': %w", condition.Operator, condition.Field, err)
		}
		switch condition.Operator {
		case ComparisonOperatorGt:
			return c > 0, nil
		case ComparisonOperatorGte:
			return c >= 0, nil
		case ComparisonOperatorLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case ComparisonOperatorIn, ComparisonOperatorNin:
		items, ok := toSlice(condition.Value)
		if !ok {
			return false, fmt.Errorf("%s on '%s' requires a list value, got %T", condition.Operator, condition.Field, condition.Value)
		}
		found := slices.ContainsFunc(items, func(item any) bool {
			return valuesEqual(fieldValue, item, ic)
		})
		return found == (condition.Operator == ComparisonOperatorIn), nil
	case ComparisonOperatorContains, ComparisonOperatorNotContains,
		ComparisonOperatorStartsWith, ComparisonOperatorEndsWith:
		s, sub, ok := stringOperands(fieldValue, condition.Value, ic)
		if !ok {
			return false, fmt.Errorf("%s on '%s' requires string operands, got %T and %T",
				condition.Operator, condition.Field, fieldValue, condition.Value)
		}
		switch condition.Operator {
		case ComparisonOperatorContains:
			return strings.Contains(s, sub), nil
		case ComparisonOperatorNotContains:
			return !strings.Contains(s, sub), nil
		case ComparisonOperatorStartsWith:
			return strings.HasPrefix(s, sub), nil
		default:
			return strings.HasSuffix(s, sub), nil
		}
	default:
		return false, fmt.Errorf("unsupported standard comparison operator: %s", condition.Operator)
	}
}

// Sort orders docs in place by the given keys. The sort is stable, so
// documents that compare equal keep their stored order. Documents missing a
// key come first in ascending order and last in descending order.
func (p *DataProcessor) Sort(docs []schema.Document, sorts []SortConfiguration) {
	if len(sorts) == 0 {
		return
	}
	slices.SortStableFunc(docs, func(a, b schema.Document) int {
		for _, s := range sorts {
			c := compareField(a, b, s.Field)
			if s.Direction == SortDirectionDesc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func compareField(a, b schema.Document, field string) int {
	va, okA := a[field]
	vb, okB := b[field]
	okA = okA && va != nil
	okB = okB && vb != nil
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}
	c, err := compareValues(va, vb, false)
	if err != nil {
		return 0
	}
	return c
}

// Paginate returns the requested page of docs. A page past the end is empty.
func Paginate(docs []schema.Document, pagination *PaginationOptions) []schema.Document {
	if pagination == nil {
		return docs
	}
	page, limit := pagination.Page, pagination.Limit
	if page < 1 || limit < 1 || len(docs) == 0 || page-1 > (len(docs)-1)/limit {
		return []schema.Document{}
	}
	// offset <= len(docs)-1 here, so neither bound can overflow.
	offset := (page - 1) * limit
	end := len(docs)
	if limit < end-offset {
		end = offset + limit
	}
	return docs[offset:end]
}

// applyProjection reshapes documents to match the requested projection (include/exclude).
func (p *DataProcessor) applyProjection(docs []schema.Document, projection *ProjectionConfiguration) []schema.Document {
	if projection == nil || (len(projection.Include) == 0 && len(projection.Exclude) == 0) {
		return docs
	}

	includeAll := len(projection.Include) == 0
	includeSet := make(map[string]struct{}, len(projection.Include))
	for _, f := range projection.Include {
		includeSet[f.Name] = struct{}{}
	}

	finalDocs := make([]schema.Document, 0, len(docs))
	for _, original := range docs {
		doc := make(schema.Document)
		if includeAll {
			maps.Copy(doc, original)
		} else {
			for fieldName, value := range original {
				if _, ok := includeSet[fieldName]; ok {
					doc[fieldName] = value
				}
			}
		}
		for _, f := range projection.Exclude {
			delete(doc, f.Name)
		}
		finalDocs = append(finalDocs, doc)
	}
	return finalDocs
}

// Match evaluates a given document against a set of QueryFilter conditions.
// It returns true if the document matches all filter conditions, false otherwise,
// and an error if the evaluation encounters an issue.
func (p *DataProcessor) Match(ctx context.Context, filters *QueryFilter, data schema.Document) (bool, error) {
	if filters == nil {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.evaluate(data, filters)
}
