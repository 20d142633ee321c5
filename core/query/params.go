package query

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// DefaultPageSize is the page size used when a page is requested without a limit.
const DefaultPageSize = 10

// Reserved parameter names understood by every collection.
const (
	ParamSort  = "sort"
	ParamOrder = "order"
	ParamPage  = "page"
	ParamLimit = "limit"
)

// ValueType is the type a query parameter's raw string is parsed into.
type ValueType string

// Supported parameter value types.
const (
	ValueTypeInteger ValueType = "integer"
	ValueTypeNumber  ValueType = "number"
	ValueTypeString  ValueType = "string"
	ValueTypeEnum    ValueType = "enum"
)

// Parameter declares a query-string parameter a collection accepts and the
// filter condition it turns into.
type Parameter struct {
	Name        string             `json:"name"`
	Field       string             `json:"field"`
	Operator    ComparisonOperator `json:"operator"`
	Type        ValueType          `json:"type"`
	Positive    bool               `json:"positive,omitempty"`
	NonNegative bool               `json:"nonNegative,omitempty"`
	IgnoreCase  bool               `json:"ignoreCase,omitempty"`
	Values      []string           `json:"values,omitempty"`
	Description string             `json:"description,omitempty"`
}

// ParameterError reports a malformed query parameter.
type ParameterError struct {
	Parameter string
	Message   string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid query parameter '%s': %s", e.Parameter, e.Message)
}

// ParseParameters builds a QueryDSL from query-string values. Only the
// declared parameters and the reserved sort/order/page/limit names are
// read; anything else is ignored, as are empty values. When a parameter is
// repeated the first value wins. Declared filters are combined with AND.
func ParseParameters(values url.Values, params []Parameter) (*QueryDSL, error) {
	qb := NewQueryBuilder()

	for _, param := range params {
		raw := strings.TrimSpace(values.Get(param.Name))
		if raw == "" {
			continue
		}
		value, err := param.parse(raw)
		if err != nil {
			return nil, err
		}
		cb := qb.Where(param.Field)
		if param.IgnoreCase {
			cb.IgnoreCase()
		}
		cb.Custom(param.Operator, value)
	}

	if err := parseSort(qb, values); err != nil {
		return nil, err
	}

	if raw := strings.TrimSpace(values.Get(ParamPage)); raw != "" {
		page, err := parsePositiveInt(ParamPage, raw)
		if err != nil {
			return nil, err
		}
		qb.Page(page)
	}
	if raw := strings.TrimSpace(values.Get(ParamLimit)); raw != "" {
		limit, err := parsePositiveInt(ParamLimit, raw)
		if err != nil {
			return nil, err
		}
		qb.Limit(limit)
	}

	dsl := qb.Build()
	return &dsl, nil
}

func (p Parameter) parse(raw string) (any, error) {
	switch p.Type {
	case ValueTypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &ParameterError{Parameter: p.Name, Message: "must be an integer"}
		}
		if err := p.checkSign(float64(n)); err != nil {
			return nil, err
		}
		return n, nil
	case ValueTypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &ParameterError{Parameter: p.Name, Message: "must be a number"}
		}
		if err := p.checkSign(f); err != nil {
			return nil, err
		}
		return f, nil
	case ValueTypeEnum:
		if !slices.Contains(p.Values, raw) {
			return nil, &ParameterError{
				Parameter: p.Name,
				Message:   fmt.Sprintf("must be one of: %s", strings.Join(p.Values, ", ")),
			}
		}
		return raw, nil
	default:
		return raw, nil
	}
}

func (p Parameter) checkSign(f float64) error {
	if p.Positive && f <= 0 {
		return &ParameterError{Parameter: p.Name, Message: "must be greater than 0"}
	}
	if p.NonNegative && f < 0 {
		return &ParameterError{Parameter: p.Name, Message: "must not be negative"}
	}
	return nil
}

// parseSort reads "sort=field,-other" and an optional "order=asc|desc". A
// leading '-' sorts that field descending; order applies to the rest.
func parseSort(qb *QueryBuilder, values url.Values) error {
	direction := SortDirectionAsc
	if raw := strings.TrimSpace(values.Get(ParamOrder)); raw != "" {
		switch SortDirection(strings.ToLower(raw)) {
		case SortDirectionAsc:
		case SortDirectionDesc:
			direction = SortDirectionDesc
		default:
			return &ParameterError{Parameter: ParamOrder, Message: "must be 'asc' or 'desc'"}
		}
	}

	raw := strings.TrimSpace(values.Get(ParamSort))
	if raw == "" {
		return nil
	}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		dir := direction
		if rest, ok := strings.CutPrefix(field, "-"); ok {
			field, dir = rest, SortDirectionDesc
		}
		if field == "" {
			return &ParameterError{Parameter: ParamSort, Message: "empty sort field"}
		}
		qb.OrderBy(field, dir)
	}
	return nil
}

func parsePositiveInt(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &ParameterError{Parameter: name, Message: "must be a positive integer"}
	}
	return n, nil
}
