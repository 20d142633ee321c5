// Package query provides a set of utility functions to support the query builder
// and processor. These helpers handle value comparison across the numeric
// representations a document may carry.
package query

import (
	"cmp"
	"fmt"
	"reflect"
	"strings"

	"github.com/asaidimu/go-shelf/core/schema"
)

// ToFloat64 converts a value of any numeric type, including json.Number, to a
// float64. It returns false for non-numeric values.
func ToFloat64(v any) (float64, bool) {
	return schema.AsFloat64(v)
}

// compareValues orders two values. Numbers compare numerically regardless of
// their Go type, strings lexically (folded when ignoreCase is set) and
// booleans with false first. Other combinations cannot be ordered.
func compareValues(a, b any, ignoreCase bool) (int, error) {
	if fa, ok := ToFloat64(a); ok {
		if fb, ok := ToFloat64(b); ok {
			return cmp.Compare(fa, fb), nil
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			if ignoreCase {
				sa, sb = strings.ToLower(sa), strings.ToLower(sb)
			}
			return strings.Compare(sa, sb), nil
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0, nil
			case !ba:
				return -1, nil
			default:
				return 1, nil
			}
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

// valuesEqual reports whether two values are equal under the same rules as
// compareValues, falling back to deep equality for other types.
func valuesEqual(a, b any, ignoreCase bool) bool {
	if c, err := compareValues(a, b, ignoreCase); err == nil {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// toSlice expands the value of an in/nin condition into its members.
func toSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// stringOperands returns both operands as strings, folded when ignoreCase is set.
func stringOperands(a, b any, ignoreCase bool) (string, string, bool) {
	sa, okA := a.(string)
	sb, okB := b.(string)
	if !okA || !okB {
		return "", "", false
	}
	if ignoreCase {
		return strings.ToLower(sa), strings.ToLower(sb), true
	}
	return sa, sb, true
}
