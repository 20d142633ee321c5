package schema

import (
	"strings"
	"unicode/utf8"
)

// Names of the predicates every Validator knows about.
const (
	PredicateNonEmpty     = "nonEmpty"
	PredicateMin          = "min"
	PredicateMax          = "max"
	PredicateExclusiveMin = "exclusiveMin"
	PredicateMinLength    = "minLength"
	PredicateMaxLength    = "maxLength"
)

// BuiltinPredicates returns a fresh map of the predicates available to every schema.
func BuiltinPredicates() FunctionMap {
	return FunctionMap{
		PredicateNonEmpty: func(p PredicateParams) bool {
			s, ok := p.Data.(string)
			return ok && strings.TrimSpace(s) != ""
		},
		PredicateMin: numericBound(func(value, bound float64) bool { return value >= bound }),
		PredicateMax: numericBound(func(value, bound float64) bool { return value <= bound }),
		PredicateExclusiveMin: numericBound(func(value, bound float64) bool { return value > bound }),
		PredicateMinLength: lengthBound(func(length, bound int64) bool { return length >= bound }),
		PredicateMaxLength: lengthBound(func(length, bound int64) bool { return length <= bound }),
	}
}

func numericBound(cmp func(value, bound float64) bool) Predicate {
	return func(p PredicateParams) bool {
		value, ok := AsFloat64(p.Data)
		if !ok {
			return false
		}
		bound, ok := AsFloat64(p.Args)
		if !ok {
			return false
		}
		return cmp(value, bound)
	}
}

func lengthBound(cmp func(length, bound int64) bool) Predicate {
	return func(p PredicateParams) bool {
		s, ok := p.Data.(string)
		if !ok {
			return false
		}
		bound, ok := AsInt64(p.Args)
		if !ok {
			return false
		}
		return cmp(int64(utf8.RuneCountInString(s)), bound)
	}
}
