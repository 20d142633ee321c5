package schema

import (
	"encoding/json"
	"math"
)

// AsFloat64 converts any Go or JSON numeric representation to a float64.
func AsFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// AsInt64 converts a numeric value to an int64. Floating point values are
// accepted only when they carry no fractional part.
func AsInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, true
		}
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case float32:
		return floatToInt64(float64(val))
	case float64:
		return floatToInt64(val)
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// CoerceValue converts value to the canonical Go representation of the
// given field type: int64 for integers and float64 for numbers. Values that
// cannot be converted are returned unchanged with ok set to false.
func CoerceValue(value any, fieldType FieldType) (any, bool) {
	if value == nil {
		return nil, true
	}
	switch fieldType {
	case FieldTypeInteger:
		if i, ok := AsInt64(value); ok {
			return i, true
		}
		return value, false
	case FieldTypeNumber:
		if f, ok := AsFloat64(value); ok {
			return f, true
		}
		return value, false
	case FieldTypeString:
		_, ok := value.(string)
		return value, ok
	case FieldTypeBoolean:
		_, ok := value.(bool)
		return value, ok
	case FieldTypeEnum:
		if n, ok := value.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i, true
			}
			f, err := n.Float64()
			return f, err == nil
		}
		if i, ok := AsInt64(value); ok {
			return i, true
		}
		return value, true
	}
	return value, true
}

// Normalize returns a copy of doc in which declared fields and the identity
// field hold their canonical representations. Values that do not match
// their declared type are left as they are; validation reports them.
func (s *SchemaDefinition) Normalize(doc Document) Document {
	out := make(Document, len(doc))
	idField := s.IdentityField()
	for key, value := range doc {
		if key == idField {
			out[key] = s.NormalizeID(value)
			continue
		}
		field, ok := s.Fields[key]
		if !ok {
			out[key] = value
			continue
		}
		coerced, _ := CoerceValue(value, field.Type)
		out[key] = coerced
	}
	return out
}

// NormalizeID converts an identity value to the representation used by the
// schema's identity strategy.
func (s *SchemaDefinition) NormalizeID(value any) any {
	switch s.Identity.Strategy {
	case IdentitySequence:
		if i, ok := AsInt64(value); ok {
			return i
		}
	case IdentityUUID:
		if n, ok := value.(json.Number); ok {
			return n.String()
		}
	}
	return value
}
