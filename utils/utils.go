// Package utils converts between typed Go structs and schema documents.
package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/asaidimu/go-shelf/core/schema"
)

// StructToDocument converts a struct into a document.
//
// The struct is marshaled to JSON, so `json:"name,omitempty"` tags decide
// which keys appear. Numbers are kept as json.Number; collections normalize
// them against their schema on write.
//
// The input must be a struct or a non-nil pointer to a struct.
//
// Example:
//
//	type Note struct {
//		Body  string `json:"body"`
//		Stars *int   `json:"stars,omitempty"`
//	}
//	doc, err := StructToDocument(Note{Body: "hello"})
//	// doc is schema.Document{"body": "hello"}
func StructToDocument[T any](record T) (schema.Document, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToDocument: failed to marshal input record to JSON: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc schema.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("StructToDocument: failed to decode JSON into a document: %w", err)
	}
	return doc, nil
}

// DocumentToStruct is the inverse of StructToDocument: it fills a new T
// from the keys of doc. T must be a struct type, or a pointer to one.
func DocumentToStruct[T any](doc schema.Document) (T, error) {
	var zero T

	if doc == nil {
		return zero, fmt.Errorf("DocumentToStruct: input document cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ == nil {
		return zero, fmt.Errorf("DocumentToStruct: generic type T must be a struct type")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("DocumentToStruct: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return zero, fmt.Errorf("DocumentToStruct: failed to marshal document to JSON: %w", err)
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return zero, fmt.Errorf("DocumentToStruct: failed to unmarshal JSON to target struct: %w", err)
	}
	return result, nil
}

// DocumentsToStructs converts every document of a list result.
func DocumentsToStructs[T any](docs []schema.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i, doc := range docs {
		record, err := DocumentToStruct[T](doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, record)
	}
	return out, nil
}
