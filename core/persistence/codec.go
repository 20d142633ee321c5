package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/asaidimu/go-shelf/core/schema"
)

// EncodeDocuments renders a collection snapshot as a JSON array indented by
// two spaces. An empty collection encodes as "[]".
func EncodeDocuments(docs []schema.Document) ([]byte, error) {
	if docs == nil {
		docs = []schema.Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error encoding documents: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeDocuments parses a JSON array of objects. Numbers are kept as
// json.Number so that integers survive unchanged; collections normalize
// them against their schema.
func DecodeDocuments(data []byte) ([]schema.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var docs []schema.Document
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("error decoding documents: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("error decoding documents: unexpected data after the array")
	}
	if docs == nil {
		docs = []schema.Document{}
	}
	return docs, nil
}
