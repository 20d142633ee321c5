package utils

import (
	"encoding/json"
	"testing"

	"github.com/asaidimu/go-shelf/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID    int64    `json:"id,omitempty"`
	Body  string   `json:"body"`
	Score *float64 `json:"score,omitempty"`
}

func TestStructToDocument(t *testing.T) {
	score := 4.5
	doc, err := StructToDocument(note{Body: "hello", Score: &score})
	require.NoError(t, err)
	assert.Equal(t, schema.Document{"body": "hello", "score": json.Number("4.5")}, doc)

	doc, err = StructToDocument(&note{ID: 3, Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, json.Number("3"), doc["id"])

	t.Run("rejects non structs", func(t *testing.T) {
		_, err := StructToDocument(42)
		assert.Error(t, err)

		var missing *note
		_, err = StructToDocument(missing)
		assert.Error(t, err)

		_, err = StructToDocument[any](nil)
		assert.Error(t, err)
	})
}

func TestDocumentToStruct(t *testing.T) {
	got, err := DocumentToStruct[note](schema.Document{"id": int64(7), "body": "hi", "score": 1.5})
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "hi", got.Body)
	assert.Equal(t, 1.5, *got.Score)

	ptr, err := DocumentToStruct[*note](schema.Document{"body": "pointer"})
	require.NoError(t, err)
	assert.Equal(t, "pointer", ptr.Body)

	_, err = DocumentToStruct[note](nil)
	assert.Error(t, err)

	_, err = DocumentToStruct[string](schema.Document{})
	assert.Error(t, err)

	_, err = DocumentToStruct[note](schema.Document{"id": "not a number"})
	assert.Error(t, err)
}

func TestDocumentsToStructs(t *testing.T) {
	notes, err := DocumentsToStructs[note]([]schema.Document{{"body": "a"}, {"body": "b"}})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "b", notes[1].Body)

	empty, err := DocumentsToStructs[note](nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
