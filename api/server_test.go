package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/asaidimu/go-shelf/catalog"
	"github.com/asaidimu/go-shelf/core/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *ListMeta       `json:"meta"`
	Error   *APIError       `json:"error"`
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store, err := persistence.NewPersistence(persistence.NewMemoryDriver(), nil)
	require.NoError(t, err)
	require.NoError(t, catalog.Register(store, catalog.Options{Seed: true}))
	t.Cleanup(func() { _ = store.Close() })
	return NewServer(store, nil).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	}
	return rr, env
}

func decodeDoc(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	return doc
}

func decodeDocs(t *testing.T, env envelope) []map[string]any {
	t.Helper()
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &docs))
	return docs
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t)
	rr, _ := doRequest(t, handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}

func TestList(t *testing.T) {
	handler := newTestServer(t)

	t.Run("all", func(t *testing.T) {
		rr, env := doRequest(t, handler, http.MethodGet, "/films", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, env.Success)
		require.NotNil(t, env.Meta)
		assert.Equal(t, 3, env.Meta.Count)
		assert.Nil(t, env.Meta.Total)
		assert.Len(t, decodeDocs(t, env), 3)
	})

	t.Run("filtered, sorted and paginated", func(t *testing.T) {
		rr, env := doRequest(t, handler, http.MethodGet, "/films?duration=150&sort=-duration&page=1&limit=1", "")
		require.Equal(t, http.StatusOK, rr.Code)
		docs := decodeDocs(t, env)
		require.Len(t, docs, 1)
		assert.Equal(t, float64(178), docs[0]["duration"])
		require.NotNil(t, env.Meta.Total)
		assert.Equal(t, 2, *env.Meta.Total)
		assert.Equal(t, 1, *env.Meta.Limit)
	})

	t.Run("invalid query", func(t *testing.T) {
		rr, env := doRequest(t, handler, http.MethodGet, "/films?duration=long", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, CodeInvalidQuery, env.Error.Code)
		assert.Equal(t, "duration", env.Error.Field)

		rr, env = doRequest(t, handler, http.MethodGet, "/films?sort=rating", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, CodeInvalidQuery, env.Error.Code)
	})

	t.Run("unknown collection", func(t *testing.T) {
		rr, env := doRequest(t, handler, http.MethodGet, "/books", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, CodeCollectionNotFound, env.Error.Code)
	})
}

func TestGet(t *testing.T) {
	handler := newTestServer(t)

	rr, env := doRequest(t, handler, http.MethodGet, "/films/2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Inception", decodeDoc(t, env)["title"])

	rr, env = doRequest(t, handler, http.MethodGet, "/films/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeInvalidID, env.Error.Code)

	rr, env = doRequest(t, handler, http.MethodGet, "/films/99", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, env.Error.Code)
}

func TestCreate(t *testing.T) {
	handler := newTestServer(t)

	rr, env := doRequest(t, handler, http.MethodPost, "/films", `{"title":"Dune","director":"Denis Villeneuve","duration":155,"budget":165}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeDoc(t, env)
	assert.Equal(t, float64(4), created["id"])

	rr, env = doRequest(t, handler, http.MethodGet, "/films/4", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created, decodeDoc(t, env))

	t.Run("conflict ignores case", func(t *testing.T) {
		rr, env := doRequest(t, handler, http.MethodPost, "/films", `{"title":"DUNE","director":"denis villeneuve","duration":100}`)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, CodeConflict, env.Error.Code)
	})

	t.Run("validation", func(t *testing.T) {
		rr, env := doRequest(t, handler, http.MethodPost, "/films", `{"title":"Dune Part Two","director":"Denis Villeneuve"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, CodeValidationFailed, env.Error.Code)
		assert.Equal(t, "duration", env.Error.Field)
		require.NotEmpty(t, env.Error.Issues)
		assert.Equal(t, "REQUIRED_FIELD_MISSING", env.Error.Issues[0].Code)
	})

	t.Run("client id", func(t *testing.T) {
		rr, env := doRequest(t, handler, http.MethodPost, "/films", `{"id":50,"title":"Heat","director":"Michael Mann","duration":170}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, CodeValidationFailed, env.Error.Code)
		assert.Equal(t, "IMMUTABLE_FIELD", env.Error.Issues[0].Code)
	})

	t.Run("malformed bodies", func(t *testing.T) {
		for _, body := range []string{`{"title":`, `[{"title":"x"}]`, `"text"`, `{} {}`} {
			rr, env := doRequest(t, handler, http.MethodPost, "/films", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, body)
			assert.Equal(t, CodeInvalidJSON, env.Error.Code, body)
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		body := `{"content":"` + strings.Repeat("a", MaxBodyBytes) + `","level":"easy"}`
		rr, env := doRequest(t, handler, http.MethodPost, "/texts", body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Equal(t, CodePayloadTooLarge, env.Error.Code)
	})

	t.Run("uuid identity", func(t *testing.T) {
		rr, env := doRequest(t, handler, http.MethodPost, "/texts", `{"content":"The cat sat.","level":"easy"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
		id, ok := decodeDoc(t, env)["id"].(string)
		require.True(t, ok)

		rr, _ = doRequest(t, handler, http.MethodGet, "/texts/"+id, "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestUpdate(t *testing.T) {
	handler := newTestServer(t)

	rr, env := doRequest(t, handler, http.MethodPatch, "/films/1", `{"budget":-5}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeValidationFailed, env.Error.Code)
	assert.Equal(t, "budget", env.Error.Field)

	_, env = doRequest(t, handler, http.MethodGet, "/films/1", "")
	assert.Equal(t, float64(93), decodeDoc(t, env)["budget"])

	rr, env = doRequest(t, handler, http.MethodPatch, "/films/1", `{"duration":180,"description":null}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decodeDoc(t, env)
	assert.Equal(t, float64(180), updated["duration"])
	assert.NotContains(t, updated, "description")
	assert.Equal(t, "Peter Jackson", updated["director"])

	rr, env = doRequest(t, handler, http.MethodPatch, "/films/99", `{"duration":90}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, env.Error.Code)

	rr, env = doRequest(t, handler, http.MethodPatch, "/films/3", `{"title":"Inception","director":"Christopher Nolan"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, CodeConflict, env.Error.Code)
}

func TestReplace(t *testing.T) {
	handler := newTestServer(t)

	rr, env := doRequest(t, handler, http.MethodPut, "/films/10", `{"title":"Heat","director":"Michael Mann","duration":170}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, float64(10), decodeDoc(t, env)["id"])

	rr, env = doRequest(t, handler, http.MethodPut, "/films/10", `{"title":"Heat","director":"Michael Mann","duration":171}`)
	require.Equal(t, http.StatusOK, rr.Code)
	replaced := decodeDoc(t, env)
	assert.Equal(t, float64(171), replaced["duration"])

	rr, env = doRequest(t, handler, http.MethodPut, "/films/10", `{"id":11,"title":"Heat","director":"Michael Mann","duration":171}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeValidationFailed, env.Error.Code)

	rr, _ = doRequest(t, handler, http.MethodPost, "/films", `{"title":"Collateral","director":"Michael Mann","duration":120}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	_, env = doRequest(t, handler, http.MethodGet, "/films?director=michael&sort=-id", "")
	docs := decodeDocs(t, env)
	require.Len(t, docs, 2)
	assert.Equal(t, float64(11), docs[0]["id"])
}

func TestCreateAfterHighestID(t *testing.T) {
	handler := newTestServer(t)

	rr, _ := doRequest(t, handler, http.MethodPut, "/films/9223372036854775807", `{"title":"Heat","director":"Michael Mann","duration":170}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr, env := doRequest(t, handler, http.MethodPost, "/films", `{"title":"Collateral","director":"Michael Mann","duration":120}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeConflict, env.Error.Code)

	_, env = doRequest(t, handler, http.MethodGet, "/films?director=michael", "")
	assert.Len(t, decodeDocs(t, env), 1)
}

func TestListPageFarPastEnd(t *testing.T) {
	handler := newTestServer(t)

	for _, query := range []string{
		"page=4611686018427387905&limit=4",
		"page=9223372036854775806&limit=9223372036854775807",
	} {
		rr, env := doRequest(t, handler, http.MethodGet, "/films?"+query, "")
		require.Equal(t, http.StatusOK, rr.Code, query)
		assert.Empty(t, decodeDocs(t, env), query)
	}
}

func TestDelete(t *testing.T) {
	handler := newTestServer(t)

	rr, env := doRequest(t, handler, http.MethodDelete, "/films/2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Inception", decodeDoc(t, env)["title"])

	rr, env = doRequest(t, handler, http.MethodDelete, "/films/2", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, env.Error.Code)

	rr, env = doRequest(t, handler, http.MethodDelete, "/films/-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeInvalidID, env.Error.Code)
}

func TestMiddleware(t *testing.T) {
	handler := newTestServer(t)

	rr, _ := doRequest(t, handler, http.MethodOptions, "/films", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	rr, env := doRequest(t, handler, http.MethodPost, "/films/1", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, CodeMethodNotAllowed, env.Error.Code)

	rr, env = doRequest(t, handler, http.MethodGet, "/films/1/versions", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, env.Error.Code)
}
