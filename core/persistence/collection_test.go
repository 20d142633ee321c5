package persistence

import (
	"context"
	"errors"
	"math"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-shelf/core/query"
	"github.com/asaidimu/go-shelf/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filmsSchema = `{
	"name": "films",
	"version": "1.0.0",
	"identity": {"field": "id", "strategy": "sequence"},
	"fields": {
		"title": {"name": "title", "type": "string", "required": true,
			"constraints": [{"name": "title_not_empty", "predicate": "nonEmpty"}]},
		"director": {"name": "director", "type": "string", "required": true,
			"constraints": [{"name": "director_not_empty", "predicate": "nonEmpty"}]},
		"duration": {"name": "duration", "type": "integer", "required": true,
			"constraints": [{"name": "duration_positive", "predicate": "exclusiveMin", "parameters": 0}]},
		"budget": {"name": "budget", "type": "number",
			"constraints": [{"name": "budget_non_negative", "predicate": "min", "parameters": 0}]},
		"description": {"name": "description", "type": "string"}
	},
	"indexes": [{"name": "uq_films_title_director", "fields": ["title", "director"], "type": "unique", "ignoreCase": true}]
}`

const textsSchema = `{
	"name": "texts",
	"version": "1.0.0",
	"identity": {"strategy": "uuid"},
	"fields": {
		"content": {"name": "content", "type": "string", "required": true,
			"constraints": [{"name": "content_not_empty", "predicate": "nonEmpty"}]},
		"level": {"name": "level", "type": "enum", "required": true, "values": ["easy", "medium", "hard"]}
	}
}`

var filmParameters = []query.Parameter{
	{Name: "duration", Field: "duration", Operator: query.ComparisonOperatorGte, Type: query.ValueTypeInteger, Positive: true},
}

type fixture struct {
	driver   *MemoryDriver
	store    *Persistence
	films    PersistenceCollectionInterface
	texts    PersistenceCollectionInterface
	recorder *recorder
}

type recorder struct {
	mu     sync.Mutex
	events []PersistenceEvent
}

func (r *recorder) record(_ context.Context, event PersistenceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) has(eventType PersistenceEventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func newFixture(t *testing.T, seed ...schema.Document) *fixture {
	t.Helper()
	driver := NewMemoryDriver()
	store, err := NewPersistence(driver, nil)
	require.NoError(t, err)

	filmsDef, err := ParseSchema([]byte(filmsSchema))
	require.NoError(t, err)
	films, err := store.Create(*filmsDef, CollectionOptions{Seed: seed, Parameters: filmParameters})
	require.NoError(t, err)

	textsDef, err := ParseSchema([]byte(textsSchema))
	require.NoError(t, err)
	texts, err := store.Create(*textsDef, CollectionOptions{})
	require.NoError(t, err)

	rec := &recorder{}
	for _, eventType := range []PersistenceEventType{StorageReadFailed, StorageWriteFailed, DocumentCreateSuccess, DocumentCreateFailed} {
		store.RegisterSubscription(RegisterSubscriptionOptions{Event: eventType, Callback: rec.record})
	}

	return &fixture{driver: driver, store: store, films: films, texts: texts, recorder: rec}
}

func film(title, director string, duration int) map[string]any {
	return map[string]any{"title": title, "director": director, "duration": duration}
}

func TestCollection_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns sequential ids", func(t *testing.T) {
		f := newFixture(t)
		dune, err := f.films.Create(ctx, film("Dune", "Denis Villeneuve", 155))
		require.NoError(t, err)
		assert.Equal(t, int64(1), dune["id"])
		assert.Equal(t, int64(155), dune["duration"])

		arrival, err := f.films.Create(ctx, film("Arrival", "Denis Villeneuve", 116))
		require.NoError(t, err)
		assert.Equal(t, int64(2), arrival["id"])

		got, err := f.films.Get(ctx, int64(1))
		require.NoError(t, err)
		assert.Equal(t, dune, got)
	})

	t.Run("rejects duplicates ignoring case", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.films.Create(ctx, film("Dune", "Denis Villeneuve", 155))
		require.NoError(t, err)

		_, err = f.films.Create(ctx, film("DUNE", "denis villeneuve", 120))
		require.ErrorIs(t, err, ErrConflict)
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"title", "director"}, conflict.Fields)

		result, err := f.films.List(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Count)
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.films.Create(ctx, map[string]any{"title": "", "duration": 0, "rating": 5})
		require.ErrorIs(t, err, ErrValidation)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		paths := make([]string, 0, len(verr.Issues))
		for _, issue := range verr.Issues {
			paths = append(paths, issue.Path)
		}
		sort.Strings(paths)
		assert.Equal(t, []string{"director", "duration", "rating", "title"}, paths)
	})

	t.Run("rejects a client supplied id", func(t *testing.T) {
		f := newFixture(t)
		fields := film("Dune", "Denis Villeneuve", 155)
		fields["id"] = 40
		_, err := f.films.Create(ctx, fields)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, schema.IssueImmutableField, verr.Issues[0].Code)
	})

	t.Run("drops null optional fields", func(t *testing.T) {
		f := newFixture(t)
		fields := film("Dune", "Denis Villeneuve", 155)
		fields["budget"] = nil
		doc, err := f.films.Create(ctx, fields)
		require.NoError(t, err)
		assert.NotContains(t, doc, "budget")
	})

	t.Run("generates uuid identities", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.texts.Create(ctx, map[string]any{"content": "the quick brown fox", "level": "easy"})
		require.NoError(t, err)
		second, err := f.texts.Create(ctx, map[string]any{"content": "the quick brown fox", "level": "easy"})
		require.NoError(t, err)

		assert.IsType(t, "", first["id"])
		assert.Len(t, first["id"], 36)
		assert.NotEqual(t, first["id"], second["id"])
	})

	t.Run("rejects unknown levels", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.texts.Create(ctx, map[string]any{"content": "x", "level": "expert"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, schema.IssueEnumViolation, verr.Issues[0].Code)
	})
}

func TestCollection_Update(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *fixture {
		f := newFixture(t)
		_, err := f.films.Create(ctx, film("Dune", "Denis Villeneuve", 155))
		require.NoError(t, err)
		_, err = f.films.Create(ctx, film("Arrival", "Denis Villeneuve", 116))
		require.NoError(t, err)
		return f
	}

	t.Run("merges supplied fields", func(t *testing.T) {
		f := setup(t)
		doc, err := f.films.Update(ctx, int64(1), map[string]any{"budget": 165})
		require.NoError(t, err)
		assert.Equal(t, 165.0, doc["budget"])
		assert.Equal(t, "Dune", doc["title"])
		assert.Equal(t, int64(1), doc["id"])
	})

	t.Run("invalid change leaves the record unchanged", func(t *testing.T) {
		f := setup(t)
		before, err := f.films.Get(ctx, int64(1))
		require.NoError(t, err)

		_, err = f.films.Update(ctx, int64(1), map[string]any{"budget": -5})
		require.ErrorIs(t, err, ErrValidation)

		after, err := f.films.Get(ctx, int64(1))
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		f := setup(t)
		before, err := f.films.Get(ctx, int64(2))
		require.NoError(t, err)
		doc, err := f.films.Update(ctx, int64(2), map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, before, doc)
	})

	t.Run("null removes optional fields", func(t *testing.T) {
		f := setup(t)
		_, err := f.films.Update(ctx, int64(1), map[string]any{"budget": 165})
		require.NoError(t, err)
		doc, err := f.films.Update(ctx, int64(1), map[string]any{"budget": nil})
		require.NoError(t, err)
		assert.NotContains(t, doc, "budget")

		_, err = f.films.Update(ctx, int64(1), map[string]any{"title": nil})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("identity cannot change", func(t *testing.T) {
		f := setup(t)
		_, err := f.films.Update(ctx, int64(1), map[string]any{"id": 9})
		require.ErrorIs(t, err, ErrValidation)

		doc, err := f.films.Update(ctx, int64(1), map[string]any{"id": 1, "duration": 156})
		require.NoError(t, err)
		assert.Equal(t, int64(156), doc["duration"])
	})

	t.Run("missing document", func(t *testing.T) {
		f := setup(t)
		_, err := f.films.Update(ctx, int64(99), map[string]any{"budget": 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("conflicting change", func(t *testing.T) {
		f := setup(t)
		_, err := f.films.Update(ctx, int64(2), map[string]any{"title": "dune"})
		assert.ErrorIs(t, err, ErrConflict)

		_, err = f.films.Update(ctx, int64(1), map[string]any{"title": "DUNE"})
		assert.NoError(t, err, "a document does not conflict with itself")
	})
}

func TestCollection_Replace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.films.Create(ctx, film("Dune", "Denis Villeneuve", 155))
	require.NoError(t, err)

	doc, created, err := f.films.Replace(ctx, int64(1), film("Dune", "David Lynch", 137))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, schema.Document{"id": int64(1), "title": "Dune", "director": "David Lynch", "duration": int64(137)}, doc)

	doc, created, err = f.films.Replace(ctx, int64(7), film("Blade Runner", "Ridley Scott", 117))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), doc["id"])

	next, err := f.films.Create(ctx, film("Alien", "Ridley Scott", 117))
	require.NoError(t, err)
	assert.Equal(t, int64(8), next["id"])

	_, _, err = f.films.Replace(ctx, int64(1), map[string]any{"title": "Dune"})
	assert.ErrorIs(t, err, ErrValidation, "replace requires a complete document")

	_, _, err = f.films.Replace(ctx, int64(1), film("Alien", "ridley scott", 100))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCollection_CreateAfterHighestID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, created, err := f.films.Replace(ctx, int64(math.MaxInt64), film("Solaris", "Andrei Tarkovsky", 167))
	require.NoError(t, err)
	assert.True(t, created)

	for _, title := range []string{"Stalker", "Mirror"} {
		_, err = f.films.Create(ctx, film(title, "Andrei Tarkovsky", 160))
		assert.ErrorIs(t, err, ErrConflict, title)
		assert.NotErrorIs(t, err, ErrStorageUnavailable)
	}

	result, err := f.films.List(ctx, &query.QueryDSL{})
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, int64(math.MaxInt64), result.Data[0]["id"])

	// Freeing the top of the range makes the sequence usable again.
	_, err = f.films.Delete(ctx, int64(math.MaxInt64))
	require.NoError(t, err)
	doc, err := f.films.Create(ctx, film("Stalker", "Andrei Tarkovsky", 161))
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc["id"])
}

func TestCollection_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.films.Create(ctx, film("Dune", "Denis Villeneuve", 155))
	require.NoError(t, err)

	deleted, err := f.films.Delete(ctx, int64(1))
	require.NoError(t, err)
	assert.Equal(t, created, deleted)

	_, err = f.films.Delete(ctx, int64(1))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.films.Get(ctx, int64(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollection_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i, duration := range []int{100, 150, 200, 90} {
		_, err := f.films.Create(ctx, film(string(rune('A'+i)), "Someone", duration))
		require.NoError(t, err)
	}

	t.Run("filter sort and paginate", func(t *testing.T) {
		dsl, err := f.films.ParseQuery(url.Values{
			"duration": {"100"}, "sort": {"-duration"}, "page": {"1"}, "limit": {"2"},
		})
		require.NoError(t, err)

		result, err := f.films.List(ctx, dsl)
		require.NoError(t, err)
		require.Len(t, result.Data, 2)
		assert.Equal(t, int64(200), result.Data[0]["duration"])
		assert.Equal(t, int64(150), result.Data[1]["duration"])
		assert.Equal(t, 3, result.Pagination.Total)
	})

	t.Run("page far past the end", func(t *testing.T) {
		for _, values := range []url.Values{
			{"page": {"4611686018427387905"}, "limit": {"4"}},
			{"page": {"9223372036854775806"}, "limit": {"9223372036854775807"}},
		} {
			dsl, err := f.films.ParseQuery(values)
			require.NoError(t, err)

			var result *query.QueryResult
			require.NotPanics(t, func() {
				result, err = f.films.List(ctx, dsl)
			}, values.Encode())
			require.NoError(t, err)
			assert.Empty(t, result.Data, values.Encode())
			assert.Equal(t, 4, result.Pagination.Total)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		dsl, err := f.films.ParseQuery(url.Values{"duration": {"1000"}})
		require.NoError(t, err)
		result, err := f.films.List(ctx, dsl)
		require.NoError(t, err)
		assert.Empty(t, result.Data)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		for _, values := range []url.Values{
			{"duration": {"abc"}},
			{"duration": {"-5"}},
			{"sort": {"rating"}},
			{"page": {"0"}},
		} {
			_, err := f.films.ParseQuery(values)
			assert.ErrorIs(t, err, ErrInvalidQuery, values.Encode())
		}

		var qerr *QueryError
		_, err := f.films.ParseQuery(url.Values{"duration": {"abc"}})
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, "duration", qerr.Parameter)
	})

	t.Run("invalid dsl", func(t *testing.T) {
		dsl := query.NewQueryBuilder().Where("duration").Custom("near", 3).Build()
		_, err := f.films.List(ctx, &dsl)
		assert.ErrorIs(t, err, ErrInvalidQuery)

		dsl = query.NewQueryBuilder().Limit(0).Build()
		_, err = f.films.List(ctx, &dsl)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})
}

func TestCollection_ParseID(t *testing.T) {
	f := newFixture(t)

	id, err := f.films.ParseID("12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, raw := range []string{"abc", "1.5", "0", "-3", ""} {
		_, err := f.films.ParseID(raw)
		assert.ErrorIs(t, err, ErrInvalidID, raw)
	}

	id, err = f.texts.ParseID("any-opaque-id")
	require.NoError(t, err)
	assert.Equal(t, "any-opaque-id", id)
	_, err = f.texts.ParseID(" ")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestCollection_Storage(t *testing.T) {
	ctx := context.Background()

	t.Run("seed is used until something is stored", func(t *testing.T) {
		f := newFixture(t, schema.Document{"id": 3, "title": "Inception", "director": "Christopher Nolan", "duration": 148})

		result, err := f.films.List(ctx, nil)
		require.NoError(t, err)
		require.Len(t, result.Data, 1)
		assert.Equal(t, int64(3), result.Data[0]["id"])

		doc, err := f.films.Create(ctx, film("Tenet", "Christopher Nolan", 150))
		require.NoError(t, err)
		assert.Equal(t, int64(4), doc["id"])

		stored, err := f.driver.Load(ctx, "films")
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("unreadable storage is an empty collection", func(t *testing.T) {
		f := newFixture(t, schema.Document{"id": 3, "title": "Inception", "director": "Christopher Nolan", "duration": 148})
		f.driver.FailLoad = func(string) error { return errors.New("disk on fire") }

		result, err := f.films.List(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Data)
		require.Eventually(t, func() bool { return f.recorder.has(StorageReadFailed) }, time.Second, 10*time.Millisecond)
	})

	t.Run("failed writes still return the result", func(t *testing.T) {
		f := newFixture(t)
		f.driver.FailSave = func(string) error { return errors.New("read-only file system") }

		doc, err := f.films.Create(ctx, film("Dune", "Denis Villeneuve", 155))
		require.NoError(t, err)
		assert.Equal(t, int64(1), doc["id"])
		require.Eventually(t, func() bool { return f.recorder.has(StorageWriteFailed) }, time.Second, 10*time.Millisecond)
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFixture(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := f.films.Create(cctx, film("Dune", "Denis Villeneuve", 155))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCollection_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 20
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := f.films.Create(ctx, film(string(rune('a'+i)), "Someone", 90+i))
			if assert.NoError(t, err) {
				ids <- doc["id"].(int64)
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	result, err := f.films.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, n, result.Count)
}

func TestCollection_Events(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var mu sync.Mutex
	var collections []string
	id := f.texts.RegisterSubscription(RegisterSubscriptionOptions{
		Event: DocumentCreateSuccess,
		Callback: func(_ context.Context, event PersistenceEvent) error {
			mu.Lock()
			defer mu.Unlock()
			collections = append(collections, *event.Collection)
			return nil
		},
	})
	subs, err := f.texts.Subscriptions()
	require.NoError(t, err)
	require.Len(t, subs, 1)

	_, err = f.films.Create(ctx, film("Dune", "Denis Villeneuve", 155))
	require.NoError(t, err)
	_, err = f.texts.Create(ctx, map[string]any{"content": "pack my box", "level": "hard"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(collections) == 1
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"texts"}, collections)
	mu.Unlock()

	require.Eventually(t, func() bool { return f.recorder.has(DocumentCreateSuccess) }, time.Second, 10*time.Millisecond)

	_, err = f.films.Create(ctx, map[string]any{})
	require.Error(t, err)
	require.Eventually(t, func() bool { return f.recorder.has(DocumentCreateFailed) }, time.Second, 10*time.Millisecond)

	f.texts.UnregisterSubscription(id)
	subs, err = f.texts.Subscriptions()
	require.NoError(t, err)
	assert.Empty(t, subs)
}
