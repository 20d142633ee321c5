// Package api exposes the registered collections over HTTP.
//
// Every collection gets the same routes:
//
//	GET    /{collection}        list, filtered by the collection's query parameters
//	POST   /{collection}        create
//	GET    /{collection}/{id}   read one
//	PUT    /{collection}/{id}   replace, or create with the given id
//	PATCH  /{collection}/{id}   partial update
//	DELETE /{collection}/{id}   delete
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/asaidimu/go-shelf/core/persistence"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MaxBodyBytes caps the size of request bodies.
const MaxBodyBytes = 1 << 20

// Server wraps the persistence layer and provides HTTP handlers
type Server struct {
	persistence persistence.PersistenceInterface
	logger      *zap.Logger
	router      *mux.Router
}

// NewServer creates a new API server instance
func NewServer(p persistence.PersistenceInterface, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		persistence: p,
		logger:      logger,
		router:      mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped with logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	return s.LoggingMiddleware(s.CORSMiddleware(s))
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Path("/health").HandlerFunc(s.handleHealth).Methods(http.MethodGet)

	s.router.Path("/{collection}").HandlerFunc(s.handleList).Methods(http.MethodGet)
	s.router.Path("/{collection}").HandlerFunc(s.handleCreate).Methods(http.MethodPost)
	s.router.Path("/{collection}/{id}").HandlerFunc(s.handleGet).Methods(http.MethodGet)
	s.router.Path("/{collection}/{id}").HandlerFunc(s.handleReplace).Methods(http.MethodPut)
	s.router.Path("/{collection}/{id}").HandlerFunc(s.handleUpdate).Methods(http.MethodPatch)
	s.router.Path("/{collection}/{id}").HandlerFunc(s.handleDelete).Methods(http.MethodDelete)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorResponse(w, http.StatusNotFound, &APIError{Code: CodeNotFound, Message: "no route for " + r.URL.Path})
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, &APIError{Code: CodeMethodNotAllowed, Message: r.Method + " is not supported on " + r.URL.Path})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

// collection resolves the {collection} route variable.
func (s *Server) collection(w http.ResponseWriter, r *http.Request) (persistence.PersistenceCollectionInterface, bool) {
	c, err := s.persistence.Collection(mux.Vars(r)["collection"])
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return c, true
}

// target resolves both route variables. The id is parsed before any store
// operation runs.
func (s *Server) target(w http.ResponseWriter, r *http.Request) (persistence.PersistenceCollectionInterface, any, bool) {
	c, ok := s.collection(w, r)
	if !ok {
		return nil, nil, false
	}
	id, err := c.ParseID(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return nil, nil, false
	}
	return c, id, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	dsl, err := c.ParseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := c.List(r.Context(), dsl)
	if err != nil {
		s.writeError(w, err)
		return
	}

	meta := &ListMeta{Count: result.Count}
	if p := result.Pagination; p != nil {
		meta.Total, meta.Page, meta.Limit = &p.Total, &p.Page, &p.Limit
	}
	s.writeSuccessResponse(w, http.StatusOK, result.Data, meta)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	body, err := s.parseJSONBody(w, r)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	created, err := c.Create(r.Context(), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccessResponse(w, http.StatusCreated, created, nil)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	c, id, ok := s.target(w, r)
	if !ok {
		return
	}
	doc, err := c.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccessResponse(w, http.StatusOK, doc, nil)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	c, id, ok := s.target(w, r)
	if !ok {
		return
	}
	body, err := s.parseJSONBody(w, r)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	doc, created, err := c.Replace(r.Context(), id, body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeSuccessResponse(w, status, doc, nil)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	c, id, ok := s.target(w, r)
	if !ok {
		return
	}
	body, err := s.parseJSONBody(w, r)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	doc, err := c.Update(r.Context(), id, body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccessResponse(w, http.StatusOK, doc, nil)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	c, id, ok := s.target(w, r)
	if !ok {
		return
	}
	doc, err := c.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccessResponse(w, http.StatusOK, doc, nil)
}

// parseJSONBody decodes a JSON object body. Numbers are kept as json.Number
// so that integers reach the collection without passing through float64.
func (s *Server) parseJSONBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	defer r.Body.Close()

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &bodyError{status: http.StatusRequestEntityTooLarge, code: CodePayloadTooLarge, msg: "request body exceeds 1 MiB"}
		}
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &bodyError{status: http.StatusBadRequest, code: CodeInvalidJSON, msg: "request body must be a JSON object"}
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var body map[string]any
	if err := decoder.Decode(&body); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, &bodyError{status: http.StatusBadRequest, code: CodeInvalidJSON, msg: "unexpected data after the JSON object"}
	}
	return body, nil
}

// CORSMiddleware adds permissive CORS headers and answers preflight requests.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs every request once it has been served.
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
