package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/asaidimu/go-shelf/core/persistence"
	"github.com/asaidimu/go-shelf/core/schema"
	"go.uber.org/zap"
)

// Error codes carried in APIError.Code.
const (
	CodeInvalidJSON        = "INVALID_JSON"
	CodeInvalidID          = "INVALID_ID"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInvalidQuery       = "INVALID_QUERY"
	CodeNotFound           = "NOT_FOUND"
	CodeCollectionNotFound = "COLLECTION_NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeInternal           = "INTERNAL"
)

// APIResponse represents the consistent envelope pattern for all API responses
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Meta    *ListMeta `json:"meta,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError represents error details in API responses
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Issues  []schema.Issue `json:"issues,omitempty"`
}

// ListMeta describes the page returned by a list request.
type ListMeta struct {
	Count int  `json:"count"`
	Total *int `json:"total,omitempty"`
	Page  *int `json:"page,omitempty"`
	Limit *int `json:"limit,omitempty"`
}

// writeSuccessResponse writes a successful API response
func (s *Server) writeSuccessResponse(w http.ResponseWriter, statusCode int, data any, meta *ListMeta) {
	s.writeJSONResponse(w, statusCode, APIResponse{Success: true, Data: data, Meta: meta})
}

// writeErrorResponse writes an error API response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, apiErr *APIError) {
	s.writeJSONResponse(w, statusCode, APIResponse{Success: false, Error: apiErr})
}

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeError maps a collection error onto a status code and envelope.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *persistence.ValidationError
		queryErr      *persistence.QueryError
		conflictErr   *persistence.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		apiErr := &APIError{Code: CodeValidationFailed, Message: "document failed validation", Issues: validationErr.Issues}
		if len(validationErr.Issues) > 0 {
			apiErr.Field = validationErr.Issues[0].Path
			apiErr.Message = validationErr.Issues[0].Message
		}
		s.writeErrorResponse(w, http.StatusBadRequest, apiErr)
	case errors.As(err, &queryErr):
		s.writeErrorResponse(w, http.StatusBadRequest, &APIError{Code: CodeInvalidQuery, Message: queryErr.Error(), Field: queryErr.Parameter})
	case errors.As(err, &conflictErr):
		field := ""
		if len(conflictErr.Fields) > 0 {
			field = conflictErr.Fields[0]
		}
		s.writeErrorResponse(w, http.StatusConflict, &APIError{Code: CodeConflict, Message: conflictErr.Error(), Field: field})
	case errors.Is(err, persistence.ErrConflict):
		s.writeErrorResponse(w, http.StatusConflict, &APIError{Code: CodeConflict, Message: err.Error()})
	case errors.Is(err, persistence.ErrInvalidID):
		s.writeErrorResponse(w, http.StatusBadRequest, &APIError{Code: CodeInvalidID, Message: err.Error()})
	case errors.Is(err, persistence.ErrNotFound):
		s.writeErrorResponse(w, http.StatusNotFound, &APIError{Code: CodeNotFound, Message: err.Error()})
	case errors.Is(err, persistence.ErrCollectionNotFound):
		s.writeErrorResponse(w, http.StatusNotFound, &APIError{Code: CodeCollectionNotFound, Message: err.Error()})
	default:
		s.logger.Error("Request failed", zap.Error(err))
		s.writeErrorResponse(w, http.StatusInternalServerError, &APIError{Code: CodeInternal, Message: "internal server error"})
	}
}

// bodyError describes a request body that could not be decoded.
type bodyError struct {
	status int
	code   string
	msg    string
}

func (e *bodyError) Error() string { return e.msg }

func (s *Server) writeBodyError(w http.ResponseWriter, err error) {
	var be *bodyError
	if errors.As(err, &be) {
		s.writeErrorResponse(w, be.status, &APIError{Code: be.code, Message: be.msg})
		return
	}
	s.writeErrorResponse(w, http.StatusBadRequest, &APIError{Code: CodeInvalidJSON, Message: fmt.Sprintf("invalid JSON in request body: %v", err)})
}
