package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-shelf/core/schema"
)

// Sentinel errors returned by collections. Typed errors below match them
// through errors.Is.
var (
	ErrNotFound           = errors.New("document not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidQuery       = errors.New("invalid query")
	ErrInvalidID          = errors.New("invalid identifier")
	ErrConflict           = errors.New("conflict")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("a collection with a similar name exists")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidSchema      = errors.New("invalid schema definition")
)

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Collection string
	Issues     []schema.Issue
}

func (e *ValidationError) Error() string {
	paths := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		paths = append(paths, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return fmt.Sprintf("%s: document does not conform to the '%s' schema (%s)",
		ErrValidation, e.Collection, strings.Join(paths, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// QueryError reports a malformed query parameter or query structure.
type QueryError struct {
	Parameter string
	Message   string
}

func (e *QueryError) Error() string {
	if e.Parameter == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidQuery, e.Message)
	}
	return fmt.Sprintf("%s: parameter '%s' %s", ErrInvalidQuery, e.Parameter, e.Message)
}

func (e *QueryError) Unwrap() error { return ErrInvalidQuery }

// ConflictError reports a write that would break a unique index.
type ConflictError struct {
	Collection string
	Index      string
	Fields     []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: a document with the same %s already exists in '%s'",
		ErrConflict, strings.Join(e.Fields, " and "), e.Collection)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
