package persistence

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/asaidimu/go-shelf/core/schema"
	"github.com/google/uuid"
)

// IdentityGenerator assigns and parses document identities.
type IdentityGenerator interface {
	// Next returns a fresh identity that no document in docs holds. It fails
	// with an error matching ErrConflict when no such identity exists.
	Next(docs []schema.Document) (any, error)
	// Parse converts an external representation, such as a URL path
	// segment, into an identity.
	Parse(raw string) (any, error)
}

// NewIdentityGenerator returns the generator for a schema's identity strategy.
func NewIdentityGenerator(def *schema.SchemaDefinition) (IdentityGenerator, error) {
	field := def.IdentityField()
	switch def.Identity.Strategy {
	case schema.IdentitySequence:
		return &sequenceIdentity{field: field}, nil
	case schema.IdentityUUID:
		return &uuidIdentity{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown identity strategy '%s'", ErrInvalidSchema, def.Identity.Strategy)
	}
}

// sequenceIdentity hands out the largest existing integer id plus one.
type sequenceIdentity struct {
	field string
}

func (s *sequenceIdentity) Next(docs []schema.Document) (any, error) {
	var highest int64
	for _, doc := range docs {
		if id, ok := schema.AsInt64(doc[s.field]); ok && id > highest {
			highest = id
		}
	}
	if highest == math.MaxInt64 {
		return nil, fmt.Errorf("%w: identity sequence of '%s' is exhausted", ErrConflict, s.field)
	}
	return highest + 1, nil
}

func (s *sequenceIdentity) Parse(raw string) (any, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: '%s' is not a positive integer", ErrInvalidID, raw)
	}
	return id, nil
}

// uuidIdentity generates random (version 4) UUID strings. Stored ids are
// treated as opaque, so Parse accepts any non-empty string.
type uuidIdentity struct{}

func (u *uuidIdentity) Next(docs []schema.Document) (any, error) {
	return uuid.NewString(), nil
}

func (u *uuidIdentity) Parse(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrInvalidID)
	}
	return raw, nil
}
