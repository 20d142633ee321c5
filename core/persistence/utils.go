package persistence

import (
	"time"

	"github.com/asaidimu/go-shelf/core/schema"
)

func createEvent(
	eventType PersistenceEventType,
	operation string,
	collectionName string,
	input any,
	output any,
	query any,
	err *string,
	issues []schema.Issue,
	startTime time.Time,
) PersistenceEvent {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	var collectionNamePtr *string
	if collectionName != "" {
		collectionNamePtr = &collectionName
	}

	return PersistenceEvent{
		Type:       eventType,
		Timestamp:  time.Now().UnixMilli(),
		Operation:  operation,
		Collection: collectionNamePtr,
		Input:      input,
		Output:     output,
		Error:      err,
		Issues:     issues,
		Query:      query,
		Duration:   duration,
	}
}

func errorString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
