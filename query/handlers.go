package query

import (
	"context"

	"github.com/goliatone/go-webhook-engine/core"
)

// ProcessedEventReader and RetryReader are the read-side slices of the
// engine. *core.Service satisfies both.
type ProcessedEventReader interface {
	GetProcessedEvent(ctx context.Context, eventID string) (core.ProcessedEvent, error)
}

type RetryReader interface {
	GetRetry(ctx context.Context, eventID string) (core.RetryRecord, error)
	ListPendingRetries(ctx context.Context, limit int) ([]core.RetryRecord, error)
}

type GetProcessedEventQuery struct {
	reader ProcessedEventReader
}

func NewGetProcessedEventQuery(reader ProcessedEventReader) *GetProcessedEventQuery {
	return &GetProcessedEventQuery{reader: reader}
}

func (q *GetProcessedEventQuery) Query(ctx context.Context, msg GetProcessedEventMessage) (core.ProcessedEvent, error) {
	if q == nil || q.reader == nil {
		return core.ProcessedEvent{}, queryDependencyError("query: processed event reader is required")
	}
	return q.reader.GetProcessedEvent(ctx, msg.EventID)
}

type GetRetryQuery struct {
	reader RetryReader
}

func NewGetRetryQuery(reader RetryReader) *GetRetryQuery {
	return &GetRetryQuery{reader: reader}
}

func (q *GetRetryQuery) Query(ctx context.Context, msg GetRetryMessage) (core.RetryRecord, error) {
	if q == nil || q.reader == nil {
		return core.RetryRecord{}, queryDependencyError("query: retry reader is required")
	}
	return q.reader.GetRetry(ctx, msg.EventID)
}

type ListPendingRetriesQuery struct {
	reader RetryReader
}

func NewListPendingRetriesQuery(reader RetryReader) *ListPendingRetriesQuery {
	return &ListPendingRetriesQuery{reader: reader}
}

func (q *ListPendingRetriesQuery) Query(ctx context.Context, msg ListPendingRetriesMessage) ([]core.RetryRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: retry reader is required")
	}
	return q.reader.ListPendingRetries(ctx, msg.Limit)
}
