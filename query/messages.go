package query

import (
	"strings"
)

const (
	TypeGetProcessedEvent  = "webhooks.query.processed_event.get"
	TypeGetRetry           = "webhooks.query.retry.get"
	TypeListPendingRetries = "webhooks.query.retries.list_pending"
)

type GetProcessedEventMessage struct {
	EventID string
}

func (GetProcessedEventMessage) Type() string { return TypeGetProcessedEvent }

func (m GetProcessedEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return queryValidationError("event_id", "event id is required")
	}
	return nil
}

type GetRetryMessage struct {
	EventID string
}

func (GetRetryMessage) Type() string { return TypeGetRetry }

func (m GetRetryMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return queryValidationError("event_id", "event id is required")
	}
	return nil
}

// ListPendingRetriesMessage with a zero Limit defers to the engine's
// configured batch size.
type ListPendingRetriesMessage struct {
	Limit int
}

func (ListPendingRetriesMessage) Type() string { return TypeListPendingRetries }

func (m ListPendingRetriesMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
