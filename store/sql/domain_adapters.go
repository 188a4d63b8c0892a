package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-webhook-engine/core"
	"github.com/google/uuid"
)

func newProcessedEventRecord(eventID string, eventType string, now time.Time) *processedEventRecord {
	return &processedEventRecord{
		ID:          uuid.NewString(),
		EventID:     strings.TrimSpace(eventID),
		EventType:   strings.TrimSpace(eventType),
		ProcessedAt: now,
		Successful:  true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *processedEventRecord) toDomain() core.ProcessedEvent {
	if r == nil {
		return core.ProcessedEvent{}
	}
	return core.ProcessedEvent{
		EventID:      r.EventID,
		EventType:    r.EventType,
		ProcessedAt:  r.ProcessedAt,
		Successful:   r.Successful,
		ErrorMessage: r.ErrorMessage,
	}
}

func newWebhookRetryRecord(record core.RetryRecord, now time.Time) *webhookRetryRecord {
	out := &webhookRetryRecord{
		ID:               strings.TrimSpace(record.ID),
		EventID:          record.EventID,
		EventType:        record.EventType,
		Payload:          append([]byte(nil), record.Payload...),
		Signature:        record.Signature,
		AttemptNumber:    record.AttemptNumber,
		MaxRetries:       record.MaxRetries,
		Status:           string(record.Status),
		NextRetryAt:      record.NextRetryAt,
		LastErrorMessage: record.LastErrorMessage,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        now,
	}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	return out
}

func (r *webhookRetryRecord) toDomain() core.RetryRecord {
	if r == nil {
		return core.RetryRecord{}
	}
	return core.RetryRecord{
		ID:               r.ID,
		EventID:          r.EventID,
		EventType:        r.EventType,
		Payload:          append([]byte(nil), r.Payload...),
		Signature:        r.Signature,
		AttemptNumber:    r.AttemptNumber,
		MaxRetries:       r.MaxRetries,
		Status:           core.RetryStatus(r.Status),
		NextRetryAt:      r.NextRetryAt,
		LastErrorMessage: r.LastErrorMessage,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
