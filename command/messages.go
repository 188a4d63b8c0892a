package command

import (
	"strings"
)

const (
	TypeIngestWebhook   = "webhooks.command.ingest"
	TypeSweepDueRetries = "webhooks.command.retries.sweep"
	TypeAbandonRetry    = "webhooks.command.retries.abandon"
)

// IngestWebhookMessage carries one raw delivery through the command bus. The
// payload stays opaque here; the verifier decodes it inside the service.
type IngestWebhookMessage struct {
	Payload   []byte
	Signature string
}

func (IngestWebhookMessage) Type() string { return TypeIngestWebhook }

func (m IngestWebhookMessage) Validate() error {
	if len(m.Payload) == 0 {
		return commandValidationError("payload", "webhook payload is required")
	}
	return nil
}

type SweepDueRetriesMessage struct{}

func (SweepDueRetriesMessage) Type() string { return TypeSweepDueRetries }

func (SweepDueRetriesMessage) Validate() error { return nil }

type AbandonRetryMessage struct {
	EventID string
	Reason  string
}

func (AbandonRetryMessage) Type() string { return TypeAbandonRetry }

func (m AbandonRetryMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return commandValidationError("event_id", "event id is required")
	}
	return nil
}
