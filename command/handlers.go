package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-engine/core"
)

// MutatingService is the slice of the engine the write-side commands need.
// *core.Service satisfies it.
type MutatingService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	SweepDueRetries(ctx context.Context) (core.SweepStats, error)
	AbandonRetry(ctx context.Context, eventID string, reason string) error
}

type IngestWebhookCommand struct {
	service MutatingService
}

func NewIngestWebhookCommand(service MutatingService) *IngestWebhookCommand {
	return &IngestWebhookCommand{service: service}
}

func (c *IngestWebhookCommand) Execute(ctx context.Context, msg IngestWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: ingest service is required")
	}
	return c.service.HandleWebhook(ctx, msg.Payload, msg.Signature)
}

type SweepDueRetriesCommand struct {
	service MutatingService
}

func NewSweepDueRetriesCommand(service MutatingService) *SweepDueRetriesCommand {
	return &SweepDueRetriesCommand{service: service}
}

func (c *SweepDueRetriesCommand) Execute(ctx context.Context, msg SweepDueRetriesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sweep service is required")
	}
	out, err := c.service.SweepDueRetries(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AbandonRetryCommand struct {
	service MutatingService
}

func NewAbandonRetryCommand(service MutatingService) *AbandonRetryCommand {
	return &AbandonRetryCommand{service: service}
}

func (c *AbandonRetryCommand) Execute(ctx context.Context, msg AbandonRetryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: abandon service is required")
	}
	return c.service.AbandonRetry(ctx, msg.EventID, msg.Reason)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
