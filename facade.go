package webhookengine

import (
	"fmt"

	enginecommand "github.com/goliatone/go-webhook-engine/command"
	"github.com/goliatone/go-webhook-engine/core"
	enginequery "github.com/goliatone/go-webhook-engine/query"
)

// CommandQueryService is the full surface the facade wires handlers around.
// *core.Service satisfies it.
type CommandQueryService interface {
	enginecommand.MutatingService
	enginequery.ProcessedEventReader
	enginequery.RetryReader
}

// Commands bundles the engine's mutating handlers for registration with a
// dispatcher or queue worker.
type Commands struct {
	IngestWebhook   *enginecommand.IngestWebhookCommand
	SweepDueRetries *enginecommand.SweepDueRetriesCommand
	AbandonRetry    *enginecommand.AbandonRetryCommand
}

// Queries bundles the engine's read handlers.
type Queries struct {
	GetProcessedEvent  *enginequery.GetProcessedEventQuery
	GetRetry           *enginequery.GetRetryQuery
	ListPendingRetries *enginequery.ListPendingRetriesQuery
}

// Facade exposes one pre-wired handler set over a single service instance so
// hosts compose the engine without touching handler constructors.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("webhookengine: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		IngestWebhook:   enginecommand.NewIngestWebhookCommand(service),
		SweepDueRetries: enginecommand.NewSweepDueRetriesCommand(service),
		AbandonRetry:    enginecommand.NewAbandonRetryCommand(service),
	}
	facade.queries = Queries{
		GetProcessedEvent:  enginequery.NewGetProcessedEventQuery(service),
		GetRetry:           enginequery.NewGetRetryQuery(service),
		ListPendingRetries: enginequery.NewListPendingRetriesQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*core.Service)(nil)
