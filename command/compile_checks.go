package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[IngestWebhookMessage]   = (*IngestWebhookCommand)(nil)
	_ gocmd.Commander[SweepDueRetriesMessage] = (*SweepDueRetriesCommand)(nil)
	_ gocmd.Commander[AbandonRetryMessage]    = (*AbandonRetryCommand)(nil)
)
