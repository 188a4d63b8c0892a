package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-engine/core"
)

var (
	_ gocmd.Querier[GetProcessedEventMessage, core.ProcessedEvent] = (*GetProcessedEventQuery)(nil)
	_ gocmd.Querier[GetRetryMessage, core.RetryRecord]             = (*GetRetryQuery)(nil)
	_ gocmd.Querier[ListPendingRetriesMessage, []core.RetryRecord] = (*ListPendingRetriesQuery)(nil)
)
