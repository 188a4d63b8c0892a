package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Ledger is the processed-event dedup ledger. TryClaim is the only ordering
// primitive in the engine: the backing store must enforce a uniqueness
// constraint on the event id so that exactly one concurrent claimant wins.
type Ledger interface {
	// TryClaim inserts a ledger row for the event id. It returns true when
	// this caller created the row and false when the id was already claimed.
	// A uniqueness violation is a normal outcome, never an error.
	TryClaim(ctx context.Context, eventID string, eventType string) (bool, error)
	// MarkSuccessful flips the row to successful and clears any stored error
	// message. Missing rows are a no-op.
	MarkSuccessful(ctx context.Context, eventID string) error
	// MarkFailed flips the row to failed and stores the error message.
	// Missing rows are a no-op.
	MarkFailed(ctx context.Context, eventID string, errorMessage string) error
	// Get returns the ledger row for an event id, or ErrEventNotFound.
	Get(ctx context.Context, eventID string) (ProcessedEvent, error)
}

// RetryStore persists redelivery work. Implementations must keep at most one
// row per event id; Schedule reuses an existing row regardless of its status.
type RetryStore interface {
	Schedule(ctx context.Context, record RetryRecord) (RetryRecord, error)
	GetByEventID(ctx context.Context, eventID string) (RetryRecord, error)
	// ListDue returns pending records whose next_retry_at is at or before now
	// and whose attempt number is within the per-record budget.
	ListDue(ctx context.Context, now time.Time, limit int) ([]RetryRecord, error)
	ListByStatus(ctx context.Context, status RetryStatus, limit int) ([]RetryRecord, error)
	MarkStatus(ctx context.Context, eventID string, status RetryStatus, errorMessage string) error
}

// Verifier authenticates a raw delivery and extracts the event envelope.
// Verification failure is fatal for the delivery; the engine never consults
// the ledger for requests that fail verification.
type Verifier interface {
	Verify(ctx context.Context, payload []byte, signature string) (Event, error)
}

// Processor executes the downstream business effect of a verified event. The
// engine treats it as opaque: any returned error is classified and either
// scheduled for redelivery or recorded as permanent.
type Processor interface {
	Process(ctx context.Context, event Event) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, event Event) error

func (f ProcessorFunc) Process(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// RetryClassifier decides whether a processing failure is worth another
// attempt. Implementations must be total: any non-nil error yields a verdict
// and unknown errors classify as permanent.
type RetryClassifier interface {
	IsRetryable(err error) bool
}

// RetryClassifierFunc adapts a function to the RetryClassifier interface.
type RetryClassifierFunc func(err error) bool

func (f RetryClassifierFunc) IsRetryable(err error) bool {
	return f(err)
}

// BackoffPolicy computes the delay before a given attempt number runs again.
type BackoffPolicy interface {
	NextDelay(attempt int) time.Duration
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type StoreProvider interface {
	Ledger() Ledger
	RetryStore() RetryStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// RetryOutcome describes how one redelivery attempt resolved.
type RetryOutcome string

const (
	RetryOutcomeSucceeded   RetryOutcome = "succeeded"
	RetryOutcomeRescheduled RetryOutcome = "rescheduled"
	RetryOutcomeAbandoned   RetryOutcome = "abandoned"
)

// SweepStats summarizes one sweep over the due retry backlog.
type SweepStats struct {
	Fetched     int
	Succeeded   int
	Rescheduled int
	Abandoned   int
	Failed      int
}

// RetrySweepService is the surface the background sweeper drives.
type RetrySweepService interface {
	SweepDueRetries(ctx context.Context) (SweepStats, error)
}

// WebhookService is the full engine surface: the synchronous ingestion path,
// the sweep and abandon mutations, and the inspection reads.
type WebhookService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	SweepDueRetries(ctx context.Context) (SweepStats, error)
	AbandonRetry(ctx context.Context, eventID string, reason string) error
	GetProcessedEvent(ctx context.Context, eventID string) (ProcessedEvent, error)
	GetRetry(ctx context.Context, eventID string) (RetryRecord, error)
	ListPendingRetries(ctx context.Context, limit int) ([]RetryRecord, error)
}
