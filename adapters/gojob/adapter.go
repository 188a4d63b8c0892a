// Package gojob bridges the engine's queue contracts onto go-job so
// deployments can run webhook ingestion and retry sweeps on a shared job
// runtime without the engine importing it directly.
package gojob

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-webhook-engine/core"
	"github.com/google/uuid"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

// Job identifiers understood by the engine's queue workers.
const (
	JobIDIngest = "webhooks.ingest"
	JobIDSweep  = "webhooks.sweep"
)

// Parameter keys shared by the ingest and sweep message codecs.
const (
	paramEventID   = "event_id"
	paramPayload   = "payload"
	paramSignature = "signature"
	paramAttempt   = "attempt"
	paramLimit     = "limit"
)

// IngestJob is one webhook delivery carried through a go-job queue. The
// payload travels base64-encoded inside message parameters so it survives
// JSON transports unchanged.
type IngestJob struct {
	EventID   string
	Payload   []byte
	Signature string
	Attempt   int
}

// NewIngestMessage packs a webhook delivery into a queue message. The event
// id doubles as the idempotency key so duplicate provider deliveries collapse
// in the queue before they ever reach the ledger; deliveries without a known
// id get a random key instead.
func NewIngestMessage(j IngestJob) *core.JobExecutionMessage {
	eventID := strings.TrimSpace(j.EventID)
	key := eventID
	if key == "" {
		key = uuid.NewString()
	}
	attempt := j.Attempt
	if attempt < 1 {
		attempt = 1
	}
	return &core.JobExecutionMessage{
		JobID:      JobIDIngest,
		ScriptPath: JobIDIngest,
		Parameters: map[string]any{
			paramEventID:   eventID,
			paramPayload:   base64.StdEncoding.EncodeToString(j.Payload),
			paramSignature: j.Signature,
			paramAttempt:   attempt,
		},
		IdempotencyKey: key,
		DedupPolicy:    "drop",
	}
}

// ParseIngestJob unpacks a queue message produced by NewIngestMessage.
func ParseIngestJob(msg *core.JobExecutionMessage) (IngestJob, error) {
	if msg == nil {
		return IngestJob{}, fmt.Errorf("gojob: execution message is required")
	}
	if msg.JobID != JobIDIngest {
		return IngestJob{}, fmt.Errorf("gojob: message %q is not an ingest job", msg.JobID)
	}
	payload, err := payloadParam(msg.Parameters)
	if err != nil {
		return IngestJob{}, err
	}
	if len(payload) == 0 {
		return IngestJob{}, fmt.Errorf("gojob: ingest message carries no payload")
	}
	return IngestJob{
		EventID:   stringParam(msg.Parameters, paramEventID),
		Payload:   payload,
		Signature: stringParam(msg.Parameters, paramSignature),
		Attempt:   intParam(msg.Parameters, paramAttempt, 1),
	}, nil
}

// SweepJob triggers one pass over the due retry backlog. A zero Limit defers
// to the engine's configured batch size.
type SweepJob struct {
	Limit int
}

// NewSweepMessage packs a sweep trigger. The idempotency key is the job id
// itself so overlapping triggers collapse to a single queued sweep.
func NewSweepMessage(j SweepJob) *core.JobExecutionMessage {
	params := map[string]any{}
	if j.Limit > 0 {
		params[paramLimit] = j.Limit
	}
	return &core.JobExecutionMessage{
		JobID:          JobIDSweep,
		ScriptPath:     JobIDSweep,
		Parameters:     params,
		IdempotencyKey: JobIDSweep,
		DedupPolicy:    "drop",
	}
}

// ParseSweepJob unpacks a queue message produced by NewSweepMessage.
func ParseSweepJob(msg *core.JobExecutionMessage) (SweepJob, error) {
	if msg == nil {
		return SweepJob{}, fmt.Errorf("gojob: execution message is required")
	}
	if msg.JobID != JobIDSweep {
		return SweepJob{}, fmt.Errorf("gojob: message %q is not a sweep job", msg.JobID)
	}
	limit := intParam(msg.Parameters, paramLimit, 0)
	if limit < 0 {
		limit = 0
	}
	return SweepJob{Limit: limit}, nil
}

func stringParam(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return strings.TrimSpace(s)
}

// intParam tolerates the numeric types a JSON round trip can produce.
func intParam(params map[string]any, key string, fallback int) int {
	value, ok := params[key]
	if !ok {
		return fallback
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fallback
		}
		return parsed
	default:
		return fallback
	}
}

func payloadParam(params map[string]any) ([]byte, error) {
	value, ok := params[paramPayload]
	if !ok {
		return nil, nil
	}
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("gojob: decode ingest payload: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("gojob: unsupported payload parameter type %T", value)
	}
}

// RetryPolicy bounds queue-level redelivery so a poisoned webhook cannot loop
// forever ahead of the ledger's own retry budget.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt clamps nack options for one redelivery attempt.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps an engine message onto the go-job wire type.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message back into the engine contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// ToNackOptions maps engine nack options to go-job.
func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

// FromNackOptions maps go-job nack options to the engine contract.
func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	return core.JobNackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

// NackForAttempt nacks with the retry policy applied for the given attempt
// number.
func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// WorkerHookAdapter surfaces go-job worker lifecycle events to an engine
// hook, typically for metrics and logging around ingest and sweep jobs.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer   = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery   = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer   = (*DequeuerAdapter)(nil)
	_ worker.Hook        = (*WorkerHookAdapter)(nil)
	_ core.JobWorkerHook = (*noopCoreHook)(nil)
)

// noopCoreHook exists so the compile-time check above has a local
// implementation to verify against.
type noopCoreHook struct{}

func (noopCoreHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (noopCoreHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (noopCoreHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (noopCoreHook) OnRetry(context.Context, core.JobWorkerEvent)   {}
