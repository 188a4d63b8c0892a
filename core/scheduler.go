package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type RetrySchedulerConfig struct {
	BatchSize  int
	MaxRetries int
}

func DefaultRetrySchedulerConfig() RetrySchedulerConfig {
	return RetrySchedulerConfig{
		BatchSize:  50,
		MaxRetries: 5,
	}
}

// ScheduleRetryInput captures one failed delivery attempt. AttemptNumber is
// the attempt that should run next; zero defaults to the first attempt.
type ScheduleRetryInput struct {
	EventID       string
	EventType     string
	Payload       []byte
	Signature     string
	ErrorMessage  string
	AttemptNumber int
}

// RetryScheduler owns the retry queue: it is the only writer of retry rows
// and the only component that computes redelivery times.
type RetryScheduler struct {
	store  RetryStore
	policy BackoffPolicy
	config RetrySchedulerConfig
	now    func() time.Time
}

func NewRetryScheduler(
	store RetryStore,
	policy BackoffPolicy,
	config RetrySchedulerConfig,
) (*RetryScheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("core: retry store is required")
	}
	if policy == nil {
		policy = ExponentialBackoff{}
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultRetrySchedulerConfig().BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultRetrySchedulerConfig().MaxRetries
	}
	return &RetryScheduler{
		store:  store,
		policy: policy,
		config: config,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// ScheduleRetry upserts the retry row for the input's event id. A new event
// gets a fresh pending row; a known event has its single row mutated in
// place, whatever its current status. The next delivery time is the current
// time plus the backoff delay for the attempt number.
func (s *RetryScheduler) ScheduleRetry(ctx context.Context, in ScheduleRetryInput) (RetryRecord, error) {
	if s == nil || s.store == nil {
		return RetryRecord{}, fmt.Errorf("core: retry scheduler is not configured")
	}
	eventID := strings.TrimSpace(in.EventID)
	if eventID == "" {
		return RetryRecord{}, ErrEventIDRequired
	}
	attempt := in.AttemptNumber
	if attempt < 1 {
		attempt = 1
	}

	record := RetryRecord{
		EventID:          eventID,
		EventType:        strings.TrimSpace(in.EventType),
		Payload:          in.Payload,
		Signature:        strings.TrimSpace(in.Signature),
		AttemptNumber:    attempt,
		MaxRetries:       s.config.MaxRetries,
		Status:           RetryStatusPending,
		NextRetryAt:      s.timestamp().Add(s.policy.NextDelay(attempt)),
		LastErrorMessage: strings.TrimSpace(in.ErrorMessage),
	}
	return s.store.Schedule(ctx, record)
}

// GetPendingRetries returns the due slice of the pending backlog: status is
// pending, the redelivery time has passed, and the attempt budget is not
// exceeded. The result is capped at the configured batch size.
func (s *RetryScheduler) GetPendingRetries(ctx context.Context) ([]RetryRecord, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("core: retry scheduler is not configured")
	}
	return s.store.ListDue(ctx, s.timestamp(), s.config.BatchSize)
}

func (s *RetryScheduler) GetRetry(ctx context.Context, eventID string) (RetryRecord, error) {
	if s == nil || s.store == nil {
		return RetryRecord{}, fmt.Errorf("core: retry scheduler is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return RetryRecord{}, ErrEventIDRequired
	}
	return s.store.GetByEventID(ctx, eventID)
}

// ListPending returns pending rows regardless of due time, for inspection.
func (s *RetryScheduler) ListPending(ctx context.Context, limit int) ([]RetryRecord, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("core: retry scheduler is not configured")
	}
	if limit <= 0 || limit > s.config.BatchSize {
		limit = s.config.BatchSize
	}
	return s.store.ListByStatus(ctx, RetryStatusPending, limit)
}

// MarkSucceeded resolves the retry row after a redelivery went through.
func (s *RetryScheduler) MarkSucceeded(ctx context.Context, eventID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("core: retry scheduler is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return ErrEventIDRequired
	}
	return s.store.MarkStatus(ctx, eventID, RetryStatusSucceeded, "")
}

// Abandon marks the retry row terminally failed, either because the error
// was permanent or because the attempt budget ran out.
func (s *RetryScheduler) Abandon(ctx context.Context, eventID string, reason string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("core: retry scheduler is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return ErrEventIDRequired
	}
	return s.store.MarkStatus(ctx, eventID, RetryStatusFailed, strings.TrimSpace(reason))
}

// MaxRetries is the attempt budget stamped on new retry rows.
func (s *RetryScheduler) MaxRetries() int {
	if s == nil {
		return 0
	}
	return s.config.MaxRetries
}

func (s *RetryScheduler) timestamp() time.Time {
	if s != nil && s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
