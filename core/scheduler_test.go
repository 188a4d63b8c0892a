package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T, store RetryStore, policy BackoffPolicy, config RetrySchedulerConfig, now time.Time) *RetryScheduler {
	t.Helper()
	scheduler, err := NewRetryScheduler(store, policy, config)
	if err != nil {
		t.Fatalf("new retry scheduler: %v", err)
	}
	scheduler.now = func() time.Time { return now }
	return scheduler
}

func TestNewRetryScheduler_RequiresStore(t *testing.T) {
	if _, err := NewRetryScheduler(nil, nil, RetrySchedulerConfig{}); err == nil {
		t.Fatalf("expected error for missing store")
	}
}

func TestNewRetryScheduler_DefaultsConfig(t *testing.T) {
	scheduler, err := NewRetryScheduler(NewMemoryRetryStore(), nil, RetrySchedulerConfig{})
	if err != nil {
		t.Fatalf("new retry scheduler: %v", err)
	}
	if scheduler.MaxRetries() != 5 {
		t.Fatalf("expected default attempt budget of 5, got %d", scheduler.MaxRetries())
	}
	if scheduler.config.BatchSize != 50 {
		t.Fatalf("expected default batch size of 50, got %d", scheduler.config.BatchSize)
	}
}

func TestRetryScheduler_ScheduleRetryStampsBackoffDelay(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := NewMemoryRetryStore()
	scheduler := newTestScheduler(t, store, fixedBackoff{delay: 10 * time.Minute}, RetrySchedulerConfig{}, now)

	record, err := scheduler.ScheduleRetry(context.Background(), ScheduleRetryInput{
		EventID:      " evt_1 ",
		EventType:    "invoice.paid",
		Payload:      []byte(`{"id":"evt_1"}`),
		Signature:    "sig_1",
		ErrorMessage: " upstream timeout ",
	})
	if err != nil {
		t.Fatalf("schedule retry: %v", err)
	}

	if record.EventID != "evt_1" {
		t.Fatalf("expected trimmed event id, got %q", record.EventID)
	}
	if record.AttemptNumber != 1 {
		t.Fatalf("expected zero attempt to default to 1, got %d", record.AttemptNumber)
	}
	if record.MaxRetries != 5 {
		t.Fatalf("expected configured budget on the row, got %d", record.MaxRetries)
	}
	if record.Status != RetryStatusPending {
		t.Fatalf("expected pending row, got %q", record.Status)
	}
	if !record.NextRetryAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("expected redelivery at now+10m, got %v", record.NextRetryAt)
	}
	if record.LastErrorMessage != "upstream timeout" {
		t.Fatalf("expected trimmed error message, got %q", record.LastErrorMessage)
	}
}

func TestRetryScheduler_ScheduleRetryRequiresEventID(t *testing.T) {
	scheduler := newTestScheduler(t, NewMemoryRetryStore(), fixedBackoff{delay: time.Minute}, RetrySchedulerConfig{}, time.Now().UTC())
	if _, err := scheduler.ScheduleRetry(context.Background(), ScheduleRetryInput{}); !errors.Is(err, ErrEventIDRequired) {
		t.Fatalf("expected ErrEventIDRequired, got %v", err)
	}
}

func TestRetryScheduler_ScheduleRetryUpsertsByEventID(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := NewMemoryRetryStore()
	scheduler := newTestScheduler(t, store, fixedBackoff{delay: time.Minute}, RetrySchedulerConfig{}, now)
	ctx := context.Background()

	first, err := scheduler.ScheduleRetry(ctx, ScheduleRetryInput{EventID: "evt_1", AttemptNumber: 1})
	if err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	second, err := scheduler.ScheduleRetry(ctx, ScheduleRetryInput{EventID: "evt_1", AttemptNumber: 2})
	if err != nil {
		t.Fatalf("second schedule: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected one row per event id")
	}
	if second.AttemptNumber != 2 {
		t.Fatalf("expected attempt 2, got %d", second.AttemptNumber)
	}

	rows, err := scheduler.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected single pending row, got %d", len(rows))
	}
}

func TestRetryScheduler_GetPendingRetriesCapsAtBatchSize(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := NewMemoryRetryStore()
	scheduler := newTestScheduler(t, store, fixedBackoff{delay: time.Minute}, RetrySchedulerConfig{}, now)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		record := RetryRecord{
			EventID:       fmt.Sprintf("evt_%02d", i),
			AttemptNumber: 1,
			MaxRetries:    5,
			NextRetryAt:   now.Add(-time.Duration(i+1) * time.Second),
		}
		if _, err := store.Schedule(ctx, record); err != nil {
			t.Fatalf("seed %s: %v", record.EventID, err)
		}
	}

	due, err := scheduler.GetPendingRetries(ctx)
	if err != nil {
		t.Fatalf("get pending retries: %v", err)
	}
	if len(due) != 50 {
		t.Fatalf("expected batch capped at 50, got %d", len(due))
	}
	if due[0].EventID != "evt_59" {
		t.Fatalf("expected oldest redelivery first, got %q", due[0].EventID)
	}
}

func TestRetryScheduler_GetPendingRetriesSkipsFutureAndExhausted(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := NewMemoryRetryStore()
	scheduler := newTestScheduler(t, store, fixedBackoff{delay: time.Minute}, RetrySchedulerConfig{}, now)
	ctx := context.Background()

	seed := []RetryRecord{
		{EventID: "evt_due", AttemptNumber: 2, MaxRetries: 5, NextRetryAt: now.Add(-time.Minute)},
		{EventID: "evt_future", AttemptNumber: 1, MaxRetries: 5, NextRetryAt: now.Add(time.Minute)},
		{EventID: "evt_exhausted", AttemptNumber: 6, MaxRetries: 5, NextRetryAt: now.Add(-time.Hour)},
	}
	for _, record := range seed {
		if _, err := store.Schedule(ctx, record); err != nil {
			t.Fatalf("seed %s: %v", record.EventID, err)
		}
	}

	due, err := scheduler.GetPendingRetries(ctx)
	if err != nil {
		t.Fatalf("get pending retries: %v", err)
	}
	if len(due) != 1 || due[0].EventID != "evt_due" {
		t.Fatalf("expected only the due row, got %#v", due)
	}
}

func TestRetryScheduler_ListPendingClampsLimitToBatchSize(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := NewMemoryRetryStore()
	scheduler := newTestScheduler(t, store, fixedBackoff{delay: time.Minute}, RetrySchedulerConfig{BatchSize: 2}, now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := scheduler.ScheduleRetry(ctx, ScheduleRetryInput{EventID: fmt.Sprintf("evt_%d", i)}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rows, err := scheduler.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("list pending default: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected default limit clamped to batch size, got %d", len(rows))
	}

	rows, err = scheduler.ListPending(ctx, 1)
	if err != nil {
		t.Fatalf("list pending limit 1: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}

	rows, err = scheduler.ListPending(ctx, 100)
	if err != nil {
		t.Fatalf("list pending oversized limit: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected oversized limit clamped to batch size, got %d", len(rows))
	}
}

func TestRetryScheduler_MarkSucceededAndAbandon(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := NewMemoryRetryStore()
	scheduler := newTestScheduler(t, store, fixedBackoff{delay: time.Minute}, RetrySchedulerConfig{}, now)
	ctx := context.Background()

	if _, err := scheduler.ScheduleRetry(ctx, ScheduleRetryInput{EventID: "evt_ok"}); err != nil {
		t.Fatalf("seed evt_ok: %v", err)
	}
	if _, err := scheduler.ScheduleRetry(ctx, ScheduleRetryInput{EventID: "evt_dead"}); err != nil {
		t.Fatalf("seed evt_dead: %v", err)
	}

	if err := scheduler.MarkSucceeded(ctx, "evt_ok"); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	record, err := scheduler.GetRetry(ctx, "evt_ok")
	if err != nil {
		t.Fatalf("get evt_ok: %v", err)
	}
	if record.Status != RetryStatusSucceeded {
		t.Fatalf("expected succeeded row, got %q", record.Status)
	}

	if err := scheduler.Abandon(ctx, "evt_dead", "retry budget exhausted"); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	record, err = scheduler.GetRetry(ctx, "evt_dead")
	if err != nil {
		t.Fatalf("get evt_dead: %v", err)
	}
	if record.Status != RetryStatusFailed {
		t.Fatalf("expected failed row, got %q", record.Status)
	}
	if record.LastErrorMessage != "retry budget exhausted" {
		t.Fatalf("expected abandon reason on the row, got %q", record.LastErrorMessage)
	}
}
