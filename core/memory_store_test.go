package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryLedger_TryClaimAdmitsSingleWinner(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	claimed, err := ledger.TryClaim(ctx, "evt_1", "invoice.paid")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !claimed {
		t.Fatalf("expected first claim to win")
	}

	claimed, err = ledger.TryClaim(ctx, "evt_1", "invoice.paid")
	if err != nil {
		t.Fatalf("duplicate claim must not error: %v", err)
	}
	if claimed {
		t.Fatalf("expected duplicate claim to lose")
	}

	entry, err := ledger.Get(ctx, "evt_1")
	if err != nil {
		t.Fatalf("get claimed event: %v", err)
	}
	if entry.EventID != "evt_1" || entry.EventType != "invoice.paid" {
		t.Fatalf("unexpected ledger entry: %#v", entry)
	}
	if entry.ProcessedAt.IsZero() {
		t.Fatalf("expected claim timestamp to be set")
	}
}

func TestMemoryLedger_ConcurrentClaimsYieldOneWinner(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := ledger.TryClaim(ctx, "evt_contested", "invoice.paid")
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", winners)
	}
}

func TestMemoryLedger_TryClaimRequiresEventID(t *testing.T) {
	ledger := NewMemoryLedger()
	for _, eventID := range []string{"", "   "} {
		if _, err := ledger.TryClaim(context.Background(), eventID, "invoice.paid"); !errors.Is(err, ErrEventIDRequired) {
			t.Fatalf("event id %q: expected ErrEventIDRequired, got %v", eventID, err)
		}
	}
}

func TestMemoryLedger_MarksAreNoOpsForUnknownEvents(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	if err := ledger.MarkSuccessful(ctx, "evt_unknown"); err != nil {
		t.Fatalf("mark successful on missing row must be a no-op: %v", err)
	}
	if err := ledger.MarkFailed(ctx, "evt_unknown", "boom"); err != nil {
		t.Fatalf("mark failed on missing row must be a no-op: %v", err)
	}
	if _, err := ledger.Get(ctx, "evt_unknown"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestMemoryLedger_MarkTransitions(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	if _, err := ledger.TryClaim(ctx, "evt_1", "invoice.paid"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := ledger.MarkFailed(ctx, "evt_1", " downstream timeout "); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	entry, err := ledger.Get(ctx, "evt_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Successful {
		t.Fatalf("expected failed entry")
	}
	if entry.ErrorMessage != "downstream timeout" {
		t.Fatalf("expected trimmed error message, got %q", entry.ErrorMessage)
	}

	if err := ledger.MarkSuccessful(ctx, "evt_1"); err != nil {
		t.Fatalf("mark successful: %v", err)
	}
	entry, err = ledger.Get(ctx, "evt_1")
	if err != nil {
		t.Fatalf("get after success: %v", err)
	}
	if !entry.Successful || entry.ErrorMessage != "" {
		t.Fatalf("expected cleared failure state, got %#v", entry)
	}
}

func TestMemoryRetryStore_ScheduleAssignsIdentity(t *testing.T) {
	store := NewMemoryRetryStore()

	record, err := store.Schedule(context.Background(), RetryRecord{
		EventID:       "evt_1",
		EventType:     "invoice.paid",
		Payload:       []byte(`{"id":"evt_1"}`),
		AttemptNumber: 1,
		MaxRetries:    5,
		NextRetryAt:   time.Now().UTC().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if record.ID == "" {
		t.Fatalf("expected generated record id")
	}
	if record.Status != RetryStatusPending {
		t.Fatalf("expected pending default status, got %q", record.Status)
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %#v", record)
	}
}

func TestMemoryRetryStore_ScheduleKeepsSingleRowPerEvent(t *testing.T) {
	store := NewMemoryRetryStore()
	ctx := context.Background()

	first, err := store.Schedule(ctx, RetryRecord{
		EventID:       "evt_1",
		AttemptNumber: 1,
		NextRetryAt:   time.Now().UTC().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("first schedule: %v", err)
	}

	second, err := store.Schedule(ctx, RetryRecord{
		EventID:       "evt_1",
		AttemptNumber: 2,
		NextRetryAt:   time.Now().UTC().Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("second schedule: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected upsert to keep row identity, got %q then %q", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected created_at to survive the upsert")
	}
	if second.AttemptNumber != 2 {
		t.Fatalf("expected attempt 2, got %d", second.AttemptNumber)
	}

	rows, err := store.ListByStatus(ctx, RetryStatusPending, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected a single row for the event, got %d", len(rows))
	}
}

func TestMemoryRetryStore_ScheduleReactivatesTerminalRow(t *testing.T) {
	store := NewMemoryRetryStore()
	ctx := context.Background()

	first, err := store.Schedule(ctx, RetryRecord{EventID: "evt_1", AttemptNumber: 1, NextRetryAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := store.MarkStatus(ctx, "evt_1", RetryStatusFailed, "gave up"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	revived, err := store.Schedule(ctx, RetryRecord{EventID: "evt_1", AttemptNumber: 1, NextRetryAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if revived.ID != first.ID {
		t.Fatalf("expected the failed row to be reused")
	}
	if revived.Status != RetryStatusPending {
		t.Fatalf("expected reactivated row to be pending, got %q", revived.Status)
	}
}

func TestMemoryRetryStore_ListDueFiltersAndSorts(t *testing.T) {
	store := NewMemoryRetryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seed := []RetryRecord{
		{EventID: "evt_late", AttemptNumber: 1, MaxRetries: 5, NextRetryAt: now.Add(-time.Minute)},
		{EventID: "evt_early", AttemptNumber: 2, MaxRetries: 5, NextRetryAt: now.Add(-10 * time.Minute)},
		{EventID: "evt_future", AttemptNumber: 1, MaxRetries: 5, NextRetryAt: now.Add(time.Hour)},
		{EventID: "evt_exhausted", AttemptNumber: 6, MaxRetries: 5, NextRetryAt: now.Add(-time.Hour)},
		{EventID: "evt_done", AttemptNumber: 1, MaxRetries: 5, NextRetryAt: now.Add(-time.Hour)},
	}
	for _, record := range seed {
		if _, err := store.Schedule(ctx, record); err != nil {
			t.Fatalf("seed %s: %v", record.EventID, err)
		}
	}
	if err := store.MarkStatus(ctx, "evt_done", RetryStatusSucceeded, ""); err != nil {
		t.Fatalf("resolve evt_done: %v", err)
	}

	due, err := store.ListDue(ctx, now, 0)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected two due rows, got %d", len(due))
	}
	if due[0].EventID != "evt_early" || due[1].EventID != "evt_late" {
		t.Fatalf("expected oldest redelivery first, got %q then %q", due[0].EventID, due[1].EventID)
	}

	capped, err := store.ListDue(ctx, now, 1)
	if err != nil {
		t.Fatalf("list due with limit: %v", err)
	}
	if len(capped) != 1 || capped[0].EventID != "evt_early" {
		t.Fatalf("expected limit to trim the tail, got %#v", capped)
	}
}

func TestMemoryRetryStore_MarkStatusValidatesAndNoOps(t *testing.T) {
	store := NewMemoryRetryStore()
	ctx := context.Background()

	if err := store.MarkStatus(ctx, "evt_1", RetryStatus("bogus"), ""); !errors.Is(err, ErrInvalidRetryStatus) {
		t.Fatalf("expected ErrInvalidRetryStatus, got %v", err)
	}
	if err := store.MarkStatus(ctx, "evt_missing", RetryStatusFailed, "x"); err != nil {
		t.Fatalf("mark on missing row must be a no-op: %v", err)
	}

	if _, err := store.Schedule(ctx, RetryRecord{EventID: "evt_1", AttemptNumber: 1, NextRetryAt: time.Now().UTC()}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := store.MarkStatus(ctx, "evt_1", RetryStatusFailed, " provider rejected "); err != nil {
		t.Fatalf("mark status: %v", err)
	}
	record, err := store.GetByEventID(ctx, "evt_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != RetryStatusFailed || record.LastErrorMessage != "provider rejected" {
		t.Fatalf("unexpected record after mark: %#v", record)
	}
}

func TestMemoryRetryStore_GetByEventIDMissing(t *testing.T) {
	store := NewMemoryRetryStore()
	if _, err := store.GetByEventID(context.Background(), "evt_missing"); !errors.Is(err, ErrRetryNotFound) {
		t.Fatalf("expected ErrRetryNotFound, got %v", err)
	}
}
