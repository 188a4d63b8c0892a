package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-webhook-engine/core"
)

func TestGetProcessedEventQuery_QueryDelegates(t *testing.T) {
	expected := core.ProcessedEvent{
		EventID:     "evt_1",
		EventType:   "order.created",
		ProcessedAt: time.Now().UTC(),
		Successful:  true,
	}
	called := false
	reader := stubProcessedEventReader{
		getFn: func(_ context.Context, eventID string) (core.ProcessedEvent, error) {
			called = true
			if eventID != "evt_1" {
				t.Fatalf("unexpected event id %q", eventID)
			}
			return expected, nil
		},
	}

	qry := NewGetProcessedEventQuery(reader)
	result, err := qry.Query(context.Background(), GetProcessedEventMessage{EventID: "evt_1"})
	if err != nil {
		t.Fatalf("query processed event: %v", err)
	}
	if !called {
		t.Fatalf("expected processed event reader invocation")
	}
	if result.EventID != expected.EventID || !result.Successful {
		t.Fatalf("unexpected processed event result: %#v", result)
	}
}

func TestRetryQueries_Delegate(t *testing.T) {
	record := core.RetryRecord{
		ID:            "ret_1",
		EventID:       "evt_1",
		EventType:     "order.created",
		AttemptNumber: 2,
		MaxRetries:    5,
		Status:        core.RetryStatusPending,
		NextRetryAt:   time.Now().UTC().Add(time.Minute),
	}
	calledGet := false
	calledList := false
	reader := stubRetryReader{
		getFn: func(_ context.Context, eventID string) (core.RetryRecord, error) {
			calledGet = true
			if eventID != "evt_1" {
				t.Fatalf("unexpected event id %q", eventID)
			}
			return record, nil
		},
		listFn: func(_ context.Context, limit int) ([]core.RetryRecord, error) {
			calledList = true
			if limit != 25 {
				t.Fatalf("unexpected limit %d", limit)
			}
			return []core.RetryRecord{record}, nil
		},
	}

	getResult, err := NewGetRetryQuery(reader).Query(context.Background(), GetRetryMessage{EventID: "evt_1"})
	if err != nil {
		t.Fatalf("query retry: %v", err)
	}
	if !calledGet || getResult.ID != record.ID {
		t.Fatalf("expected get retry delegation, got %#v", getResult)
	}

	listResult, err := NewListPendingRetriesQuery(reader).Query(context.Background(), ListPendingRetriesMessage{Limit: 25})
	if err != nil {
		t.Fatalf("list pending retries query: %v", err)
	}
	if !calledList || len(listResult) != 1 {
		t.Fatalf("expected list retries delegation, got %d records", len(listResult))
	}
}

func TestQueries_PropagateReaderErrors(t *testing.T) {
	wantErr := fmt.Errorf("reader blew up")
	reader := stubRetryReader{
		getFn: func(_ context.Context, _ string) (core.RetryRecord, error) {
			return core.RetryRecord{}, wantErr
		},
	}

	_, err := NewGetRetryQuery(reader).Query(context.Background(), GetRetryMessage{EventID: "evt_1"})
	if err != wantErr {
		t.Fatalf("expected reader error passthrough, got %v", err)
	}
}

func TestQueryMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "get processed event valid", msg: GetProcessedEventMessage{EventID: "evt_1"}, wantErr: false},
		{name: "get processed event missing id", msg: GetProcessedEventMessage{}, wantErr: true},
		{name: "get retry valid", msg: GetRetryMessage{EventID: "evt_1"}, wantErr: false},
		{name: "get retry blank id", msg: GetRetryMessage{EventID: "  "}, wantErr: true},
		{name: "list pending zero limit", msg: ListPendingRetriesMessage{}, wantErr: false},
		{name: "list pending positive limit", msg: ListPendingRetriesMessage{Limit: 10}, wantErr: false},
		{name: "list pending negative limit", msg: ListPendingRetriesMessage{Limit: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubProcessedEventReader struct {
	getFn func(ctx context.Context, eventID string) (core.ProcessedEvent, error)
}

func (s stubProcessedEventReader) GetProcessedEvent(ctx context.Context, eventID string) (core.ProcessedEvent, error) {
	if s.getFn == nil {
		return core.ProcessedEvent{}, fmt.Errorf("get processed event not configured")
	}
	return s.getFn(ctx, eventID)
}

type stubRetryReader struct {
	getFn  func(ctx context.Context, eventID string) (core.RetryRecord, error)
	listFn func(ctx context.Context, limit int) ([]core.RetryRecord, error)
}

func (s stubRetryReader) GetRetry(ctx context.Context, eventID string) (core.RetryRecord, error) {
	if s.getFn == nil {
		return core.RetryRecord{}, fmt.Errorf("get retry not configured")
	}
	return s.getFn(ctx, eventID)
}

func (s stubRetryReader) ListPendingRetries(ctx context.Context, limit int) ([]core.RetryRecord, error) {
	if s.listFn == nil {
		return nil, fmt.Errorf("list pending retries not configured")
	}
	return s.listFn(ctx, limit)
}

var (
	_ ProcessedEventReader = stubProcessedEventReader{}
	_ RetryReader          = stubRetryReader{}
)
