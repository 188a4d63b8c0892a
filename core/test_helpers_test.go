package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

// fixedBackoff removes jitter and doubling from scheduling tests.
type fixedBackoff struct {
	delay time.Duration
}

func (b fixedBackoff) NextDelay(int) time.Duration {
	return b.delay
}

type stubVerifier struct {
	mu    sync.Mutex
	calls int
	event Event
	err   error
}

func (v *stubVerifier) Verify(_ context.Context, _ []byte, _ string) (Event, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.err != nil {
		return Event{}, v.err
	}
	return v.event.Clone(), nil
}

func (v *stubVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type recordingProcessor struct {
	mu     sync.Mutex
	events []Event
	fn     func(event Event) error
}

func (p *recordingProcessor) Process(_ context.Context, event Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		return fn(event)
	}
	return nil
}

func (p *recordingProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *recordingProcessor) lastEvent() Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return Event{}
	}
	return p.events[len(p.events)-1].Clone()
}

// recordingLedger tracks every ledger touch so tests can assert which steps
// of the delivery flow reached it.
type recordingLedger struct {
	mu         sync.Mutex
	claims     []string
	succeeded  []string
	failed     []string
	claimFn    func(eventID string, eventType string) (bool, error)
	successErr error
	failErr    error
}

func (l *recordingLedger) TryClaim(_ context.Context, eventID string, eventType string) (bool, error) {
	l.mu.Lock()
	l.claims = append(l.claims, eventID)
	fn := l.claimFn
	l.mu.Unlock()
	if fn != nil {
		return fn(eventID, eventType)
	}
	return true, nil
}

func (l *recordingLedger) MarkSuccessful(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.successErr != nil {
		return l.successErr
	}
	l.succeeded = append(l.succeeded, eventID)
	return nil
}

func (l *recordingLedger) MarkFailed(_ context.Context, eventID string, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return l.failErr
	}
	l.failed = append(l.failed, eventID)
	return nil
}

func (l *recordingLedger) Get(context.Context, string) (ProcessedEvent, error) {
	return ProcessedEvent{}, ErrEventNotFound
}

func (l *recordingLedger) claimCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.claims)
}

// flakyRetryStore injects failures in front of a real in-memory store.
type flakyRetryStore struct {
	*MemoryRetryStore
	scheduleErr   error
	listDueErr    error
	markStatusErr error
}

func (s *flakyRetryStore) Schedule(ctx context.Context, record RetryRecord) (RetryRecord, error) {
	if s.scheduleErr != nil {
		return RetryRecord{}, s.scheduleErr
	}
	return s.MemoryRetryStore.Schedule(ctx, record)
}

func (s *flakyRetryStore) ListDue(ctx context.Context, now time.Time, limit int) ([]RetryRecord, error) {
	if s.listDueErr != nil {
		return nil, s.listDueErr
	}
	return s.MemoryRetryStore.ListDue(ctx, now, limit)
}

func (s *flakyRetryStore) MarkStatus(ctx context.Context, eventID string, status RetryStatus, errorMessage string) error {
	if s.markStatusErr != nil {
		return s.markStatusErr
	}
	return s.MemoryRetryStore.MarkStatus(ctx, eventID, status, errorMessage)
}

func newWebhookTestService(t *testing.T, options ...Option) *Service {
	t.Helper()
	base := []Option{
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
	}
	svc, err := NewService(Config{}, append(base, options...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
