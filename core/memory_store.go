package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger is an in-process Ledger used as the default when no SQL
// persistence is wired. Claims are serialized by a mutex, so the exactly-one
// winner guarantee holds within a single process only.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]ProcessedEvent
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: map[string]ProcessedEvent{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryLedger) TryClaim(_ context.Context, eventID string, eventType string) (bool, error) {
	if l == nil {
		return false, ErrEventIDRequired
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, ErrEventIDRequired
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = map[string]ProcessedEvent{}
	}
	if _, exists := l.entries[eventID]; exists {
		return false, nil
	}
	l.entries[eventID] = ProcessedEvent{
		EventID:     eventID,
		EventType:   strings.TrimSpace(eventType),
		ProcessedAt: l.timestamp(),
		Successful:  true,
	}
	return true, nil
}

func (l *MemoryLedger) MarkSuccessful(_ context.Context, eventID string) error {
	if l == nil {
		return nil
	}
	eventID = strings.TrimSpace(eventID)
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[eventID]
	if !exists {
		return nil
	}
	entry.Successful = true
	entry.ErrorMessage = ""
	l.entries[eventID] = entry
	return nil
}

func (l *MemoryLedger) MarkFailed(_ context.Context, eventID string, errorMessage string) error {
	if l == nil {
		return nil
	}
	eventID = strings.TrimSpace(eventID)
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[eventID]
	if !exists {
		return nil
	}
	entry.Successful = false
	entry.ErrorMessage = strings.TrimSpace(errorMessage)
	l.entries[eventID] = entry
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, eventID string) (ProcessedEvent, error) {
	if l == nil {
		return ProcessedEvent{}, ErrEventNotFound
	}
	eventID = strings.TrimSpace(eventID)
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[eventID]
	if !exists {
		return ProcessedEvent{}, ErrEventNotFound
	}
	return entry.Clone(), nil
}

func (l *MemoryLedger) timestamp() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now().UTC()
}

// MemoryRetryStore is an in-process RetryStore keyed by event id.
type MemoryRetryStore struct {
	mu      sync.Mutex
	records map[string]RetryRecord
	now     func() time.Time
}

func NewMemoryRetryStore() *MemoryRetryStore {
	return &MemoryRetryStore{
		records: map[string]RetryRecord{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryRetryStore) Schedule(_ context.Context, record RetryRecord) (RetryRecord, error) {
	if s == nil {
		return RetryRecord{}, ErrRetryScheduleRequired
	}
	record.EventID = strings.TrimSpace(record.EventID)
	record.EventType = strings.TrimSpace(record.EventType)
	if record.Status == "" {
		record.Status = RetryStatusPending
	}
	if err := record.Validate(); err != nil {
		return RetryRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = map[string]RetryRecord{}
	}

	now := s.timestamp()
	existing, exists := s.records[record.EventID]
	if exists {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else {
		if strings.TrimSpace(record.ID) == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
	}
	record.UpdatedAt = now
	s.records[record.EventID] = record.Clone()
	return record.Clone(), nil
}

func (s *MemoryRetryStore) GetByEventID(_ context.Context, eventID string) (RetryRecord, error) {
	if s == nil {
		return RetryRecord{}, ErrRetryNotFound
	}
	eventID = strings.TrimSpace(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.records[eventID]
	if !exists {
		return RetryRecord{}, ErrRetryNotFound
	}
	return record.Clone(), nil
}

func (s *MemoryRetryStore) ListDue(_ context.Context, now time.Time, limit int) ([]RetryRecord, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]RetryRecord, 0, len(s.records))
	for _, record := range s.records {
		if record.Status != RetryStatusPending {
			continue
		}
		if record.NextRetryAt.After(now) {
			continue
		}
		if record.MaxRetries > 0 && record.AttemptNumber > record.MaxRetries {
			continue
		}
		due = append(due, record.Clone())
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRetryAt.Before(due[j].NextRetryAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryRetryStore) ListByStatus(_ context.Context, status RetryStatus, limit int) ([]RetryRecord, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]RetryRecord, 0, len(s.records))
	for _, record := range s.records {
		if status != "" && record.Status != status {
			continue
		}
		matched = append(matched, record.Clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].NextRetryAt.Before(matched[j].NextRetryAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryRetryStore) MarkStatus(_ context.Context, eventID string, status RetryStatus, errorMessage string) error {
	if s == nil {
		return nil
	}
	if !status.Valid() {
		return ErrInvalidRetryStatus
	}
	eventID = strings.TrimSpace(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.records[eventID]
	if !exists {
		return nil
	}
	record.Status = status
	if message := strings.TrimSpace(errorMessage); message != "" {
		record.LastErrorMessage = message
	}
	record.UpdatedAt = s.timestamp()
	s.records[eventID] = record
	return nil
}

func (s *MemoryRetryStore) timestamp() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
