package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEventNotFound         = errors.New("core: processed event not found")
	ErrRetryNotFound         = errors.New("core: retry record not found")
	ErrInvalidRetryStatus    = errors.New("core: invalid retry status")
	ErrInvalidAttemptNumber  = errors.New("core: invalid attempt number")
	ErrEventIDRequired       = errors.New("core: event id is required")
	ErrEventPayloadRequired  = errors.New("core: event payload is required")
	ErrRetryScheduleRequired = errors.New("core: retry schedule input is required")
)

// Event is a verified inbound webhook delivery. ID is the provider-assigned
// delivery identifier and the idempotency key for the whole pipeline.
type Event struct {
	ID       string
	Type     string
	Payload  []byte
	Metadata map[string]any
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEventIDRequired
	}
	return nil
}

func (e Event) Clone() Event {
	out := Event{
		ID:   strings.TrimSpace(e.ID),
		Type: strings.TrimSpace(e.Type),
	}
	if len(e.Payload) > 0 {
		out.Payload = append([]byte(nil), e.Payload...)
	}
	if len(e.Metadata) > 0 {
		out.Metadata = copyAnyMap(e.Metadata)
	}
	return out
}

// ProcessedEvent is a ledger row recording that an event id was claimed for
// processing. Rows are inserted exactly once per event id and never deleted.
type ProcessedEvent struct {
	EventID      string
	EventType    string
	ProcessedAt  time.Time
	Successful   bool
	ErrorMessage string
}

func (p ProcessedEvent) Clone() ProcessedEvent {
	return p
}

type RetryStatus string

const (
	RetryStatusPending   RetryStatus = "pending"
	RetryStatusSucceeded RetryStatus = "succeeded"
	RetryStatusFailed    RetryStatus = "failed"
)

func (s RetryStatus) Valid() bool {
	switch s {
	case RetryStatusPending, RetryStatusSucceeded, RetryStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends the retry lifecycle. Terminal rows
// are kept for audit and may be reactivated by a later schedule request.
func (s RetryStatus) Terminal() bool {
	return s == RetryStatusSucceeded || s == RetryStatusFailed
}

func ParseRetryStatus(raw string) (RetryStatus, error) {
	status := RetryStatus(strings.TrimSpace(strings.ToLower(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRetryStatus, raw)
	}
	return status, nil
}

// RetryRecord is a durable unit of redelivery work. At most one row exists per
// event id; reschedules mutate the row in place.
type RetryRecord struct {
	ID               string
	EventID          string
	EventType        string
	Payload          []byte
	Signature        string
	AttemptNumber    int
	MaxRetries       int
	Status           RetryStatus
	NextRetryAt      time.Time
	LastErrorMessage string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r RetryRecord) Validate() error {
	if strings.TrimSpace(r.EventID) == "" {
		return ErrEventIDRequired
	}
	if r.AttemptNumber < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidAttemptNumber, r.AttemptNumber)
	}
	if r.Status != "" && !r.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRetryStatus, r.Status)
	}
	return nil
}

// Exhausted reports whether another attempt would exceed the record's budget.
func (r RetryRecord) Exhausted() bool {
	return r.MaxRetries > 0 && r.AttemptNumber >= r.MaxRetries
}

func (r RetryRecord) Event() Event {
	event := Event{
		ID:      strings.TrimSpace(r.EventID),
		Type:    strings.TrimSpace(r.EventType),
		Payload: r.Payload,
	}
	return event.Clone()
}

func (r RetryRecord) Clone() RetryRecord {
	out := r
	if len(r.Payload) > 0 {
		out.Payload = append([]byte(nil), r.Payload...)
	}
	return out
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
