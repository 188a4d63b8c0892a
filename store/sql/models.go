package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type processedEventRecord struct {
	bun.BaseModel `bun:"table:processed_webhook_events,alias:pwe"`

	ID           string    `bun:"id,pk"`
	EventID      string    `bun:"event_id,notnull"`
	EventType    string    `bun:"event_type,notnull"`
	ProcessedAt  time.Time `bun:"processed_at,notnull"`
	Successful   bool      `bun:"successful,notnull"`
	ErrorMessage string    `bun:"error_message"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookRetryRecord struct {
	bun.BaseModel `bun:"table:webhook_retries,alias:wr"`

	ID               string    `bun:"id,pk"`
	EventID          string    `bun:"event_id,notnull"`
	EventType        string    `bun:"event_type,notnull"`
	Payload          []byte    `bun:"payload"`
	Signature        string    `bun:"signature"`
	AttemptNumber    int       `bun:"attempt_number,notnull"`
	MaxRetries       int       `bun:"max_retries,notnull"`
	Status           string    `bun:"status,notnull"`
	NextRetryAt      time.Time `bun:"next_retry_at,notnull"`
	LastErrorMessage string    `bun:"last_error_message"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
