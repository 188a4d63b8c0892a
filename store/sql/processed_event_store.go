package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-webhook-engine/core"
	"github.com/uptrace/bun"
)

// ProcessedEventStore is the SQL-backed dedup ledger. The exactly-one-winner
// claim guarantee rides on the unique index over event_id, so it holds across
// processes sharing the same database.
type ProcessedEventStore struct {
	db   *bun.DB
	repo repository.Repository[*processedEventRecord]
}

func NewProcessedEventStore(db *bun.DB) (*ProcessedEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*processedEventRecord](db, processedEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid processed event repository wiring: %w", err)
		}
	}
	return &ProcessedEventStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *ProcessedEventStore) TryClaim(ctx context.Context, eventID string, eventType string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: processed event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, core.ErrEventIDRequired
	}

	record := newProcessedEventRecord(eventID, eventType, time.Now().UTC())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ProcessedEventStore) MarkSuccessful(ctx context.Context, eventID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: processed event store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*processedEventRecord)(nil)).
		Set("successful = ?", true).
		Set("error_message = ?", "").
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", strings.TrimSpace(eventID)).
		Exec(ctx)
	return err
}

func (s *ProcessedEventStore) MarkFailed(ctx context.Context, eventID string, errorMessage string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: processed event store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*processedEventRecord)(nil)).
		Set("successful = ?", false).
		Set("error_message = ?", strings.TrimSpace(errorMessage)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", strings.TrimSpace(eventID)).
		Exec(ctx)
	return err
}

func (s *ProcessedEventStore) Get(ctx context.Context, eventID string) (core.ProcessedEvent, error) {
	if s == nil || s.db == nil {
		return core.ProcessedEvent{}, fmt.Errorf("sqlstore: processed event store is not configured")
	}
	record := &processedEventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.event_id = ?", strings.TrimSpace(eventID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.ProcessedEvent{}, core.ErrEventNotFound
		}
		return core.ProcessedEvent{}, err
	}
	return record.toDomain(), nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
