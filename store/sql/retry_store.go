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

// RetryStore is the SQL-backed retry queue. The unique index over event_id
// keeps at most one row per event; Schedule rewrites an existing row in place,
// preserving its id and created_at, so terminal rows reactivate instead of
// accumulating duplicates.
type RetryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookRetryRecord]
}

func NewRetryStore(db *bun.DB) (*RetryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookRetryRecord](db, retryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid retry repository wiring: %w", err)
		}
	}
	return &RetryStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *RetryStore) Schedule(ctx context.Context, record core.RetryRecord) (core.RetryRecord, error) {
	if s == nil || s.db == nil {
		return core.RetryRecord{}, fmt.Errorf("sqlstore: retry store is not configured")
	}
	record.EventID = strings.TrimSpace(record.EventID)
	record.EventType = strings.TrimSpace(record.EventType)
	if record.Status == "" {
		record.Status = core.RetryStatusPending
	}
	if err := record.Validate(); err != nil {
		return core.RetryRecord{}, err
	}
	now := time.Now().UTC()

	var out core.RetryRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := findRetryByEventIDTx(ctx, tx, record.EventID)
		if err != nil {
			return err
		}
		if existing == nil {
			row := newWebhookRetryRecord(record, now)
			if _, insertErr := tx.NewInsert().Model(row).Exec(ctx); insertErr != nil {
				if isUniqueViolation(insertErr) {
					existing, err = findRetryByEventIDTx(ctx, tx, record.EventID)
					if err != nil {
						return err
					}
					if existing == nil {
						return insertErr
					}
				} else {
					return insertErr
				}
			} else {
				out = row.toDomain()
				return nil
			}
		}

		existing.EventType = record.EventType
		existing.Payload = append([]byte(nil), record.Payload...)
		existing.Signature = record.Signature
		existing.AttemptNumber = record.AttemptNumber
		existing.MaxRetries = record.MaxRetries
		existing.Status = string(record.Status)
		existing.NextRetryAt = record.NextRetryAt
		existing.LastErrorMessage = record.LastErrorMessage
		existing.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().Model(existing).Where("id = ?", existing.ID).Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.RetryRecord{}, err
	}
	return out, nil
}

func (s *RetryStore) GetByEventID(ctx context.Context, eventID string) (core.RetryRecord, error) {
	if s == nil || s.db == nil {
		return core.RetryRecord{}, fmt.Errorf("sqlstore: retry store is not configured")
	}
	record := &webhookRetryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.event_id = ?", strings.TrimSpace(eventID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.RetryRecord{}, core.ErrRetryNotFound
		}
		return core.RetryRecord{}, err
	}
	return record.toDomain(), nil
}

func (s *RetryStore) ListDue(ctx context.Context, now time.Time, limit int) ([]core.RetryRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: retry store is not configured")
	}
	selectors := []repository.SelectCriteria{
		repository.SelectBy("status", "=", string(core.RetryStatusPending)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.next_retry_at <= ?", now.UTC()).
				Where("?TableAlias.max_retries <= 0 OR ?TableAlias.attempt_number <= ?TableAlias.max_retries")
		}),
		repository.OrderBy("next_retry_at ASC"),
	}
	if limit > 0 {
		selectors = append(selectors, repository.SelectPaginate(limit, 0))
	}

	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.RetryRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *RetryStore) ListByStatus(ctx context.Context, status core.RetryStatus, limit int) ([]core.RetryRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: retry store is not configured")
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("next_retry_at ASC"),
	}
	if status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", string(status)))
	}
	if limit > 0 {
		selectors = append(selectors, repository.SelectPaginate(limit, 0))
	}

	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.RetryRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *RetryStore) MarkStatus(ctx context.Context, eventID string, status core.RetryStatus, errorMessage string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: retry store is not configured")
	}
	if !status.Valid() {
		return core.ErrInvalidRetryStatus
	}
	query := s.db.NewUpdate().
		Model((*webhookRetryRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", strings.TrimSpace(eventID))
	if message := strings.TrimSpace(errorMessage); message != "" {
		query = query.Set("last_error_message = ?", message)
	}
	_, err := query.Exec(ctx)
	return err
}

func findRetryByEventIDTx(ctx context.Context, tx bun.Tx, eventID string) (*webhookRetryRecord, error) {
	record := &webhookRetryRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.event_id = ?", strings.TrimSpace(eventID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if strings.TrimSpace(record.ID) == "" {
		return nil, nil
	}
	return record, nil
}
