package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-webhook-engine/core"
)

const processedEventCacheKeyPrefix = "go-webhook-engine::processed_event::v1"

// CachedProcessedEventStore layers a read-through cache over a Ledger. Only
// Get is served from cache; claims and marks always run against the base
// store and invalidate the event's cached row.
type CachedProcessedEventStore struct {
	base  core.Ledger
	cache repositorycache.CacheService
}

func NewCachedProcessedEventStore(
	base core.Ledger,
	cacheService repositorycache.CacheService,
) (*CachedProcessedEventStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base processed event store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: processed event cache service is required")
	}
	return &CachedProcessedEventStore{base: base, cache: cacheService}, nil
}

// ProcessedEventCacheKey returns the deterministic cache key contract for
// ledger reads: go-webhook-engine::processed_event::v1::<event_id> with the
// event id URL-path escaped after trimming.
func ProcessedEventCacheKey(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", core.ErrEventIDRequired
	}
	return strings.Join([]string{processedEventCacheKeyPrefix, url.PathEscape(eventID)}, "::"), nil
}

func (s *CachedProcessedEventStore) TryClaim(ctx context.Context, eventID string, eventType string) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached processed event store is not configured")
	}
	claimed, err := s.base.TryClaim(ctx, eventID, eventType)
	if err != nil {
		return false, err
	}
	if err := s.invalidate(ctx, eventID); err != nil {
		return claimed, err
	}
	return claimed, nil
}

func (s *CachedProcessedEventStore) MarkSuccessful(ctx context.Context, eventID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached processed event store is not configured")
	}
	if err := s.base.MarkSuccessful(ctx, eventID); err != nil {
		return err
	}
	return s.invalidate(ctx, eventID)
}

func (s *CachedProcessedEventStore) MarkFailed(ctx context.Context, eventID string, errorMessage string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached processed event store is not configured")
	}
	if err := s.base.MarkFailed(ctx, eventID, errorMessage); err != nil {
		return err
	}
	return s.invalidate(ctx, eventID)
}

func (s *CachedProcessedEventStore) Get(ctx context.Context, eventID string) (core.ProcessedEvent, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ProcessedEvent{}, fmt.Errorf("sqlstore: cached processed event store is not configured")
	}
	cacheKey, err := ProcessedEventCacheKey(eventID)
	if err != nil {
		return core.ProcessedEvent{}, err
	}

	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.ProcessedEvent, error) {
		fetched, fetchErr := s.base.Get(ctx, eventID)
		if fetchErr != nil {
			return core.ProcessedEvent{}, fetchErr
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		return core.ProcessedEvent{}, err
	}
	return entry.Clone(), nil
}

func (s *CachedProcessedEventStore) invalidate(ctx context.Context, eventID string) error {
	cacheKey, err := ProcessedEventCacheKey(eventID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.Ledger = (*CachedProcessedEventStore)(nil)
