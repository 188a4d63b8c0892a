package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-webhook-engine/core"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds and memoizes the SQL-backed stores over a single
// bun database handle. It satisfies both the store factory and store provider
// contracts, so it can be handed to the engine directly.
type RepositoryFactory struct {
	db           *bun.DB
	cacheService repositorycache.CacheService

	ledger              core.Ledger
	processedEventStore *ProcessedEventStore
	retryStore          *RetryStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

// NewCachedRepositoryFactory returns a factory whose ledger reads go through
// the supplied cache service. Mutations invalidate per event id.
func NewCachedRepositoryFactory(cacheService repositorycache.CacheService) *RepositoryFactory {
	return &RepositoryFactory{cacheService: cacheService}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.processedEventStore != nil && f.retryStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) Ledger() core.Ledger {
	if f == nil {
		return nil
	}
	return f.ledger
}

func (f *RepositoryFactory) RetryStore() core.RetryStore {
	if f == nil || f.retryStore == nil {
		return nil
	}
	return f.retryStore
}

// ProcessedEventStore exposes the concrete ledger store, bypassing any cache
// layer. Useful for migrations tooling and tests.
func (f *RepositoryFactory) ProcessedEventStore() *ProcessedEventStore {
	if f == nil {
		return nil
	}
	return f.processedEventStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	processedEventStore, err := NewProcessedEventStore(f.db)
	if err != nil {
		return err
	}
	f.processedEventStore = processedEventStore

	retryStore, err := NewRetryStore(f.db)
	if err != nil {
		return err
	}
	f.retryStore = retryStore

	f.ledger = processedEventStore
	if f.cacheService != nil {
		cached, err := NewCachedProcessedEventStore(processedEventStore, f.cacheService)
		if err != nil {
			return err
		}
		f.ledger = cached
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
