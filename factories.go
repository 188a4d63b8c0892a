package webhookengine

import (
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-webhook-engine/core"
	sqlstore "github.com/goliatone/go-webhook-engine/store/sql"
	"github.com/goliatone/go-webhook-engine/verify"
)

// SQLStoreFactory returns the repository factory the engine consumes through
// WithRepositoryFactory. Stores bind lazily to the persistence client handed
// to NewService.
func SQLStoreFactory() *sqlstore.RepositoryFactory {
	return sqlstore.NewRepositoryFactory()
}

// CachedSQLStoreFactory routes ledger reads through the supplied cache
// service; mutations invalidate per event id.
func CachedSQLStoreFactory(cacheService repositorycache.CacheService) *sqlstore.RepositoryFactory {
	return sqlstore.NewCachedRepositoryFactory(cacheService)
}

// SQLStoreFactoryFromConfig builds the factory with the cache layer applied
// when cfg.Cache enables it.
func SQLStoreFactoryFromConfig(cfg Config) (*sqlstore.RepositoryFactory, error) {
	cacheService, err := CacheServiceFromConfig(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if cacheService == nil {
		return sqlstore.NewRepositoryFactory(), nil
	}
	return sqlstore.NewCachedRepositoryFactory(cacheService), nil
}

// CacheServiceFromConfig builds the repository cache service the cached
// ledger consumes. Returns nil when caching is disabled.
func CacheServiceFromConfig(cfg core.CacheConfig) (repositorycache.CacheService, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cacheConfig := repositorycache.DefaultConfig()
	if cfg.TTL > 0 {
		cacheConfig.TTL = cfg.TTL
	}
	return repositorycache.NewCacheService(cacheConfig)
}

// HMACVerifier builds the engine's standard HMAC-SHA256 verifier from the
// verification config plus the shared secret. The secret stays out of Config
// so it can come from a secret store.
func HMACVerifier(cfg core.VerificationConfig, secret string) verify.HMACVerifier {
	return verify.FromConfig(cfg, secret)
}
