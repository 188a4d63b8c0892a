package sqlstore

import "github.com/goliatone/go-webhook-engine/core"

var (
	_ core.Ledger                 = (*ProcessedEventStore)(nil)
	_ core.RetryStore             = (*RetryStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
