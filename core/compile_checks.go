package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Ledger            = (*MemoryLedger)(nil)
	_ RetryStore        = (*MemoryRetryStore)(nil)
	_ RetryClassifier   = RetryClassifierFunc(nil)
	_ Processor         = ProcessorFunc(nil)
	_ WebhookService    = (*Service)(nil)
	_ RetrySweepService = (*Service)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
