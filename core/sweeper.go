package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const defaultSweepInterval = time.Minute

type SweeperConfig struct {
	Interval time.Duration
	Logger   Logger
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{Interval: defaultSweepInterval}
}

// Sweeper drives the retry backlog on a fixed cadence. It is a pull loop,
// not a listener: each tick drains one due batch through the service and
// goes back to sleep.
type Sweeper struct {
	service  RetrySweepService
	interval time.Duration
	logger   Logger
}

func NewSweeper(service RetrySweepService, config SweeperConfig) (*Sweeper, error) {
	if service == nil {
		return nil, fmt.Errorf("core: sweep service is required")
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	return &Sweeper{
		service:  service,
		interval: config.Interval,
		logger:   glog.Ensure(config.Logger),
	}, nil
}

func (w *Sweeper) Interval() time.Duration {
	if w == nil {
		return 0
	}
	return w.interval
}

// Run sweeps until the context is cancelled. Cancellation is honored at
// sweep boundaries only; an in-flight batch always finishes. Sweep failures
// never break the loop.
func (w *Sweeper) Run(ctx context.Context) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("core: sweeper is not configured")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.SweepOnce(ctx)
		if err := waitWithContext(ctx, w.interval); err != nil {
			return err
		}
	}
}

// SweepOnce runs a single sweep cycle. A batch fetch failure is logged and
// absorbed so the caller's cadence is preserved.
func (w *Sweeper) SweepOnce(ctx context.Context) SweepStats {
	if w == nil || w.service == nil {
		return SweepStats{}
	}
	stats, err := w.service.SweepDueRetries(ctx)
	if err != nil {
		w.logger.Error("retry sweep failed", "error", err.Error())
		return stats
	}
	if stats.Fetched == 0 {
		w.logger.Debug("retry sweep found no due records")
		return stats
	}
	w.logger.Info("retry sweep completed",
		"fetched", stats.Fetched,
		"succeeded", stats.Succeeded,
		"rescheduled", stats.Rescheduled,
		"abandoned", stats.Abandoned,
		"failed", stats.Failed,
	)
	return stats
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
