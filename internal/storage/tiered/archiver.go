package tiered

import (
	"context"
	"time"

	"github.com/sandevgo/vitalmem/pkg/log"
)

// Archiver periodically sweeps the local store for cold records and
// forwards them to the archive. It implements the service lifecycle
// used by the runner.
type Archiver struct {
	adapter  *Adapter
	interval time.Duration
	done     chan struct{}
}

func NewArchiver(adapter *Adapter, interval time.Duration) *Archiver {
	return &Archiver{
		adapter:  adapter,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (a *Archiver) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			archived, err := a.adapter.ArchiveIfDue(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("archive sweep failed")
				continue
			}
			if archived > 0 {
				logger.Info().Int("records", archived).Msg("archived cold records")
			}
		case <-ctx.Done():
			return nil
		case <-a.done:
			return nil
		}
	}
}

func (a *Archiver) Shutdown(ctx context.Context) error {
	close(a.done)
	return nil
}
