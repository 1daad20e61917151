// internal/app/system/workers/invitationsweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval replaces a non-positive interval.
const DefaultSweepInterval = time.Hour

// Purger deletes invitations that expired more than retention ago.
type Purger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// InvitationSweep is a background worker that removes long-expired pending
// invitations.
type InvitationSweep struct {
	purger    Purger
	log       *zap.Logger
	interval  time.Duration
	retention time.Duration
	timeout   time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewInvitationSweep creates a new sweep worker.
//
// Parameters:
//   - purger: the invitation service
//   - logger: zap logger for logging
//   - interval: how often to sweep (e.g., 1 hour); <= 0 means DefaultSweepInterval
//   - retention: how long an expired invitation is kept (e.g., 30 days)
func NewInvitationSweep(purger Purger, logger *zap.Logger, interval, retention time.Duration) *InvitationSweep {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &InvitationSweep{
		purger:    purger,
		log:       logger,
		interval:  interval,
		retention: retention,
		timeout:   30 * time.Second,
		stopCh:    make(chan struct{}),
	}
}

// Interval reports how often the worker sweeps.
func (w *InvitationSweep) Interval() time.Duration { return w.interval }

// Start begins the background sweep loop. The first sweep runs after one
// interval.
func (w *InvitationSweep) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("invitation sweep worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("retention", w.retention))
}

// Stop signals the worker to stop and waits for it to finish. It is safe to
// call more than once.
func (w *InvitationSweep) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("invitation sweep worker stopped")
	})
}

func (w *InvitationSweep) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *InvitationSweep) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	count, err := w.purger.PurgeExpired(ctx, w.retention)
	if err != nil {
		w.log.Error("failed to purge expired invitations", zap.Error(err))
		return
	}
	if count > 0 {
		w.log.Info("purged expired invitations", zap.Int64("count", count))
	}
}
