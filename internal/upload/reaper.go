package upload

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Reaper periodically removes expired upload sessions and their blobs.
// It is started once at process startup and stopped on shutdown; reap
// failures are logged and retried on the next pass, never surfaced to
// request traffic.
type Reaper struct {
	service  *Service
	interval time.Duration
	done     chan struct{}
}

// NewReaper creates a reaper running at the given interval
func NewReaper(service *Service, interval time.Duration) *Reaper {
	return &Reaper{
		service:  service,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the reap loop in a background goroutine. The loop stops when
// ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	log.Info().Dur("interval", r.interval).Msg("upload reaper started")

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		// Run once immediately on start
		r.runOnce(ctx)

		for {
			select {
			case <-ticker.C:
				r.runOnce(ctx)
			case <-ctx.Done():
				log.Info().Msg("upload reaper stopping")
				close(r.done)
				return
			}
		}
	}()
}

// Wait blocks until the reaper has fully stopped
func (r *Reaper) Wait() {
	<-r.done
}

func (r *Reaper) runOnce(ctx context.Context) {
	reaped := r.service.ReapExpired(ctx)
	if reaped > 0 {
		log.Info().Int("reaped", reaped).Msg("expired upload sessions removed")
	} else {
		log.Debug().Msg("no expired upload sessions found")
	}
}
