package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Expirer finalizes sessions whose server-side time has run out.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// ExpiryWorker periodically sweeps timed-out exam sessions into submissions.
type ExpiryWorker struct {
	sessions Expirer
	interval time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(sessions Expirer, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start runs the sweep loop until ctx is cancelled. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info().Msg("Expiry sweep disabled")
		return
	}
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	n, err := w.sessions.ExpireStale(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Int("expired", n).Msg("Expiry sweep failed")
		}
		return
	}
	if n > 0 {
		w.log.Info().Int("expired", n).Msg("Expired sessions finalized")
	}
}
