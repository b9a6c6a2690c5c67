// Package dispatch drains armed destinations and delivers the cycle batch,
// one worker per channel kind. Both kinds share this implementation; the
// platform specifics live behind channel.Sender.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"issuecast/internal/channel"
	"issuecast/internal/storage"
	logx "issuecast/pkg/logx"
)

// Notifier delivers status lines to the service chat.
type Notifier interface {
	Send(ctx context.Context, text string)
}

// Config sets the per-kind knobs: how many destinations one tick may drain
// and the spacing between consecutive sends (the remote platform's rate
// tolerance).
type Config struct {
	BatchLimit int
	SendDelay  time.Duration
}

type Worker struct {
	sender channel.Sender
	store  *storage.Store
	notify Notifier
	log    logx.Logger

	batchLimit int
	limiter    *rate.Limiter

	// active tracks whether a cycle is in flight for this kind, carried
	// across ticks so the start / all-clear notifications fire exactly
	// once per transition instead of on every tick.
	active bool
}

func New(sender channel.Sender, store *storage.Store, notify Notifier, cfg Config, log logx.Logger) *Worker {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 1
	}
	if cfg.SendDelay <= 0 {
		cfg.SendDelay = time.Second
	}
	return &Worker{
		sender:     sender,
		store:      store,
		notify:     notify,
		log:        log.With(logx.String("kind", string(sender.Kind()))),
		batchLimit: cfg.BatchLimit,
		limiter:    rate.NewLimiter(rate.Every(cfg.SendDelay), 1),
	}
}

// Tick drains up to the batch limit of pending destinations. Send failures
// are isolated: reported to the service chat, logged, and the destination
// disarmed like any other — a destination gets exactly one attempt per
// cycle. A failed disarm leaves the row pending for the next tick.
func (w *Worker) Tick(ctx context.Context) error {
	kind := w.sender.Kind()

	pending, err := w.store.PendingDestinations(ctx, kind, w.batchLimit)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	if len(pending) == 0 {
		if w.active {
			w.active = false
			w.log.Info("cycle drained")
			w.notify.Send(ctx, fmt.Sprintf("✅ All %s deliveries completed.", kind))
		}
		return nil
	}

	if !w.active {
		w.active = true
		w.log.Info("cycle drain started", logx.Int("pending", len(pending)))
		w.notify.Send(ctx, fmt.Sprintf("📝 Starting %s deliveries...", kind))
	}

	cycleID, batch, err := w.store.Batch(ctx)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	message := w.sender.Format(batch)

	for _, d := range pending {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := w.sender.Send(ctx, d.ExternalID, message); err != nil {
			w.log.Warn("delivery failed",
				logx.String("cycle", cycleID),
				logx.String("destination", d.ExternalID),
				logx.Err(err))
			w.notify.Send(ctx, fmt.Sprintf("❌ Failed to deliver to %s destination %s: %v",
				kind, d.ExternalID, err))
		} else {
			w.log.Debug("delivered",
				logx.String("cycle", cycleID),
				logx.String("destination", d.ExternalID))
		}

		if err := w.store.Disarm(ctx, kind, d.ExternalID); err != nil {
			// Row stays pending; the next tick retries the disarm (and
			// the send with it).
			w.log.Error("disarm failed", logx.String("destination", d.ExternalID), logx.Err(err))
		}
	}
	return nil
}
