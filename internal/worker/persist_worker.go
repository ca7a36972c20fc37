package worker

import (
	"context"
	"time"

	"gigledger/internal/log"
)

// Persister writes in-memory state to durable storage.
type Persister interface {
	Persist(ctx context.Context) error
}

// PersistRecorder observes the outcome of every persist attempt.
type PersistRecorder interface {
	RecordPersist(err error)
}

// PersistWorker periodically flushes the ledger to the local cache so that a
// crash loses at most one interval of changes.
type PersistWorker struct {
	target   Persister
	recorder PersistRecorder
	interval time.Duration
	logger   *log.Logger
}

func NewPersistWorker(target Persister, recorder PersistRecorder, interval time.Duration, logger *log.Logger) *PersistWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &PersistWorker{
		target:   target,
		recorder: recorder,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentStorage),
	}
}

// Run persists on every tick until ctx is cancelled, then performs one final
// flush with a context detached from the cancellation.
func (w *PersistWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Persist worker started",
		log.FieldOperation, log.OpStartup,
		"interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			err := w.Flush(flushCtx)
			cancel()
			w.logger.InfoContext(ctx, "Persist worker stopped", log.FieldOperation, log.OpShutdown)
			return err
		case <-ticker.C:
			// Errors are recorded and logged; the next tick retries.
			_ = w.Flush(ctx)
		}
	}
}

// Flush persists once and reports the outcome.
func (w *PersistWorker) Flush(ctx context.Context) error {
	start := time.Now()
	err := w.target.Persist(ctx)
	if w.recorder != nil {
		w.recorder.RecordPersist(err)
	}
	if err != nil {
		w.logger.LogError(ctx, "Periodic persist failed", err, log.OpPersist,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		return err
	}
	w.logger.DebugContext(ctx, "Periodic persist completed",
		log.FieldOperation, log.OpPersist,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}
