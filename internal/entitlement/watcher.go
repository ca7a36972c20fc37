package entitlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gigledger/internal/log"
	"gigledger/internal/storage"
)

// PremiumKey is the local cache key of the last known premium flag.
const PremiumKey = "premium-status"

// ErrNoSource is returned by Run on a watcher built without a source.
var ErrNoSource = errors.New("entitlement: no update source")

// PremiumSetter receives the premium flag; the record store implements it.
type PremiumSetter interface {
	SetPremium(premium bool)
}

// Watcher applies entitlement updates to a PremiumSetter and remembers the
// last flag in the local cache so the next start does not begin as free.
type Watcher struct {
	source Source
	target PremiumSetter
	cache  storage.Cache
	logger *log.Logger

	mu      sync.RWMutex
	current Status
}

// NewWatcher builds a watcher. source may be nil when no update channel is
// configured; the watcher then only restores the stored flag.
func NewWatcher(source Source, target PremiumSetter, cache storage.Cache, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Discard()
	}
	return &Watcher{
		source:  source,
		target:  target,
		cache:   cache,
		logger:  logger.WithComponent(log.ComponentEntitlement),
		current: Free,
	}
}

// Restore applies the stored premium flag, if any, and returns it.
func (w *Watcher) Restore(ctx context.Context) (bool, error) {
	premium, err := LoadPremium(ctx, w.cache)
	if err != nil {
		return false, err
	}
	w.target.SetPremium(premium)
	return premium, nil
}

// Follows reports whether the watcher has a source to run against.
func (w *Watcher) Follows() bool {
	return w.source != nil
}

// Run consumes updates until ctx is done or the source closes.
func (w *Watcher) Run(ctx context.Context) error {
	if w.source == nil {
		return ErrNoSource
	}
	updates, err := w.source.Updates(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to entitlement updates: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			w.apply(ctx, st)
		}
	}
}

func (w *Watcher) apply(ctx context.Context, st Status) {
	w.mu.Lock()
	w.current = st
	w.mu.Unlock()

	w.target.SetPremium(st.IsPremium)
	w.logger.InfoContext(ctx, "Entitlement updated",
		log.FieldPremium, st.IsPremium,
		log.FieldPlan, string(st.Plan))

	if err := SavePremium(ctx, w.cache, st.IsPremium); err != nil {
		w.logger.LogError(ctx, "Failed to store premium status", err, log.OpPersist,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
	}
}

// Current returns the last status received.
func (w *Watcher) Current() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// LoadPremium reads the stored flag. A missing entry or nil cache is free.
func LoadPremium(ctx context.Context, cache storage.Cache) (bool, error) {
	if cache == nil {
		return false, nil
	}
	v, ok, err := cache.Load(ctx, PremiumKey)
	if err != nil {
		return false, fmt.Errorf("load premium status: %w", err)
	}
	return ok && string(v) == "true", nil
}

func SavePremium(ctx context.Context, cache storage.Cache, premium bool) error {
	if cache == nil {
		return nil
	}
	v := "false"
	if premium {
		v = "true"
	}
	return cache.Save(ctx, PremiumKey, []byte(v))
}
