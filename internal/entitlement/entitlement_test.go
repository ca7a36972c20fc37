package entitlement

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gigledger/internal/storage"
)

func TestPlanFromProduct(t *testing.T) {
	tests := []struct {
		product string
		want    Plan
	}{
		{"gigguard_pro_lifetime", PlanLifetime},
		{"GigGuard_Pro_Annual", PlanYearly},
		{"pro.yearly.v2", PlanYearly},
		{"pro_1year", PlanYearly},
		{"gigguard_pro_monthly", PlanMonthly},
		{"pro_1month", PlanMonthly},
		{"promo_special", PlanMonthly},
	}
	for _, tt := range tests {
		t.Run(tt.product, func(t *testing.T) {
			if got := PlanFromProduct(tt.product); got != tt.want {
				t.Errorf("PlanFromProduct(%q) = %s, want %s", tt.product, got, tt.want)
			}
		})
	}
}

func TestStatusFromEntitlement(t *testing.T) {
	if got := StatusFromEntitlement(nil); got != Free {
		t.Errorf("nil entitlement: got %+v", got)
	}

	exp := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	st := StatusFromEntitlement(&Entitlement{
		ID:             EntitlementID,
		ProductID:      "gigguard_pro_annual",
		PeriodType:     PeriodTrial,
		ExpirationDate: &exp,
		WillRenew:      true,
	})
	if !st.IsPremium || st.Plan != PlanYearly || !st.WillRenew {
		t.Errorf("unexpected status %+v", st)
	}
	if !st.IsInTrial || st.TrialEndDate == nil || !st.TrialEndDate.Equal(exp) {
		t.Errorf("expected trial ending %s, got %+v", exp, st)
	}

	st = StatusFromEntitlement(&Entitlement{ProductID: "gigguard_pro_monthly", PeriodType: "NORMAL"})
	if st.IsInTrial || st.TrialEndDate != nil {
		t.Errorf("normal period must not be a trial: %+v", st)
	}
}

type flagTarget struct {
	mu      sync.Mutex
	premium []bool
}

func (f *flagTarget) SetPremium(p bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.premium = append(f.premium, p)
}

func (f *flagTarget) last() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.premium) == 0 {
		return false, 0
	}
	return f.premium[len(f.premium)-1], len(f.premium)
}

type chanSource chan Status

func (c chanSource) Updates(context.Context) (<-chan Status, error) { return c, nil }

func newCache(t *testing.T) *storage.SQLiteCache {
	t.Helper()
	c, err := storage.NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestWatcherAppliesAndPersists(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	target := &flagTarget{}
	src := make(chanSource, 2)

	w := NewWatcher(src, target, cache, nil)
	src <- StatusFromEntitlement(&Entitlement{ProductID: "gigguard_pro_lifetime"})
	src <- Free
	close(src)

	if err := w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if premium, n := target.last(); premium || n != 2 {
		t.Errorf("expected two updates ending free, got premium=%v n=%d", premium, n)
	}
	if w.Current().Plan != PlanFree {
		t.Errorf("current plan: %s", w.Current().Plan)
	}
	stored, err := LoadPremium(ctx, cache)
	if err != nil || stored {
		t.Errorf("stored flag: %v err=%v", stored, err)
	}
}

func TestWatcherRestore(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	if err := SavePremium(ctx, cache, true); err != nil {
		t.Fatalf("save: %v", err)
	}

	target := &flagTarget{}
	w := NewWatcher(nil, target, cache, nil)
	if w.Follows() {
		t.Error("watcher without a source should not follow updates")
	}
	premium, err := w.Restore(ctx)
	if err != nil || !premium {
		t.Fatalf("restore: premium=%v err=%v", premium, err)
	}
	if got, _ := target.last(); !got {
		t.Errorf("target not set premium")
	}
}

func TestWatcherRunWithoutSource(t *testing.T) {
	w := NewWatcher(nil, &flagTarget{}, nil, nil)
	if err := w.Run(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Errorf("expected ErrNoSource, got %v", err)
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(make(chanSource), &flagTarget{}, nil, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestLoadPremiumWithoutCache(t *testing.T) {
	premium, err := LoadPremium(context.Background(), nil)
	if err != nil || premium {
		t.Errorf("nil cache: premium=%v err=%v", premium, err)
	}
}
