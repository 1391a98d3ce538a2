package daemon

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/1broseidon/steer/internal/driver"
	"github.com/1broseidon/steer/internal/identity"
)

const defaultInterval = 2 * time.Second

// RefresherConfig holds configuration for the refresher.
type RefresherConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
	// Store, when set, receives the table after every pass that changed it.
	Store *StateStore
}

// Refresher keeps the identity table in step with the window list. Each
// window gets a stable alternative handle derived from its owner, class and
// title, and mappings that no longer name a live window are dropped.
type Refresher struct {
	interval time.Duration
	windows  driver.Windows
	table    *identity.Table
	store    *StateStore
	logger   *slog.Logger
}

// PassStats summarizes one refresh pass.
type PassStats struct {
	Windows int
	Minted  int
	Pruned  int
}

func (s PassStats) changed() bool { return s.Minted > 0 || s.Pruned > 0 }

// NewRefresher creates a refresher over the given window source and table.
func NewRefresher(cfg RefresherConfig, windows driver.Windows, table *identity.Table) *Refresher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Refresher{
		interval: interval,
		windows:  windows,
		table:    table,
		store:    cfg.Store,
		logger:   logger.With("component", "refresher"),
	}
}

// Run refreshes immediately and then on every tick. Blocks until ctx is
// cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("refresher started", "interval", r.interval)
	r.RefreshNow(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopped")
			return nil
		case <-ticker.C:
			r.RefreshNow(ctx)
		}
	}
}

// RefreshNow performs a single pass.
func (r *Refresher) RefreshNow(ctx context.Context) (stats PassStats) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("refresher panic recovered", "error", err)
		}
	}()

	wins, err := r.windows.List(ctx)
	if err != nil {
		r.logger.Error("refresher: failed to list windows", "error", err)
		return stats
	}
	stats.Windows = len(wins)

	live := make(map[string]bool, len(wins))
	stable := make(map[string]string, len(wins))
	owners := make(map[string]int, len(wins))
	for _, w := range wins {
		live[w.Handle] = true
		h := identity.StableHandle(strconv.Itoa(int(w.App)), w.Class, w.Title)
		stable[w.Handle] = h
		owners[h]++
	}

	for _, w := range wins {
		h := stable[w.Handle]
		if owners[h] > 1 {
			// Identical owner, class and title: the stable handle would be
			// ambiguous.
			continue
		}
		existing, ok := r.table.Resolve(w.Handle)
		if ok && (existing == h || identity.Classify(existing).Form != identity.FormHashBased) {
			continue
		}
		r.table.AddMapping(w.Handle, h)
		stats.Minted++
		r.logger.Debug("minted stable handle", "window", w.Handle, "stable", h, "title", w.Title)
	}

	for _, p := range r.table.Snapshot() {
		if live[p.A] || live[p.B] {
			continue
		}
		r.table.Forget(p.A)
		stats.Pruned++
		r.logger.Debug("dropped mapping for vanished window", "a", p.A, "b", p.B)
	}

	if stats.changed() {
		r.logger.Info("identity table refreshed",
			"windows", stats.Windows,
			"minted", stats.Minted,
			"pruned", stats.Pruned,
			"mappings", r.table.Len())
		if r.store != nil {
			if err := r.store.Save(r.table); err != nil {
				r.logger.Warn("failed to persist identity table", "error", err)
			}
		}
	}
	return stats
}
