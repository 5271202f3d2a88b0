package guard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/onebills/onebills/internal/metrics"
	"github.com/onebills/onebills/internal/store"
)

// Source is the part of the store the watcher observes.
type Source interface {
	State() store.State
	Subscribe() (<-chan store.State, func())
}

// Navigator performs a redirect.
type Navigator interface {
	Replace(route string)
}

// Mailbox is a Navigator that keeps the latest redirect until the UI picks
// it up.
type Mailbox struct {
	mu      sync.Mutex
	pending string
}

func (m *Mailbox) Replace(route string) {
	m.mu.Lock()
	m.pending = route
	m.mu.Unlock()
}

// Take returns and clears the pending redirect.
func (m *Mailbox) Take() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	route := m.pending
	m.pending = ""
	return route, route != ""
}

// Watcher re-evaluates the guards whenever the store or the UI location
// changes.
type Watcher struct {
	source  Source
	nav     Navigator
	metrics metrics.Recorder
	logger  *slog.Logger

	mu       sync.Mutex
	location string
}

func NewWatcher(source Source, nav Navigator, rec metrics.Recorder, logger *slog.Logger) *Watcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{source: source, nav: nav, metrics: rec, logger: logger}
}

// Location returns the last known UI location.
func (w *Watcher) Location() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.location
}

// SetLocation records where the UI is and returns the redirect it must
// follow, if any.
func (w *Watcher) SetLocation(location string) (string, bool) {
	w.mu.Lock()
	w.location = location
	w.mu.Unlock()
	return w.evaluate(w.source.State())
}

// Run evaluates every store snapshot until ctx ends or the store closes.
func (w *Watcher) Run(ctx context.Context) {
	updates, stop := w.source.Subscribe()
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			w.evaluate(st)
		}
	}
}

func (w *Watcher) evaluate(st store.State) (string, bool) {
	w.mu.Lock()
	location := w.location
	if location == "" {
		w.mu.Unlock()
		return "", false
	}
	target, ok := Evaluate(st, location)
	if ok {
		w.location = target
	}
	w.mu.Unlock()

	if !ok {
		return "", false
	}
	w.logger.Info("guard.redirect", slog.String("from", location), slog.String("to", target))
	w.metrics.RecordGuardRedirect(target)
	w.nav.Replace(target)
	return target, true
}
