package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

// Autosave writes the manager's snapshot to a backend once per operation.
// Failed saves are logged and kept; the next change retries.
type Autosave struct {
	manager *tracker.Manager
	backend Backend
	logger  *slog.Logger

	mu  sync.Mutex
	err error
}

// NewAutosave registers itself as an observer of manager.
func NewAutosave(manager *tracker.Manager, backend Backend, logger *slog.Logger) *Autosave {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Autosave{manager: manager, backend: backend, logger: logger}
	manager.ObserveCommits(a.onCommit)
	return a
}

func (a *Autosave) onCommit(changes []tracker.Change) {
	if err := a.Flush(context.Background()); err != nil {
		a.logger.Error("autosave failed", "change", changes[len(changes)-1].String(), "changes", len(changes), "err", err)
	}
}

// Flush saves the current state now.
func (a *Autosave) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.backend.Save(ctx, a.manager.Snapshot())
	a.err = err
	return err
}

// Err returns the error of the most recent save, nil after a success.
func (a *Autosave) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}
