// Package storage connects a tracker.Manager to one of the persistence
// backends and keeps the stored copy current.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/Joseda-hg/lazytracker/internal/config"
	"github.com/Joseda-hg/lazytracker/internal/db"
	"github.com/Joseda-hg/lazytracker/internal/filestore"
	"github.com/Joseda-hg/lazytracker/internal/pgdb"
	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

type Backend interface {
	Load(ctx context.Context) (tracker.Snapshot, error)
	Save(ctx context.Context, snap tracker.Snapshot) error
	Close() error
}

// Journal is implemented by backends that record per-entity changes.
type Journal interface {
	ListChanges(ctx context.Context, entityID int64) ([]db.Change, error)
}

// Open returns the backend selected by cfg.Storage. Paths must already be
// resolved, see config.Config.WithDefaults.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendFile:
		return filestore.New(cfg.Storage.Path), nil
	case config.BackendSQLite:
		if err := config.EnsureDir(cfg.Storage.Path); err != nil {
			return nil, err
		}
		sqlDB, err := db.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return db.NewStore(sqlDB), nil
	case config.BackendPostgres:
		return pgdb.Open(ctx, cfg.Storage.DSN, cfg.Storage.KeepSnapshots)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// LoadManager restores a manager from backend.
func LoadManager(ctx context.Context, backend Backend, opts ...tracker.Option) (*tracker.Manager, error) {
	snap, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	manager, err := tracker.FromSnapshot(snap, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore stored state: %w", err)
	}
	return manager, nil
}

// Memory keeps the last saved snapshot in process memory.
type Memory struct {
	mu    sync.Mutex
	snap  tracker.Snapshot
	saves int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) (tracker.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return tracker.Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *Memory) Save(ctx context.Context, snap tracker.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.saves++
	return nil
}

// Saves reports how often Save succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error {
	return nil
}
