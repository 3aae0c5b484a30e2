// Package tracker implements the in-memory task manager: plain tasks, epics
// whose status and schedule are derived from their subtasks, and the log of
// recently viewed entities.
//
// Entities live in one map per kind keyed by id. Epics refer to subtasks by
// id and subtasks refer back by epic id; every traversal goes through the
// Manager. All values handed in or out are copied.
package tracker

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/Joseda-hg/lazytracker/internal/history"
	"github.com/Joseda-hg/lazytracker/internal/model"
)

type Manager struct {
	mu sync.Mutex

	ids      IDAllocator
	tasks    *registry[model.Task]
	epics    *registry[model.Epic]
	subtasks *registry[model.Subtask]
	history  *history.Tracker

	logger    *slog.Logger
	observers []func(Change)
	batches   []func([]Change)
}

type options struct {
	historyLimit int
	logger       *slog.Logger
}

type Option func(*options)

// WithHistoryLimit bounds the view history; values below 1 keep the default.
func WithHistoryLimit(limit int) Option {
	return func(o *options) {
		o.historyLimit = limit
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func New(opts ...Option) *Manager {
	cfg := options{historyLimit: history.DefaultLimit, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Manager{
		tasks:    newRegistry[model.Task](),
		epics:    newRegistry[model.Epic](),
		subtasks: newRegistry[model.Subtask](),
		history:  history.New(cfg.historyLimit),
		logger:   cfg.logger,
	}
}

// Observe registers fn to be called after every change. Callbacks run on
// the goroutine that made the change, after the manager lock is released,
// so they may call back into the Manager.
func (m *Manager) Observe(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// ObserveCommits registers fn to be called once per operation with every
// change it made, for example a deleted epic together with its subtasks.
// Callbacks run like those registered with Observe.
func (m *Manager) ObserveCommits(fn func([]Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, fn)
}

// commit releases the lock taken by the caller and then delivers changes.
func (m *Manager) commit(changes ...Change) {
	observers := slices.Clone(m.observers)
	batches := slices.Clone(m.batches)
	m.mu.Unlock()

	for _, change := range changes {
		for _, fn := range observers {
			fn(change)
		}
	}
	if len(changes) == 0 {
		return
	}
	for _, fn := range batches {
		fn(slices.Clone(changes))
	}
}

// History returns the recently viewed entities, oldest first.
func (m *Manager) History() []model.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.history.List()
	for i, entry := range entries {
		entries[i] = cloneEntity(entry)
	}
	return entries
}

// NextID returns the id the next added entity without an explicit id gets.
func (m *Manager) NextID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids.Last() + 1
}

// Lookup finds an entity of any kind and records the view.
func (m *Manager) Lookup(id int64) (model.Entity, bool) {
	m.mu.Lock()
	entity, ok := m.find(id)
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	m.history.Add(entity)
	m.commit(Change{Op: OpViewed, Kind: entity.Kind(), ID: id})
	return cloneEntity(entity), true
}

// Peek finds an entity of any kind without recording a view.
func (m *Manager) Peek(id int64) (model.Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entity, ok := m.find(id)
	if !ok {
		return nil, false
	}
	return cloneEntity(entity), true
}

func (m *Manager) find(id int64) (model.Entity, bool) {
	if task, ok := m.tasks.get(id); ok {
		return task.Clone(), true
	}
	if epic, ok := m.epics.get(id); ok {
		return epic.Clone(), true
	}
	if subtask, ok := m.subtasks.get(id); ok {
		return subtask.Clone(), true
	}
	return nil, false
}

func (m *Manager) assignID(id int64) int64 {
	if id <= 0 {
		return m.ids.Next()
	}
	m.ids.Observe(id)
	return id
}

func normalizeStatus(status model.Status) model.Status {
	if status == "" {
		return model.StatusNew
	}
	return status
}

func cloneEntity(entity model.Entity) model.Entity {
	switch value := entity.(type) {
	case model.Task:
		return value.Clone()
	case model.Epic:
		return value.Clone()
	case model.Subtask:
		return value.Clone()
	default:
		return entity
	}
}
