package tracker

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

// Snapshot is the complete state of a Manager: entities in insertion order,
// the history as ids (oldest first) and the id counter.
type Snapshot struct {
	Tasks    []model.Task
	Epics    []model.Epic
	Subtasks []model.Subtask
	History  []int64
	LastID   int64
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Tasks:    m.tasks.values(),
		Epics:    m.epics.values(),
		Subtasks: m.subtasks.values(),
		History:  m.history.IDs(),
		LastID:   m.ids.Last(),
	}
	for i := range snap.Tasks {
		snap.Tasks[i] = snap.Tasks[i].Clone()
	}
	for i := range snap.Epics {
		snap.Epics[i] = snap.Epics[i].Clone()
	}
	for i := range snap.Subtasks {
		snap.Subtasks[i] = snap.Subtasks[i].Clone()
	}
	return snap
}

// Restore replaces the manager's state with snap by replaying the add
// operations with the snapshot's ids. On error the manager is unchanged.
func (m *Manager) Restore(snap Snapshot) error {
	m.mu.Lock()
	staged := New(WithHistoryLimit(m.history.Limit()), WithLogger(m.logger))
	if err := staged.replay(snap); err != nil {
		m.mu.Unlock()
		return err
	}

	m.ids = staged.ids
	m.tasks = staged.tasks
	m.epics = staged.epics
	m.subtasks = staged.subtasks
	m.history = staged.history
	m.logger.Debug("state restored",
		"tasks", m.tasks.len(),
		"epics", m.epics.len(),
		"subtasks", m.subtasks.len(),
		"last_id", m.ids.Last(),
	)
	m.commit(Change{Op: OpRestored})
	return nil
}

// FromSnapshot builds a Manager holding snap.
func FromSnapshot(snap Snapshot, opts ...Option) (*Manager, error) {
	m := New(opts...)
	if err := m.replay(snap); err != nil {
		return nil, err
	}
	return m, nil
}

// replay loads snap into an unshared manager; no lock is taken.
func (m *Manager) replay(snap Snapshot) error {
	for _, task := range snap.Tasks {
		if task.ID <= 0 {
			return fmt.Errorf("restore task %q: missing id", task.Name)
		}
		m.addTask(task)
	}
	for _, epic := range snap.Epics {
		if epic.ID <= 0 {
			return fmt.Errorf("restore epic %q: missing id", epic.Name)
		}
		m.addEpic(epic)
	}
	for _, subtask := range snap.Subtasks {
		if subtask.ID <= 0 {
			return fmt.Errorf("restore subtask %q: missing id", subtask.Name)
		}
		if _, err := m.addSubtask(subtask); err != nil {
			return fmt.Errorf("restore subtask %d: %w", subtask.ID, err)
		}
	}
	for _, epic := range snap.Epics {
		m.reorderSubtasks(epic.ID, epic.SubtaskIDs)
	}
	for _, id := range snap.History {
		if entity, ok := m.find(id); ok {
			m.history.Add(entity)
		}
	}
	m.ids.Observe(snap.LastID)
	return nil
}

// reorderSubtasks applies order to the epic's subtask list when order holds
// exactly the ids the epic already has. Anything else keeps the replay
// order.
func (m *Manager) reorderSubtasks(epicID int64, order []int64) {
	epic, ok := m.epics.get(epicID)
	if !ok || len(order) == 0 || len(order) != len(epic.SubtaskIDs) {
		return
	}
	if !slices.Equal(slices.Sorted(slices.Values(order)), slices.Sorted(slices.Values(epic.SubtaskIDs))) {
		return
	}
	epic.SubtaskIDs = slices.Clone(order)
	m.epics.put(epicID, epic)
}

// SubtaskPositions maps every listed subtask id to its index in its epic's
// subtask list.
func (s Snapshot) SubtaskPositions() map[int64]int {
	positions := make(map[int64]int)
	for _, epic := range s.Epics {
		for i, id := range epic.SubtaskIDs {
			positions[id] = i
		}
	}
	return positions
}

// LinkSubtasks rebuilds every epic's SubtaskIDs from s.Subtasks, ordered by
// positions. Subtasks without a position follow in snapshot order.
func (s *Snapshot) LinkSubtasks(positions map[int64]int) {
	type entry struct {
		id       int64
		position int
	}
	byEpic := make(map[int64][]entry)
	for i, subtask := range s.Subtasks {
		position, ok := positions[subtask.ID]
		if !ok {
			position = len(s.Subtasks) + i
		}
		byEpic[subtask.EpicID] = append(byEpic[subtask.EpicID], entry{id: subtask.ID, position: position})
	}

	for i := range s.Epics {
		entries := byEpic[s.Epics[i].ID]
		slices.SortStableFunc(entries, func(a, b entry) int {
			return cmp.Compare(a.position, b.position)
		})
		ids := make([]int64, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.id)
		}
		s.Epics[i].SubtaskIDs = ids
	}
}
