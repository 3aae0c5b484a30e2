package tracker

import (
	"github.com/Joseda-hg/lazytracker/internal/model"
)

// AddEpic stores epic and returns its id. Subtask ids, status and schedule
// passed in are ignored: a new epic starts empty and NEW. Re-adding an
// existing id keeps that epic's subtasks.
func (m *Manager) AddEpic(epic model.Epic) int64 {
	m.mu.Lock()
	id := m.addEpic(epic)
	m.commit(Change{Op: OpCreated, Kind: model.KindEpic, ID: id})
	return id
}

func (m *Manager) addEpic(epic model.Epic) int64 {
	epic = epic.Clone()
	epic.ID = m.assignID(epic.ID)
	epic.SubtaskIDs = []int64{}
	if existing, ok := m.epics.get(epic.ID); ok {
		epic.SubtaskIDs = existing.SubtaskIDs
	}
	deriveEpic(&epic, m.subtasksOf(epic))
	m.epics.put(epic.ID, epic)
	m.logger.Debug("epic added", "id", epic.ID, "name", epic.Name)
	return epic.ID
}

// Epic returns the epic with id and records the view.
func (m *Manager) Epic(id int64) (model.Epic, bool) {
	m.mu.Lock()
	epic, ok := m.epics.get(id)
	if !ok {
		m.mu.Unlock()
		return model.Epic{}, false
	}
	m.history.Add(epic.Clone())
	m.commit(Change{Op: OpViewed, Kind: model.KindEpic, ID: id})
	return epic.Clone(), true
}

// Epics returns every epic in the order it was added.
func (m *Manager) Epics() []model.Epic {
	m.mu.Lock()
	defer m.mu.Unlock()

	epics := m.epics.values()
	for i := range epics {
		epics[i] = epics[i].Clone()
	}
	return epics
}

// EpicSubtasks returns the subtasks of the epic in list order without
// touching the history.
func (m *Manager) EpicSubtasks(epicID int64) ([]model.Subtask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	epic, ok := m.epics.get(epicID)
	if !ok {
		return nil, false
	}
	subtasks := m.subtasksOf(epic)
	for i := range subtasks {
		subtasks[i] = subtasks[i].Clone()
	}
	return subtasks, true
}

// UpdateEpic copies name and description onto the stored epic with the
// same id. Everything else stays derived. It reports false when no such
// epic exists.
func (m *Manager) UpdateEpic(epic model.Epic) bool {
	m.mu.Lock()
	stored, ok := m.epics.get(epic.ID)
	if !ok {
		m.mu.Unlock()
		return false
	}
	stored.Name = epic.Name
	stored.Description = epic.Description
	m.epics.put(stored.ID, stored)
	m.history.Replace(stored.Clone())
	m.logger.Debug("epic updated", "id", stored.ID)
	m.commit(Change{Op: OpUpdated, Kind: model.KindEpic, ID: stored.ID})
	return true
}

// DeleteEpic removes the epic together with its subtasks and reports
// whether it existed.
func (m *Manager) DeleteEpic(id int64) bool {
	m.mu.Lock()
	epic, ok := m.epics.get(id)
	if !ok {
		m.mu.Unlock()
		return false
	}

	changes := make([]Change, 0, len(epic.SubtaskIDs)+1)
	for _, subtaskID := range epic.SubtaskIDs {
		if m.subtasks.remove(subtaskID) {
			changes = append(changes, Change{Op: OpDeleted, Kind: model.KindSubtask, ID: subtaskID})
		}
		m.history.Remove(subtaskID)
	}
	m.epics.remove(id)
	m.history.Remove(id)
	m.logger.Debug("epic deleted", "id", id, "subtasks", len(changes))

	changes = append(changes, Change{Op: OpDeleted, Kind: model.KindEpic, ID: id})
	m.commit(changes...)
	return true
}

// DeleteAllEpics removes every epic and therefore every subtask.
func (m *Manager) DeleteAllEpics() {
	m.mu.Lock()
	for _, id := range m.subtasks.ids() {
		m.history.Remove(id)
	}
	for _, id := range m.epics.ids() {
		m.history.Remove(id)
	}
	m.subtasks.clear()
	m.epics.clear()
	m.logger.Debug("all epics deleted")
	m.commit(
		Change{Op: OpCleared, Kind: model.KindSubtask},
		Change{Op: OpCleared, Kind: model.KindEpic},
	)
}

func (m *Manager) subtasksOf(epic model.Epic) []model.Subtask {
	subtasks := make([]model.Subtask, 0, len(epic.SubtaskIDs))
	for _, id := range epic.SubtaskIDs {
		if subtask, ok := m.subtasks.get(id); ok {
			subtasks = append(subtasks, subtask)
		}
	}
	return subtasks
}

// recompute refreshes the derived fields of the epic with id.
func (m *Manager) recompute(id int64) {
	epic, ok := m.epics.get(id)
	if !ok {
		return
	}
	deriveEpic(&epic, m.subtasksOf(epic))
	m.epics.put(id, epic)
	m.history.Replace(epic.Clone())
}
