package tracker

import (
	"fmt"
	"slices"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

// AddSubtask stores subtask under its epic and returns its id. It fails
// with ErrEpicNotFound, leaving everything untouched, when the epic does
// not exist.
func (m *Manager) AddSubtask(subtask model.Subtask) (int64, error) {
	m.mu.Lock()
	id, err := m.addSubtask(subtask)
	if err != nil {
		m.mu.Unlock()
		return 0, err
	}
	m.commit(Change{Op: OpCreated, Kind: model.KindSubtask, ID: id})
	return id, nil
}

func (m *Manager) addSubtask(subtask model.Subtask) (int64, error) {
	epic, ok := m.epics.get(subtask.EpicID)
	if !ok {
		m.logger.Warn("subtask rejected: unknown epic", "epic", subtask.EpicID, "name", subtask.Name)
		return 0, fmt.Errorf("add subtask to epic %d: %w", subtask.EpicID, ErrEpicNotFound)
	}

	subtask = subtask.Clone()
	subtask.ID = m.assignID(subtask.ID)
	subtask.Status = normalizeStatus(subtask.Status)

	if previous, ok := m.subtasks.get(subtask.ID); ok && previous.EpicID != subtask.EpicID {
		m.detach(previous.EpicID, subtask.ID)
	}
	m.subtasks.put(subtask.ID, subtask)

	if !slices.Contains(epic.SubtaskIDs, subtask.ID) {
		epic.SubtaskIDs = append(epic.SubtaskIDs, subtask.ID)
		m.epics.put(epic.ID, epic)
	}
	m.recompute(epic.ID)
	m.logger.Debug("subtask added", "id", subtask.ID, "epic", epic.ID, "name", subtask.Name)
	return subtask.ID, nil
}

// Subtask returns the subtask with id and records the view.
func (m *Manager) Subtask(id int64) (model.Subtask, bool) {
	m.mu.Lock()
	subtask, ok := m.subtasks.get(id)
	if !ok {
		m.mu.Unlock()
		return model.Subtask{}, false
	}
	m.history.Add(subtask.Clone())
	m.commit(Change{Op: OpViewed, Kind: model.KindSubtask, ID: id})
	return subtask.Clone(), true
}

// Subtasks returns every subtask in the order it was added.
func (m *Manager) Subtasks() []model.Subtask {
	m.mu.Lock()
	defer m.mu.Unlock()

	subtasks := m.subtasks.values()
	for i := range subtasks {
		subtasks[i] = subtasks[i].Clone()
	}
	return subtasks
}

// UpdateSubtask replaces the stored subtask with the same id and recomputes
// its epic. A zero EpicID keeps the current epic; a different one moves the
// subtask, which fails with ErrEpicNotFound when that epic does not exist.
// An unknown subtask id is reported as false with a nil error.
func (m *Manager) UpdateSubtask(subtask model.Subtask) (bool, error) {
	m.mu.Lock()
	stored, ok := m.subtasks.get(subtask.ID)
	if !ok {
		m.mu.Unlock()
		return false, nil
	}

	subtask = subtask.Clone()
	subtask.Status = normalizeStatus(subtask.Status)
	if subtask.EpicID == 0 {
		subtask.EpicID = stored.EpicID
	}

	if subtask.EpicID != stored.EpicID {
		target, ok := m.epics.get(subtask.EpicID)
		if !ok {
			m.mu.Unlock()
			m.logger.Warn("subtask move rejected: unknown epic", "id", subtask.ID, "epic", subtask.EpicID)
			return false, fmt.Errorf("move subtask %d to epic %d: %w", subtask.ID, subtask.EpicID, ErrEpicNotFound)
		}
		m.detach(stored.EpicID, subtask.ID)
		target.SubtaskIDs = append(target.SubtaskIDs, subtask.ID)
		m.epics.put(target.ID, target)
	}

	m.subtasks.put(subtask.ID, subtask)
	m.history.Replace(subtask.Clone())
	m.recompute(subtask.EpicID)
	m.logger.Debug("subtask updated", "id", subtask.ID, "epic", subtask.EpicID)
	m.commit(Change{Op: OpUpdated, Kind: model.KindSubtask, ID: subtask.ID})
	return true, nil
}

// DeleteSubtask removes the subtask, unlinks it from its epic and
// recomputes the epic. It reports whether the subtask existed.
func (m *Manager) DeleteSubtask(id int64) bool {
	m.mu.Lock()
	subtask, ok := m.subtasks.get(id)
	if !ok {
		m.mu.Unlock()
		return false
	}
	m.subtasks.remove(id)
	m.detach(subtask.EpicID, id)
	m.history.Remove(id)
	m.logger.Debug("subtask deleted", "id", id, "epic", subtask.EpicID)
	m.commit(Change{Op: OpDeleted, Kind: model.KindSubtask, ID: id})
	return true
}

// DeleteAllSubtasks removes every subtask and resets every epic.
func (m *Manager) DeleteAllSubtasks() {
	m.mu.Lock()
	for _, id := range m.subtasks.ids() {
		m.history.Remove(id)
	}
	m.subtasks.clear()
	for _, epic := range m.epics.values() {
		epic.SubtaskIDs = []int64{}
		m.epics.put(epic.ID, epic)
		m.recompute(epic.ID)
	}
	m.logger.Debug("all subtasks deleted")
	m.commit(Change{Op: OpCleared, Kind: model.KindSubtask})
}

// detach drops subtaskID from the epic's list and recomputes the epic.
func (m *Manager) detach(epicID, subtaskID int64) {
	epic, ok := m.epics.get(epicID)
	if !ok {
		return
	}
	epic.SubtaskIDs = slices.DeleteFunc(epic.SubtaskIDs, func(id int64) bool {
		return id == subtaskID
	})
	m.epics.put(epicID, epic)
	m.recompute(epicID)
}
