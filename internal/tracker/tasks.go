package tracker

import "github.com/Joseda-hg/lazytracker/internal/model"

// AddTask stores task and returns its id. A zero id is replaced by a newly
// allocated one; a preset id is kept as is.
func (m *Manager) AddTask(task model.Task) int64 {
	m.mu.Lock()
	id := m.addTask(task)
	m.commit(Change{Op: OpCreated, Kind: model.KindTask, ID: id})
	return id
}

func (m *Manager) addTask(task model.Task) int64 {
	task = task.Clone()
	task.ID = m.assignID(task.ID)
	task.Status = normalizeStatus(task.Status)
	m.tasks.put(task.ID, task)
	m.logger.Debug("task added", "id", task.ID, "name", task.Name)
	return task.ID
}

// Task returns the task with id and records the view.
func (m *Manager) Task(id int64) (model.Task, bool) {
	m.mu.Lock()
	task, ok := m.tasks.get(id)
	if !ok {
		m.mu.Unlock()
		return model.Task{}, false
	}
	m.history.Add(task.Clone())
	m.commit(Change{Op: OpViewed, Kind: model.KindTask, ID: id})
	return task.Clone(), true
}

// Tasks returns every task in the order it was added.
func (m *Manager) Tasks() []model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := m.tasks.values()
	for i := range tasks {
		tasks[i] = tasks[i].Clone()
	}
	return tasks
}

// UpdateTask replaces the stored task with the same id. It reports false,
// and changes nothing, when no such task exists.
func (m *Manager) UpdateTask(task model.Task) bool {
	m.mu.Lock()
	if _, ok := m.tasks.get(task.ID); !ok {
		m.mu.Unlock()
		return false
	}
	task = task.Clone()
	task.Status = normalizeStatus(task.Status)
	m.tasks.put(task.ID, task)
	m.history.Replace(task.Clone())
	m.logger.Debug("task updated", "id", task.ID)
	m.commit(Change{Op: OpUpdated, Kind: model.KindTask, ID: task.ID})
	return true
}

// DeleteTask removes the task and reports whether it existed.
func (m *Manager) DeleteTask(id int64) bool {
	m.mu.Lock()
	if !m.tasks.remove(id) {
		m.mu.Unlock()
		return false
	}
	m.history.Remove(id)
	m.logger.Debug("task deleted", "id", id)
	m.commit(Change{Op: OpDeleted, Kind: model.KindTask, ID: id})
	return true
}

func (m *Manager) DeleteAllTasks() {
	m.mu.Lock()
	for _, id := range m.tasks.ids() {
		m.history.Remove(id)
	}
	m.tasks.clear()
	m.logger.Debug("all tasks deleted")
	m.commit(Change{Op: OpCleared, Kind: model.KindTask})
}
