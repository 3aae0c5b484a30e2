package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

func at(year int, month time.Month, day, hour, minute int) *time.Time {
	value := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	return &value
}

func newTask(name string) model.Task {
	return model.Task{
		Name:        name,
		Description: "Description 1",
		Status:      model.StatusNew,
		Duration:    90 * time.Minute,
		StartTime:   at(2023, time.February, 1, 15, 0),
	}
}

func newEpic(name string) model.Epic {
	return model.Epic{Task: model.Task{Name: name, Description: "Description of epic", Status: model.StatusNew}}
}

func newSubtask(epicID int64, status model.Status) model.Subtask {
	return model.Subtask{
		Task: model.Task{
			Name:        "Subtask of epic",
			Description: "Description 1",
			Status:      status,
			Duration:    60 * time.Minute,
			StartTime:   at(2023, time.September, 1, 15, 0),
		},
		EpicID: epicID,
	}
}

func mustAddSubtask(t *testing.T, m *Manager, subtask model.Subtask) int64 {
	t.Helper()
	id, err := m.AddSubtask(subtask)
	require.NoError(t, err)
	return id
}

func TestAddTaskAssignsIDAndStoresByValue(t *testing.T) {
	m := New()

	task := model.Task{Name: "T1"}
	id := m.AddTask(task)
	require.Equal(t, int64(1), id)

	saved, ok := m.Task(id)
	require.True(t, ok)

	task.ID = id
	task.Status = model.StatusNew
	assert.Equal(t, task, saved)
	assert.Equal(t, []model.Task{task}, m.Tasks())
}

func TestIDsAreDistinctAndIncreasingAcrossKinds(t *testing.T) {
	m := New()

	var ids []int64
	ids = append(ids, m.AddTask(newTask("a")))
	epicID := m.AddEpic(newEpic("e"))
	ids = append(ids, epicID)
	ids = append(ids, mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew)))
	ids = append(ids, m.AddTask(newTask("b")))
	ids = append(ids, m.AddEpic(newEpic("f")))

	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
	assert.Equal(t, int64(len(ids)+1), m.NextID())
}

func TestFreedIDsAreNotReused(t *testing.T) {
	m := New()

	first := m.AddTask(newTask("a"))
	require.True(t, m.DeleteTask(first))

	second := m.AddTask(newTask("b"))
	assert.Equal(t, first+1, second)
}

func TestPresetIDIsKeptAndAdvancesCounter(t *testing.T) {
	m := New()

	task := newTask("restored")
	task.ID = 41
	require.Equal(t, int64(41), m.AddTask(task))
	assert.Equal(t, int64(42), m.AddTask(newTask("next")))
}

func TestListsKeepInsertionOrderAcrossUpdates(t *testing.T) {
	m := New()

	first := m.AddTask(newTask("first"))
	m.AddTask(newTask("second"))
	m.AddTask(newTask("third"))

	updated := newTask("first, renamed")
	updated.ID = first
	require.True(t, m.UpdateTask(updated))

	names := []string{}
	for _, task := range m.Tasks() {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"first, renamed", "second", "third"}, names)
}

func TestGetUnknownIDIsAbsent(t *testing.T) {
	m := New()
	m.AddTask(newTask("a"))

	_, ok := m.Task(567)
	assert.False(t, ok)
	_, ok = m.Epic(567)
	assert.False(t, ok)
	_, ok = m.Subtask(567)
	assert.False(t, ok)
	_, ok = m.Lookup(567)
	assert.False(t, ok)
	assert.Empty(t, m.History())
}

func TestEmptyListsAreEmpty(t *testing.T) {
	m := New()
	assert.Empty(t, m.Tasks())
	assert.Empty(t, m.Epics())
	assert.Empty(t, m.Subtasks())
	assert.Empty(t, m.History())
}

func TestReturnedValuesAreCopies(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("e"))
	mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew))

	epic, ok := m.Epic(epicID)
	require.True(t, ok)
	epic.SubtaskIDs[0] = 999
	*epic.StartTime = time.Time{}

	again, ok := m.Epic(epicID)
	require.True(t, ok)
	assert.NotEqual(t, int64(999), again.SubtaskIDs[0])
	assert.Equal(t, *at(2023, time.September, 1, 15, 0), *again.StartTime)
}

func TestEmptyEpicIsNewWithoutSchedule(t *testing.T) {
	m := New()

	epic := newEpic("E")
	epic.ID = 10
	epic.Status = model.StatusDone
	epic.Duration = time.Hour
	epic.SubtaskIDs = []int64{3, 4}
	require.Equal(t, int64(10), m.AddEpic(epic))

	saved, ok := m.Epic(10)
	require.True(t, ok)
	assert.Equal(t, model.StatusNew, saved.Status)
	assert.Nil(t, saved.StartTime)
	assert.Nil(t, saved.EndTime())
	assert.Zero(t, saved.Duration)
	assert.Empty(t, saved.SubtaskIDs)
}

func TestAddSubtaskLinksEpicAndRecomputes(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("E"))

	done := newSubtask(epicID, model.StatusDone)
	done.StartTime = at(2023, time.September, 1, 10, 0)
	done.Duration = 30 * time.Minute
	s1 := mustAddSubtask(t, m, done)

	fresh := newSubtask(epicID, model.StatusNew)
	fresh.StartTime = at(2023, time.September, 1, 12, 0)
	fresh.Duration = 45 * time.Minute
	s2 := mustAddSubtask(t, m, fresh)

	epic, ok := m.Epic(epicID)
	require.True(t, ok)
	assert.Equal(t, []int64{s1, s2}, epic.SubtaskIDs)
	assert.Equal(t, model.StatusInProgress, epic.Status)
	assert.Equal(t, *at(2023, time.September, 1, 10, 0), *epic.StartTime)
	assert.Equal(t, *at(2023, time.September, 1, 12, 45), *epic.EndTime())
	assert.Equal(t, 165*time.Minute, epic.Duration)
}

func TestAddSubtaskRejectsUnknownEpic(t *testing.T) {
	m := New()
	next := m.NextID()

	_, err := m.AddSubtask(newSubtask(77, model.StatusNew))
	require.ErrorIs(t, err, ErrEpicNotFound)

	assert.Empty(t, m.Subtasks())
	assert.Equal(t, next, m.NextID())
}

func TestEpicStatusFollowsSubtasks(t *testing.T) {
	tests := []struct {
		name     string
		statuses []model.Status
		want     model.Status
	}{
		{name: "no subtasks", want: model.StatusNew},
		{name: "all new", statuses: []model.Status{model.StatusNew, model.StatusNew}, want: model.StatusNew},
		{name: "all done", statuses: []model.Status{model.StatusDone, model.StatusDone}, want: model.StatusDone},
		{name: "new and done", statuses: []model.Status{model.StatusDone, model.StatusNew}, want: model.StatusInProgress},
		{name: "one in progress", statuses: []model.Status{model.StatusInProgress}, want: model.StatusInProgress},
		{name: "in progress and done", statuses: []model.Status{model.StatusDone, model.StatusInProgress}, want: model.StatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			epicID := m.AddEpic(newEpic("E"))
			for _, status := range tt.statuses {
				mustAddSubtask(t, m, newSubtask(epicID, status))
			}
			epic, ok := m.Epic(epicID)
			require.True(t, ok)
			assert.Equal(t, tt.want, epic.Status)
		})
	}
}

func TestUpdateSubtaskRecomputesEpic(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("E"))
	subtaskID := mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew))

	done := newSubtask(0, model.StatusDone)
	done.ID = subtaskID
	updated, err := m.UpdateSubtask(done)
	require.NoError(t, err)
	require.True(t, updated)

	stored, ok := m.Subtask(subtaskID)
	require.True(t, ok)
	assert.Equal(t, epicID, stored.EpicID)

	epic, _ := m.Epic(epicID)
	assert.Equal(t, model.StatusDone, epic.Status)
}

func TestUpdateSubtaskMovesBetweenEpics(t *testing.T) {
	m := New()
	from := m.AddEpic(newEpic("from"))
	to := m.AddEpic(newEpic("to"))
	subtaskID := mustAddSubtask(t, m, newSubtask(from, model.StatusDone))

	moved := newSubtask(to, model.StatusDone)
	moved.ID = subtaskID
	updated, err := m.UpdateSubtask(moved)
	require.NoError(t, err)
	require.True(t, updated)

	source, _ := m.Epic(from)
	target, _ := m.Epic(to)
	assert.Empty(t, source.SubtaskIDs)
	assert.Equal(t, model.StatusNew, source.Status)
	assert.Equal(t, []int64{subtaskID}, target.SubtaskIDs)
	assert.Equal(t, model.StatusDone, target.Status)
}

func TestUpdateSubtaskToUnknownEpicChangesNothing(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("E"))
	subtaskID := mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew))
	before := m.Snapshot()

	moved := newSubtask(404, model.StatusDone)
	moved.ID = subtaskID
	updated, err := m.UpdateSubtask(moved)
	require.ErrorIs(t, err, ErrEpicNotFound)
	assert.False(t, updated)
	assert.Equal(t, before, m.Snapshot())
}

func TestUpdateUnknownIDIsNoOp(t *testing.T) {
	m := New()
	m.AddTask(newTask("a"))
	before := m.Snapshot()

	task := newTask("ghost")
	task.ID = 99
	assert.False(t, m.UpdateTask(task))

	epic := newEpic("ghost")
	epic.ID = 99
	assert.False(t, m.UpdateEpic(epic))

	subtask := newSubtask(0, model.StatusDone)
	subtask.ID = 99
	updated, err := m.UpdateSubtask(subtask)
	require.NoError(t, err)
	assert.False(t, updated)

	assert.Equal(t, before, m.Snapshot())
}

func TestUpdateEpicKeepsDerivedState(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("E"))
	subtaskID := mustAddSubtask(t, m, newSubtask(epicID, model.StatusDone))
	before, _ := m.Epic(epicID)

	replacement := model.Epic{Task: model.Task{ID: epicID, Name: "UPD name", Description: "UPD description", Status: model.StatusNew}}
	require.True(t, m.UpdateEpic(replacement))

	after, ok := m.Epic(epicID)
	require.True(t, ok)
	assert.Equal(t, "UPD name", after.Name)
	assert.Equal(t, "UPD description", after.Description)
	assert.Equal(t, model.StatusDone, after.Status)
	assert.Equal(t, []int64{subtaskID}, after.SubtaskIDs)
	assert.Equal(t, before.StartTime, after.StartTime)
	assert.Equal(t, before.Duration, after.Duration)
}

func TestDeleteTask(t *testing.T) {
	m := New()
	id := m.AddTask(newTask("a"))

	assert.True(t, m.DeleteTask(id))
	_, ok := m.Task(id)
	assert.False(t, ok)
	assert.Empty(t, m.Tasks())
}

func TestDeleteUnknownIDReportsFalse(t *testing.T) {
	m := New()
	taskID := m.AddTask(newTask("a"))
	epicID := m.AddEpic(newEpic("E"))
	subtaskID := mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew))

	assert.False(t, m.DeleteTask(-1))
	assert.False(t, m.DeleteSubtask(-1))
	assert.False(t, m.DeleteEpic(-1))
	assert.False(t, m.DeleteSubtask(taskID))
	assert.False(t, m.DeleteEpic(subtaskID))

	assert.Len(t, m.Tasks(), 1)
	assert.Len(t, m.Subtasks(), 1)
	epic, _ := m.Epic(epicID)
	assert.Equal(t, []int64{subtaskID}, epic.SubtaskIDs)
}

func TestDeleteSubtaskUnlinksAndRecomputes(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("E"))
	s1 := mustAddSubtask(t, m, newSubtask(epicID, model.StatusDone))
	s2 := mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew))

	require.True(t, m.DeleteSubtask(s2))
	epic, _ := m.Epic(epicID)
	assert.Equal(t, []int64{s1}, epic.SubtaskIDs)
	assert.Equal(t, model.StatusDone, epic.Status)

	require.True(t, m.DeleteSubtask(s1))
	epic, _ = m.Epic(epicID)
	assert.Empty(t, epic.SubtaskIDs)
	assert.Equal(t, model.StatusNew, epic.Status)
	assert.Nil(t, epic.StartTime)
	assert.Zero(t, epic.Duration)
}

func TestDeleteEpicCascades(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("E"))
	other := m.AddEpic(newEpic("other"))
	s1 := mustAddSubtask(t, m, newSubtask(epicID, model.StatusDone))
	s2 := mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew))
	kept := mustAddSubtask(t, m, newSubtask(other, model.StatusNew))

	require.True(t, m.DeleteEpic(epicID))

	_, ok := m.Epic(epicID)
	assert.False(t, ok)
	_, ok = m.Subtask(s1)
	assert.False(t, ok)
	_, ok = m.Subtask(s2)
	assert.False(t, ok)
	_, ok = m.Subtask(kept)
	assert.True(t, ok)
	assert.Len(t, m.Epics(), 1)
}

func TestDeleteAll(t *testing.T) {
	t.Run("tasks", func(t *testing.T) {
		m := New()
		m.AddTask(newTask("a"))
		m.AddTask(newTask("b"))
		m.DeleteAllTasks()
		assert.Empty(t, m.Tasks())
	})

	t.Run("tasks when empty", func(t *testing.T) {
		m := New()
		m.DeleteAllTasks()
		assert.Empty(t, m.Tasks())
	})

	t.Run("subtasks resets epics", func(t *testing.T) {
		m := New()
		epicID := m.AddEpic(newEpic("E"))
		mustAddSubtask(t, m, newSubtask(epicID, model.StatusDone))
		m.DeleteAllSubtasks()

		assert.Empty(t, m.Subtasks())
		epic, _ := m.Epic(epicID)
		assert.Empty(t, epic.SubtaskIDs)
		assert.Equal(t, model.StatusNew, epic.Status)
		assert.Nil(t, epic.StartTime)
	})

	t.Run("epics cascade", func(t *testing.T) {
		m := New()
		epicID := m.AddEpic(newEpic("E"))
		mustAddSubtask(t, m, newSubtask(epicID, model.StatusDone))
		m.AddEpic(newEpic("F"))
		m.DeleteAllEpics()

		assert.Empty(t, m.Epics())
		assert.Empty(t, m.Subtasks())
	})
}

func TestEpicSubtasks(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("E"))
	s1 := mustAddSubtask(t, m, newSubtask(epicID, model.StatusDone))

	subtasks, ok := m.EpicSubtasks(epicID)
	require.True(t, ok)
	require.Len(t, subtasks, 1)
	assert.Equal(t, s1, subtasks[0].ID)
	assert.Empty(t, m.History())

	_, ok = m.EpicSubtasks(s1)
	assert.False(t, ok)
}

func TestObserversSeeChangesAfterUnlock(t *testing.T) {
	m := New()

	var changes []Change
	m.Observe(func(change Change) {
		changes = append(changes, change)
		// calling back in must not deadlock
		_ = m.Snapshot()
	})

	epicID := m.AddEpic(newEpic("E"))
	subtaskID := mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew))
	m.Epic(epicID)
	m.DeleteEpic(epicID)
	m.DeleteTask(12345)

	assert.Equal(t, []Change{
		{Op: OpCreated, Kind: model.KindEpic, ID: epicID},
		{Op: OpCreated, Kind: model.KindSubtask, ID: subtaskID},
		{Op: OpViewed, Kind: model.KindEpic, ID: epicID},
		{Op: OpDeleted, Kind: model.KindSubtask, ID: subtaskID},
		{Op: OpDeleted, Kind: model.KindEpic, ID: epicID},
	}, changes)
}

func TestObserveCommitsGroupsCascade(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("E"))
	s1 := mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew))
	s2 := mustAddSubtask(t, m, newSubtask(epicID, model.StatusDone))

	var commits [][]Change
	m.ObserveCommits(func(changes []Change) {
		commits = append(commits, changes)
	})

	m.DeleteEpic(epicID)
	m.DeleteEpic(epicID)

	require.Len(t, commits, 1)
	assert.Equal(t, []Change{
		{Op: OpDeleted, Kind: model.KindSubtask, ID: s1},
		{Op: OpDeleted, Kind: model.KindSubtask, ID: s2},
		{Op: OpDeleted, Kind: model.KindEpic, ID: epicID},
	}, commits[0])
}

func historyIDs(m *Manager) []int64 {
	ids := []int64{}
	for _, entity := range m.History() {
		ids = append(ids, entity.EntityID())
	}
	return ids
}

func TestHistoryRecordsViewsWithoutDuplicates(t *testing.T) {
	m := New()
	a := m.AddTask(newTask("A"))
	b := m.AddEpic(newEpic("B"))
	c := mustAddSubtask(t, m, newSubtask(b, model.StatusNew))

	m.Task(a)
	m.Epic(b)
	m.Task(a)
	m.Subtask(c)

	assert.Equal(t, []int64{b, a, c}, historyIDs(m))
}

func TestHistoryIsBounded(t *testing.T) {
	m := New()
	var ids []int64
	for i := 0; i < 11; i++ {
		id := m.AddTask(newTask("t"))
		ids = append(ids, id)
		m.Task(id)
	}

	assert.Equal(t, ids[1:], historyIDs(m))
}

func TestHistoryLimitOption(t *testing.T) {
	m := New(WithHistoryLimit(2))
	for i := 0; i < 3; i++ {
		m.Lookup(m.AddTask(newTask("t")))
	}
	assert.Equal(t, []int64{2, 3}, historyIDs(m))
}

func TestHistoryFollowsUpdatesAndDeletes(t *testing.T) {
	m := New()
	taskID := m.AddTask(newTask("before"))
	epicID := m.AddEpic(newEpic("E"))
	subtaskID := mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew))
	m.Task(taskID)
	m.Subtask(subtaskID)
	m.Epic(epicID)

	renamed := newTask("after")
	renamed.ID = taskID
	m.UpdateTask(renamed)
	history := m.History()
	require.Len(t, history, 3)
	assert.Equal(t, "after", history[0].Common().Name)

	m.DeleteEpic(epicID)
	assert.Equal(t, []int64{taskID}, historyIDs(m))

	m.DeleteAllTasks()
	assert.Empty(t, m.History())
}

func TestLookupFindsAnyKind(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("E"))
	subtaskID := mustAddSubtask(t, m, newSubtask(epicID, model.StatusNew))

	entity, ok := m.Lookup(subtaskID)
	require.True(t, ok)
	subtask, isSubtask := entity.(model.Subtask)
	require.True(t, isSubtask)
	assert.Equal(t, epicID, subtask.EpicID)

	entity, ok = m.Lookup(epicID)
	require.True(t, ok)
	assert.Equal(t, model.KindEpic, entity.Kind())
	assert.Equal(t, []int64{subtaskID, epicID}, historyIDs(m))
}

func TestPeekLeavesHistoryAlone(t *testing.T) {
	m := New()
	id := m.AddTask(newTask("A"))

	entity, ok := m.Peek(id)
	require.True(t, ok)
	assert.Equal(t, "A", entity.Common().Name)
	assert.Empty(t, m.History())

	_, ok = m.Peek(id + 1)
	assert.False(t, ok)
}
