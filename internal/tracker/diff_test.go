package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

func TestDiffReportsCreatedUpdatedDeleted(t *testing.T) {
	m := New()
	keep := m.AddTask(newTask("keep"))
	drop := m.AddTask(newTask("drop"))
	before := m.Snapshot()

	renamed := newTask("kept")
	renamed.ID = keep
	renamed.Status = model.StatusDone
	m.UpdateTask(renamed)
	m.DeleteTask(drop)
	epicID := m.AddEpic(newEpic("E"))

	records := Diff(before, m.Snapshot())
	require.Len(t, records, 3)

	assert.Equal(t, ChangeRecord{
		Kind:      model.KindTask,
		EntityID:  keep,
		EventType: "updated",
		Details:   "updated: name: 'keep' -> 'kept'; status: 'NEW' -> 'DONE'",
	}, records[0])
	assert.Equal(t, ChangeRecord{
		Kind:      model.KindEpic,
		EntityID:  epicID,
		EventType: "created",
		Details:   "created: name='E' status=NEW duration=0m start=none subtasks=none",
	}, records[1])
	assert.Equal(t, ChangeRecord{
		Kind:      model.KindTask,
		EntityID:  drop,
		EventType: "deleted",
		Details:   "deleted: name='drop' status=NEW duration=90m start=2023-02-01 15:00",
	}, records[2])
}

func TestDiffIncludesDerivedEpicChanges(t *testing.T) {
	m := New()
	epicID := m.AddEpic(newEpic("E"))
	before := m.Snapshot()

	subtask := newSubtask(epicID, model.StatusDone)
	subtask.Duration = 30 * time.Minute
	subtaskID := mustAddSubtask(t, m, subtask)

	records := Diff(before, m.Snapshot())
	require.Len(t, records, 2)
	assert.Equal(t, "updated", records[0].EventType)
	assert.Equal(t, epicID, records[0].EntityID)
	assert.Equal(t,
		"updated: status: 'NEW' -> 'DONE'; duration: '0m' -> '30m'; start: 'none' -> '2023-09-01 15:00'; subtasks: 'none' -> '2'",
		records[0].Details)
	assert.Equal(t, subtaskID, records[1].EntityID)
	assert.Equal(t, "created: name='Subtask of epic' status=DONE duration=30m start=2023-09-01 15:00 epic=1", records[1].Details)
}

func TestDiffOfIdenticalSnapshotsIsEmpty(t *testing.T) {
	m := populated(t)
	assert.Empty(t, Diff(m.Snapshot(), m.Snapshot()))
}
