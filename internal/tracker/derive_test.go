package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

func TestEpicBoundsClearedByUnscheduledSubtask(t *testing.T) {
	scheduled := model.Subtask{Task: model.Task{StartTime: at(2024, time.March, 4, 9, 0), Duration: 2 * time.Hour}}
	unscheduled := model.Subtask{Task: model.Task{Duration: 5 * time.Hour}}

	for _, subtasks := range [][]model.Subtask{
		{unscheduled, scheduled},
		{scheduled, unscheduled},
		nil,
	} {
		start, finish := epicBounds(subtasks)
		assert.Nil(t, start)
		assert.Nil(t, finish)
	}

	epic := model.Epic{Task: model.Task{Duration: time.Hour}}
	deriveEpic(&epic, []model.Subtask{scheduled, unscheduled})
	assert.Nil(t, epic.StartTime)
	assert.Nil(t, epic.Finish)
	assert.Zero(t, epic.Duration)
}

func TestEpicBoundsUseTrueExtremes(t *testing.T) {
	// The latest end does not belong to the latest start.
	long := model.Subtask{Task: model.Task{StartTime: at(2024, time.March, 4, 8, 0), Duration: 10 * time.Hour}}
	late := model.Subtask{Task: model.Task{StartTime: at(2024, time.March, 4, 12, 0), Duration: time.Hour}}
	early := model.Subtask{Task: model.Task{StartTime: at(2024, time.March, 4, 7, 30), Duration: 0}}

	start, finish := epicBounds([]model.Subtask{late, long, early})
	assert.Equal(t, *at(2024, time.March, 4, 7, 30), *start)
	assert.Equal(t, *at(2024, time.March, 4, 18, 0), *finish)
}

func TestDeriveEpicWithoutScheduleHasZeroDuration(t *testing.T) {
	epic := model.Epic{Task: model.Task{Duration: time.Hour, Status: model.StatusDone}}
	deriveEpic(&epic, []model.Subtask{{Task: model.Task{Status: model.StatusNew}}})

	assert.Equal(t, model.StatusNew, epic.Status)
	assert.Nil(t, epic.StartTime)
	assert.Nil(t, epic.Finish)
	assert.Zero(t, epic.Duration)
}

func TestDeriveEpicTruncatesToMinutes(t *testing.T) {
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	subtask := model.Subtask{Task: model.Task{StartTime: &start, Duration: 90*time.Second + 59*time.Second}}

	var epic model.Epic
	deriveEpic(&epic, []model.Subtask{subtask})
	assert.Equal(t, 2*time.Minute, epic.Duration)
}
