package tracker

import (
	"time"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

// deriveEpic overwrites the epic's status, start, finish and duration from
// the given subtasks.
func deriveEpic(epic *model.Epic, subtasks []model.Subtask) {
	epic.Status = epicStatus(subtasks)
	epic.StartTime, epic.Finish = epicBounds(subtasks)
	epic.Duration = 0
	if epic.StartTime != nil && epic.Finish != nil {
		epic.Duration = epic.Finish.Sub(*epic.StartTime).Truncate(time.Minute)
	}
}

func epicStatus(subtasks []model.Subtask) model.Status {
	if len(subtasks) == 0 {
		return model.StatusNew
	}

	allNew, allDone := true, true
	for _, subtask := range subtasks {
		if subtask.Status != model.StatusNew {
			allNew = false
		}
		if subtask.Status != model.StatusDone {
			allDone = false
		}
	}

	switch {
	case allNew:
		return model.StatusNew
	case allDone:
		return model.StatusDone
	default:
		return model.StatusInProgress
	}
}

// epicBounds returns the earliest start and latest end of the subtasks.
// Both are nil unless every subtask has a start time.
func epicBounds(subtasks []model.Subtask) (*time.Time, *time.Time) {
	var start, finish *time.Time
	for _, subtask := range subtasks {
		if subtask.StartTime == nil {
			return nil, nil
		}
		if start == nil || subtask.StartTime.Before(*start) {
			value := *subtask.StartTime
			start = &value
		}
		if end := subtask.EndTime(); finish == nil || end.After(*finish) {
			finish = end
		}
	}
	return start, finish
}
