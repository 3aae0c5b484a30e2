// Package model defines the tracked entities: tasks, epics and subtasks.
package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the workflow state of an entity.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists the statuses in workflow order.
var Statuses = []Status{StatusNew, StatusInProgress, StatusDone}

// ParseStatus accepts any letter case and "-" or " " in place of "_".
func ParseStatus(value string) (Status, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch Status(normalized) {
	case StatusNew, StatusInProgress, StatusDone:
		return Status(normalized), nil
	case "":
		return StatusNew, nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// Kind names an entity type. It is also the type column of the file format.
type Kind string

const (
	KindTask    Kind = "TASK"
	KindEpic    Kind = "EPIC"
	KindSubtask Kind = "SUBTASK"
)

// ParseKind accepts any letter case and a plural form such as "epics".
func ParseKind(value string) (Kind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.TrimSuffix(normalized, "S")
	switch Kind(normalized) {
	case KindTask, KindEpic, KindSubtask:
		return Kind(normalized), nil
	}
	return "", fmt.Errorf("unknown kind %q", value)
}

// Entity is implemented by Task, Epic and Subtask.
type Entity interface {
	EntityID() int64
	Kind() Kind
	// Common returns the fields shared by every kind.
	Common() Task
}

// Task is a standalone unit of work. Epic and Subtask embed it.
type Task struct {
	ID          int64
	Name        string
	Description string
	Status      Status
	Duration    time.Duration
	StartTime   *time.Time
}

func (t Task) EntityID() int64 { return t.ID }
func (t Task) Kind() Kind      { return KindTask }
func (t Task) Common() Task    { return t }

// EndTime is StartTime plus Duration, nil without a start time.
func (t Task) EndTime() *time.Time {
	if t.StartTime == nil {
		return nil
	}
	end := t.StartTime.Add(t.Duration)
	return &end
}

// Clone returns a copy that shares no memory with t.
func (t Task) Clone() Task {
	t.StartTime = cloneTime(t.StartTime)
	return t
}

// Subtask is a task that belongs to the epic with id EpicID.
type Subtask struct {
	Task
	EpicID int64
}

func (s Subtask) Kind() Kind { return KindSubtask }

func (s Subtask) Clone() Subtask {
	s.Task = s.Task.Clone()
	return s
}

// Epic status, start time, duration and Finish are derived from its subtasks
// by the task manager. Values set by callers are not kept.
type Epic struct {
	Task
	SubtaskIDs []int64
	Finish     *time.Time
}

func (e Epic) Kind() Kind { return KindEpic }

// EndTime is the derived Finish.
func (e Epic) EndTime() *time.Time { return e.Finish }

// Clone returns a copy that shares no memory with e.
func (e Epic) Clone() Epic {
	e.Task = e.Task.Clone()
	e.Finish = cloneTime(e.Finish)
	e.SubtaskIDs = slices.Clone(e.SubtaskIDs)
	if e.SubtaskIDs == nil {
		e.SubtaskIDs = []int64{}
	}
	return e
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
