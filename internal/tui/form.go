package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

type formField struct {
	Label string
	Value string
}

const (
	fieldName = iota
	fieldDescription
	fieldStatus
	fieldDuration
	fieldStart
	fieldEpic
)

const startLayout = "2006-01-02 15:04"

// buildFormFields lays out the editor for kind, filled from entity when it
// is not nil. Epics only expose name and description; the rest is derived.
func buildFormFields(kind model.Kind, entity model.Entity) []formField {
	fields := []formField{
		{Label: "Name"},
		{Label: "Description"},
		{Label: "Status (space/←→)"},
		{Label: "Duration (minutes)"},
		{Label: "Start (YYYY-MM-DD HH:MM)"},
		{Label: "Epic id"},
	}
	switch kind {
	case model.KindEpic:
		fields = fields[:fieldStatus]
	case model.KindTask:
		fields = fields[:fieldEpic]
	}

	if entity == nil {
		if kind != model.KindEpic {
			fields[fieldStatus].Value = string(model.StatusNew)
			fields[fieldDuration].Value = "0"
		}
		return fields
	}

	task := entity.Common()
	fields[fieldName].Value = task.Name
	fields[fieldDescription].Value = task.Description
	if kind == model.KindEpic {
		return fields
	}

	fields[fieldStatus].Value = string(task.Status)
	fields[fieldDuration].Value = strconv.FormatInt(int64(task.Duration/time.Minute), 10)
	if task.StartTime != nil {
		fields[fieldStart].Value = task.StartTime.Format(startLayout)
	}
	if subtask, ok := entity.(model.Subtask); ok {
		fields[fieldEpic].Value = strconv.FormatInt(subtask.EpicID, 10)
	}
	return fields
}

// parseFormFields reads the editor back. The returned epic id is zero when
// the form has no epic field.
func parseFormFields(fields []formField) (model.Task, int64, error) {
	task := model.Task{
		Name:        strings.TrimSpace(fields[fieldName].Value),
		Description: strings.TrimSpace(fields[fieldDescription].Value),
	}
	if task.Name == "" {
		return model.Task{}, 0, fmt.Errorf("name is required")
	}
	if len(fields) <= fieldStatus {
		return task, 0, nil
	}

	status, err := model.ParseStatus(fields[fieldStatus].Value)
	if err != nil {
		return model.Task{}, 0, err
	}
	task.Status = status

	duration, err := parseDuration(fields[fieldDuration].Value)
	if err != nil {
		return model.Task{}, 0, err
	}
	task.Duration = duration

	start, err := parseStart(fields[fieldStart].Value)
	if err != nil {
		return model.Task{}, 0, err
	}
	task.StartTime = start

	if len(fields) <= fieldEpic {
		return task, 0, nil
	}
	epicID, err := parseEpicID(fields[fieldEpic].Value)
	if err != nil {
		return model.Task{}, 0, err
	}
	return task, epicID, nil
}

func parseDuration(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	minutes, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("invalid duration")
	}
	return time.Duration(minutes) * time.Minute, nil
}

func parseStart(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(startLayout, trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid start time")
	}
	return &parsed, nil
}

func parseEpicID(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid epic id")
	}
	return id, nil
}
