package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

type epicProgress struct {
	Done  int
	Total int
}

func progressByEpic(subtasks []model.Subtask) map[int64]epicProgress {
	result := make(map[int64]epicProgress)
	for _, subtask := range subtasks {
		entry := result[subtask.EpicID]
		entry.Total++
		if subtask.Status == model.StatusDone {
			entry.Done++
		}
		result[subtask.EpicID] = entry
	}
	return result
}

func formatSummary(entity model.Entity) string {
	task := entity.Common()
	return fmt.Sprintf("#%d %s | %s | %s", task.ID, task.Name, task.Status, formatDuration(task.Duration))
}

func formatEpicSummary(epic model.Epic, progress epicProgress) string {
	return fmt.Sprintf("%s | %d/%d done", formatSummary(epic), progress.Done, progress.Total)
}

func formatDuration(duration time.Duration) string {
	minutes := int64(duration / time.Minute)
	if minutes >= 60 {
		return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

func formatWhen(value *time.Time) string {
	if value == nil {
		return "n/a"
	}
	return value.Format(startLayout)
}

func detailLines(entity model.Entity) []string {
	task := entity.Common()
	end := task.EndTime()
	if epic, ok := entity.(model.Epic); ok {
		end = epic.EndTime()
	}

	lines := []string{
		task.Name,
		fmt.Sprintf("Kind: %s #%d", strings.ToLower(string(entity.Kind())), task.ID),
		fmt.Sprintf("Status: %s", task.Status),
		fmt.Sprintf("Duration: %s", formatDuration(task.Duration)),
		fmt.Sprintf("Start: %s", formatWhen(task.StartTime)),
		fmt.Sprintf("End: %s", formatWhen(end)),
	}

	switch value := entity.(type) {
	case model.Subtask:
		lines = append(lines, fmt.Sprintf("Epic: #%d", value.EpicID))
	case model.Epic:
		ids := make([]string, 0, len(value.SubtaskIDs))
		for _, id := range value.SubtaskIDs {
			ids = append(ids, fmt.Sprintf("#%d", id))
		}
		if len(ids) == 0 {
			ids = append(ids, "none")
		}
		lines = append(lines, fmt.Sprintf("Subtasks: %s", strings.Join(ids, " ")))
	}

	return append(lines, "", task.Description)
}
