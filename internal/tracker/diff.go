package tracker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

// ChangeRecord is one entity level difference between two snapshots.
type ChangeRecord struct {
	Kind      model.Kind
	EntityID  int64
	EventType string
	Details   string
}

// Diff lists the entities created, updated and deleted going from before to
// after. Entities that did not change are skipped. Epic fields derived from
// subtasks are compared like any other field.
func Diff(before, after Snapshot) []ChangeRecord {
	previous := indexSnapshot(before)
	current := indexSnapshot(after)

	var records []ChangeRecord
	for _, id := range current.order {
		now := current.entities[id]
		then, existed := previous.entities[id]
		switch {
		case !existed:
			records = append(records, ChangeRecord{
				Kind:      now.Kind(),
				EntityID:  id,
				EventType: "created",
				Details:   formatCreatedDetails(now),
			})
		case then.Kind() != now.Kind():
			records = append(records,
				ChangeRecord{Kind: then.Kind(), EntityID: id, EventType: "deleted", Details: formatDeletedDetails(then)},
				ChangeRecord{Kind: now.Kind(), EntityID: id, EventType: "created", Details: formatCreatedDetails(now)},
			)
		default:
			if details, changed := formatEntityDiff(then, now); changed {
				records = append(records, ChangeRecord{
					Kind:      now.Kind(),
					EntityID:  id,
					EventType: "updated",
					Details:   details,
				})
			}
		}
	}

	for _, id := range previous.order {
		if _, ok := current.entities[id]; ok {
			continue
		}
		then := previous.entities[id]
		records = append(records, ChangeRecord{
			Kind:      then.Kind(),
			EntityID:  id,
			EventType: "deleted",
			Details:   formatDeletedDetails(then),
		})
	}

	return records
}

type snapshotIndex struct {
	entities map[int64]model.Entity
	order    []int64
}

func indexSnapshot(snap Snapshot) snapshotIndex {
	index := snapshotIndex{entities: make(map[int64]model.Entity)}
	add := func(entity model.Entity) {
		if _, ok := index.entities[entity.EntityID()]; !ok {
			index.order = append(index.order, entity.EntityID())
		}
		index.entities[entity.EntityID()] = entity
	}
	for _, task := range snap.Tasks {
		add(task)
	}
	for _, epic := range snap.Epics {
		add(epic)
	}
	for _, subtask := range snap.Subtasks {
		add(subtask)
	}
	return index
}

func formatCreatedDetails(entity model.Entity) string {
	return "created: " + formatEntityFields(entity)
}

func formatDeletedDetails(entity model.Entity) string {
	return "deleted: " + formatEntityFields(entity)
}

func formatEntityFields(entity model.Entity) string {
	task := entity.Common()
	details := fmt.Sprintf("name='%s' status=%s duration=%s start=%s",
		task.Name, task.Status, formatMinutes(task.Duration), formatTime(task.StartTime))
	switch value := entity.(type) {
	case model.Subtask:
		details += " epic=" + strconv.FormatInt(value.EpicID, 10)
	case model.Epic:
		details += " subtasks=" + formatIDs(value.SubtaskIDs)
	}
	return details
}

func formatEntityDiff(before, after model.Entity) (string, bool) {
	then, now := before.Common(), after.Common()

	changes := []string{}
	if then.Name != now.Name {
		changes = append(changes, formatChange("name", then.Name, now.Name))
	}
	if then.Description != now.Description {
		changes = append(changes, formatChange("description", then.Description, now.Description))
	}
	if then.Status != now.Status {
		changes = append(changes, formatChange("status", string(then.Status), string(now.Status)))
	}
	if then.Duration != now.Duration {
		changes = append(changes, formatChange("duration", formatMinutes(then.Duration), formatMinutes(now.Duration)))
	}
	if formatTime(then.StartTime) != formatTime(now.StartTime) {
		changes = append(changes, formatChange("start", formatTime(then.StartTime), formatTime(now.StartTime)))
	}

	switch value := after.(type) {
	case model.Subtask:
		previous := before.(model.Subtask)
		if previous.EpicID != value.EpicID {
			changes = append(changes, formatChange("epic", strconv.FormatInt(previous.EpicID, 10), strconv.FormatInt(value.EpicID, 10)))
		}
	case model.Epic:
		previous := before.(model.Epic)
		if formatIDs(previous.SubtaskIDs) != formatIDs(value.SubtaskIDs) {
			changes = append(changes, formatChange("subtasks", formatIDs(previous.SubtaskIDs), formatIDs(value.SubtaskIDs)))
		}
	}

	if len(changes) == 0 {
		return "", false
	}
	return "updated: " + strings.Join(changes, "; "), true
}

func formatChange(field, before, after string) string {
	return fmt.Sprintf("%s: '%s' -> '%s'", field, valueOrNone(before), valueOrNone(after))
}

func valueOrNone(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "none"
	}
	return trimmed
}

func formatMinutes(duration time.Duration) string {
	return fmt.Sprintf("%dm", int64(duration/time.Minute))
}

func formatTime(value *time.Time) string {
	if value == nil {
		return "none"
	}
	return value.Format("2006-01-02 15:04")
}

func formatIDs(ids []int64) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
