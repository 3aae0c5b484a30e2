// Package filestore persists a tracker snapshot as a CSV file with one
// record per line.
//
// Entity records follow the header
//
//	id,type,name,status,description,duration,start,epic
//
// where type is the kind tag, duration is in whole minutes, start is RFC 3339
// or empty and epic is set for subtasks only. Tasks come first, then epics,
// then subtasks. Each epic with subtasks then gets a "subtasks,<epic>,<id>,..."
// record holding its list order. Two trailing records carry the view history
// ("history,<id>,...", oldest first) and the id counter ("sequence,<id>").
package filestore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytracker/internal/model"
	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

var ErrMalformed = errors.New("malformed tracker file")

var header = []string{"id", "type", "name", "status", "description", "duration", "start", "epic"}

const (
	recordSubtasks = "subtasks"
	recordHistory  = "history"
	recordSequence = "sequence"
)

func Encode(w io.Writer, snap tracker.Snapshot) error {
	writer := csv.NewWriter(w)

	records := [][]string{header}
	for _, task := range snap.Tasks {
		records = append(records, entityRecord(task, ""))
	}
	for _, epic := range snap.Epics {
		records = append(records, entityRecord(epic, ""))
	}
	for _, subtask := range snap.Subtasks {
		records = append(records, entityRecord(subtask, strconv.FormatInt(subtask.EpicID, 10)))
	}
	for _, epic := range snap.Epics {
		if len(epic.SubtaskIDs) == 0 {
			continue
		}
		records = append(records, idRecord(recordSubtasks, append([]int64{epic.ID}, epic.SubtaskIDs...)))
	}

	records = append(records,
		idRecord(recordHistory, snap.History),
		[]string{recordSequence, strconv.FormatInt(snap.LastID, 10)},
	)

	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

func idRecord(name string, ids []int64) []string {
	record := []string{name}
	for _, id := range ids {
		record = append(record, strconv.FormatInt(id, 10))
	}
	return record
}

func entityRecord(entity model.Entity, epic string) []string {
	task := entity.Common()
	start := ""
	if task.StartTime != nil {
		start = task.StartTime.Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(task.ID, 10),
		string(entity.Kind()),
		task.Name,
		string(task.Status),
		task.Description,
		strconv.FormatInt(int64(task.Duration/time.Minute), 10),
		start,
		epic,
	}
}

// Decode parses a file written by Encode. The result still has to be
// replayed into a manager with tracker.FromSnapshot or Manager.Restore.
func Decode(r io.Reader) (tracker.Snapshot, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var snap tracker.Snapshot
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return tracker.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		line, _ := reader.FieldPos(0)

		if first {
			first = false
			if !slices.Equal(record, header) {
				return tracker.Snapshot{}, fmt.Errorf("%w: line %d: unexpected header %q", ErrMalformed, line, strings.Join(record, ","))
			}
			continue
		}

		if err := decodeRecord(&snap, record); err != nil {
			return tracker.Snapshot{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
	}

	if first {
		return tracker.Snapshot{}, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	return snap, nil
}

func decodeRecord(snap *tracker.Snapshot, record []string) error {
	switch record[0] {
	case recordSubtasks:
		ids, err := parseIDs(record[1:])
		if err != nil {
			return fmt.Errorf("subtasks %w", err)
		}
		if len(ids) == 0 {
			return fmt.Errorf("subtasks record without epic id")
		}
		index := slices.IndexFunc(snap.Epics, func(epic model.Epic) bool { return epic.ID == ids[0] })
		if index < 0 {
			return fmt.Errorf("subtasks record for unknown epic %d", ids[0])
		}
		snap.Epics[index].SubtaskIDs = ids[1:]
		return nil
	case recordHistory:
		ids, err := parseIDs(record[1:])
		if err != nil {
			return fmt.Errorf("history %w", err)
		}
		snap.History = ids
		return nil
	case recordSequence:
		if len(record) != 2 {
			return fmt.Errorf("sequence record wants 1 value, got %d", len(record)-1)
		}
		last, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return fmt.Errorf("sequence: %w", err)
		}
		snap.LastID = last
		return nil
	}

	if len(record) != len(header) {
		return fmt.Errorf("entity record wants %d fields, got %d", len(header), len(record))
	}

	task, err := parseTask(record)
	if err != nil {
		return err
	}

	kind, err := model.ParseKind(record[1])
	if err != nil {
		return err
	}
	switch kind {
	case model.KindTask:
		snap.Tasks = append(snap.Tasks, task)
	case model.KindEpic:
		snap.Epics = append(snap.Epics, model.Epic{Task: task})
	case model.KindSubtask:
		epicID, err := strconv.ParseInt(record[7], 10, 64)
		if err != nil {
			return fmt.Errorf("subtask %d epic: %w", task.ID, err)
		}
		snap.Subtasks = append(snap.Subtasks, model.Subtask{Task: task, EpicID: epicID})
	}
	return nil
}

func parseTask(record []string) (model.Task, error) {
	id, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return model.Task{}, fmt.Errorf("id: %w", err)
	}

	status, err := model.ParseStatus(record[3])
	if err != nil {
		return model.Task{}, err
	}

	minutes, err := strconv.ParseInt(record[5], 10, 64)
	if err != nil {
		return model.Task{}, fmt.Errorf("duration: %w", err)
	}

	task := model.Task{
		ID:          id,
		Name:        record[2],
		Status:      status,
		Description: record[4],
		Duration:    time.Duration(minutes) * time.Minute,
	}
	if record[6] != "" {
		start, err := time.Parse(time.RFC3339, record[6])
		if err != nil {
			return model.Task{}, fmt.Errorf("start: %w", err)
		}
		task.StartTime = &start
	}
	return task, nil
}

func parseIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("id %q: %w", value, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
