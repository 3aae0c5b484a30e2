package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Joseda-hg/lazytracker/internal/model"
	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

const metaLastID = "last_id"

// Store keeps the latest snapshot in the entities, history and meta tables
// and appends one batch of change records per Save.
type Store struct {
	DB  *sql.DB
	now func() time.Time
}

// Change is a journal row written by Save.
type Change struct {
	ID        int64
	BatchID   string
	EntityID  int64
	Kind      model.Kind
	EventType string
	Details   string
	CreatedAt time.Time
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, now: time.Now}
}

func (s *Store) Load(ctx context.Context) (tracker.Snapshot, error) {
	snap, err := loadSnapshot(ctx, s.DB)
	if err != nil {
		return tracker.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// Save replaces the stored snapshot with snap. The differences to the
// previously stored snapshot are appended to the journal under one batch id.
func (s *Store) Save(ctx context.Context, snap tracker.Snapshot) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	before, err := loadSnapshot(ctx, tx)
	if err != nil {
		return fmt.Errorf("load stored snapshot: %w", err)
	}

	if err := writeSnapshot(ctx, tx, snap); err != nil {
		return err
	}

	records := tracker.Diff(before, snap)
	if len(records) > 0 {
		batchID := uuid.Must(uuid.NewV7()).String()
		createdAt := s.now().UTC()
		for _, record := range records {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO changes (batch_id, entity_id, kind, event_type, details, created_at) VALUES (?, ?, ?, ?, ?, ?)",
				batchID, record.EntityID, string(record.Kind), record.EventType, record.Details, createdAt,
			); err != nil {
				return fmt.Errorf("journal change for %d: %w", record.EntityID, err)
			}
		}
	}

	return tx.Commit()
}

// ListChanges returns the journal of one entity, oldest first.
func (s *Store) ListChanges(ctx context.Context, entityID int64) ([]Change, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, batch_id, entity_id, kind, event_type, details, created_at FROM changes WHERE entity_id = ? ORDER BY id",
		entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var change Change
		var kind string
		if err := rows.Scan(&change.ID, &change.BatchID, &change.EntityID, &kind, &change.EventType, &change.Details, &change.CreatedAt); err != nil {
			return nil, err
		}
		change.Kind = model.Kind(kind)
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func writeSnapshot(ctx context.Context, tx *sql.Tx, snap tracker.Snapshot) error {
	for _, table := range []string{"entities", "history"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	position := 0
	insert := func(entity model.Entity, epicID, epicPosition sql.NullInt64) error {
		task := entity.Common()
		var startAt sql.NullTime
		if task.StartTime != nil {
			startAt = sql.NullTime{Time: task.StartTime.UTC(), Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO entities (id, kind, position, name, description, status, duration_minutes, start_at, epic_id, epic_position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			task.ID, string(entity.Kind()), position, task.Name, task.Description, string(task.Status),
			int64(task.Duration/time.Minute), startAt, epicID, epicPosition,
		)
		if err != nil {
			return fmt.Errorf("insert %s %d: %w", entity.Kind(), task.ID, err)
		}
		position++
		return nil
	}

	for _, task := range snap.Tasks {
		if err := insert(task, sql.NullInt64{}, sql.NullInt64{}); err != nil {
			return err
		}
	}
	for _, epic := range snap.Epics {
		if err := insert(epic, sql.NullInt64{}, sql.NullInt64{}); err != nil {
			return err
		}
	}
	positions := snap.SubtaskPositions()
	for _, subtask := range snap.Subtasks {
		var epicPosition sql.NullInt64
		if index, ok := positions[subtask.ID]; ok {
			epicPosition = sql.NullInt64{Int64: int64(index), Valid: true}
		}
		if err := insert(subtask, sql.NullInt64{Int64: subtask.EpicID, Valid: true}, epicPosition); err != nil {
			return err
		}
	}

	for i, id := range snap.History {
		if _, err := tx.ExecContext(ctx, "INSERT INTO history (position, entity_id) VALUES (?, ?)", i, id); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		metaLastID, strconv.FormatInt(snap.LastID, 10),
	); err != nil {
		return fmt.Errorf("store %s: %w", metaLastID, err)
	}

	return nil
}

// loadSnapshot reads the stored snapshot. Epic subtask lists are rebuilt
// from the subtask rows and their epic_position.
func loadSnapshot(ctx context.Context, q queryer) (tracker.Snapshot, error) {
	var snap tracker.Snapshot
	positions := make(map[int64]int)

	rows, err := q.QueryContext(ctx,
		"SELECT id, kind, name, description, status, duration_minutes, start_at, epic_id, epic_position FROM entities ORDER BY position",
	)
	if err != nil {
		return tracker.Snapshot{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			task    model.Task
			kind    string
			status  string
			minutes int64
			startAt sql.NullTime
			epicID  sql.NullInt64
			epicPos sql.NullInt64
		)
		if err := rows.Scan(&task.ID, &kind, &task.Name, &task.Description, &status, &minutes, &startAt, &epicID, &epicPos); err != nil {
			return tracker.Snapshot{}, err
		}
		task.Status = model.Status(status)
		task.Duration = time.Duration(minutes) * time.Minute
		if startAt.Valid {
			start := startAt.Time.UTC()
			task.StartTime = &start
		}

		switch model.Kind(kind) {
		case model.KindTask:
			snap.Tasks = append(snap.Tasks, task)
		case model.KindEpic:
			snap.Epics = append(snap.Epics, model.Epic{Task: task})
		case model.KindSubtask:
			snap.Subtasks = append(snap.Subtasks, model.Subtask{Task: task, EpicID: epicID.Int64})
			if epicPos.Valid {
				positions[task.ID] = int(epicPos.Int64)
			}
		default:
			return tracker.Snapshot{}, fmt.Errorf("entity %d: unknown kind %q", task.ID, kind)
		}
	}
	if err := rows.Err(); err != nil {
		return tracker.Snapshot{}, err
	}
	snap.LinkSubtasks(positions)

	historyRows, err := q.QueryContext(ctx, "SELECT entity_id FROM history ORDER BY position")
	if err != nil {
		return tracker.Snapshot{}, err
	}
	defer historyRows.Close()

	for historyRows.Next() {
		var id int64
		if err := historyRows.Scan(&id); err != nil {
			return tracker.Snapshot{}, err
		}
		snap.History = append(snap.History, id)
	}
	if err := historyRows.Err(); err != nil {
		return tracker.Snapshot{}, err
	}

	var lastID string
	err = q.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaLastID).Scan(&lastID)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return tracker.Snapshot{}, err
	default:
		snap.LastID, err = strconv.ParseInt(lastID, 10, 64)
		if err != nil {
			return tracker.Snapshot{}, fmt.Errorf("parse %s: %w", metaLastID, err)
		}
	}

	return snap, nil
}
