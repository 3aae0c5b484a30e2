// Package pgdb stores tracker snapshots in PostgreSQL. Every Save inserts a
// new snapshot version; Load reads the newest one.
package pgdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Joseda-hg/lazytracker/internal/model"
	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

// DefaultKeep is the number of snapshot versions kept when none is configured.
const DefaultKeep = 20

// Store is a PostgreSQL-backed snapshot store.
type Store struct {
	pool *pgxpool.Pool
	keep int
}

// Version describes one stored snapshot.
type Version struct {
	ID        string
	CreatedAt time.Time
	Entities  int
}

// Open connects to dsn and creates the tables if needed. keep bounds the
// number of stored versions; values below 1 use DefaultKeep.
func Open(ctx context.Context, dsn string, keep int) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	store := NewStore(pool, keep)
	if err := store.EnsureTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, keep int) *Store {
	if keep < 1 {
		keep = DefaultKeep
	}
	return &Store{pool: pool, keep: keep}
}

// EnsureTables creates the snapshot tables if they don't exist.
func (s *Store) EnsureTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id         UUID PRIMARY KEY,
			last_id    BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_entities (
			snapshot_id      UUID NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			position         INTEGER NOT NULL,
			id               BIGINT NOT NULL,
			kind             TEXT NOT NULL,
			name             TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL,
			duration_minutes BIGINT NOT NULL DEFAULT 0,
			start_at         TIMESTAMPTZ,
			epic_id          BIGINT,
			epic_position    INTEGER,
			PRIMARY KEY (snapshot_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_history (
			snapshot_id UUID NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			entity_id   BIGINT NOT NULL,
			PRIMARY KEY (snapshot_id, position)
		)`,
		`ALTER TABLE snapshot_entities ADD COLUMN IF NOT EXISTS epic_position INTEGER`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at)`,
	}
	for _, statement := range statements {
		if _, err := s.pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}

// Save inserts snap as a new version and prunes versions beyond the keep
// limit.
func (s *Store) Save(ctx context.Context, snap tracker.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO snapshots (id, last_id, created_at) VALUES ($1, $2, $3)`, id, snap.LastID, now)

	position := 0
	queue := func(entity model.Entity, epicID *int64, epicPosition *int) {
		task := entity.Common()
		batch.Queue(`
			INSERT INTO snapshot_entities (snapshot_id, position, id, kind, name, description, status, duration_minutes, start_at, epic_id, epic_position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			id, position, task.ID, string(entity.Kind()), task.Name, task.Description, string(task.Status),
			int64(task.Duration/time.Minute), task.StartTime, epicID, epicPosition)
		position++
	}
	for _, task := range snap.Tasks {
		queue(task, nil, nil)
	}
	for _, epic := range snap.Epics {
		queue(epic, nil, nil)
	}
	positions := snap.SubtaskPositions()
	for _, subtask := range snap.Subtasks {
		epicID := subtask.EpicID
		var epicPosition *int
		if index, ok := positions[subtask.ID]; ok {
			epicPosition = &index
		}
		queue(subtask, &epicID, epicPosition)
	}
	for i, entityID := range snap.History {
		batch.Queue(`INSERT INTO snapshot_history (snapshot_id, position, entity_id) VALUES ($1, $2, $3)`, id, i, entityID)
	}
	batch.Queue(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY created_at DESC, id DESC LIMIT $1
		)`, s.keep)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", id, err)
	}
	return tx.Commit(ctx)
}

// Load returns the newest snapshot, or an empty one when nothing is stored.
func (s *Store) Load(ctx context.Context) (tracker.Snapshot, error) {
	var snap tracker.Snapshot
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id::text, last_id FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1`).
		Scan(&id, &snap.LastID)
	if errors.Is(err, pgx.ErrNoRows) {
		return tracker.Snapshot{}, nil
	}
	if err != nil {
		return tracker.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, name, description, status, duration_minutes, start_at, epic_id, epic_position
		FROM snapshot_entities WHERE snapshot_id = $1 ORDER BY position`, id)
	if err != nil {
		return tracker.Snapshot{}, fmt.Errorf("load snapshot %s entities: %w", id, err)
	}
	defer rows.Close()

	positions := make(map[int64]int)
	for rows.Next() {
		var (
			task    model.Task
			kind    string
			status  string
			minutes int64
			startAt *time.Time
			epicID  *int64
			epicPos *int32
		)
		if err := rows.Scan(&task.ID, &kind, &task.Name, &task.Description, &status, &minutes, &startAt, &epicID, &epicPos); err != nil {
			return tracker.Snapshot{}, fmt.Errorf("scan entity: %w", err)
		}
		task.Status = model.Status(status)
		task.Duration = time.Duration(minutes) * time.Minute
		if startAt != nil {
			start := startAt.UTC()
			task.StartTime = &start
		}

		switch model.Kind(kind) {
		case model.KindTask:
			snap.Tasks = append(snap.Tasks, task)
		case model.KindEpic:
			snap.Epics = append(snap.Epics, model.Epic{Task: task})
		case model.KindSubtask:
			if epicID == nil {
				return tracker.Snapshot{}, fmt.Errorf("subtask %d has no epic", task.ID)
			}
			snap.Subtasks = append(snap.Subtasks, model.Subtask{Task: task, EpicID: *epicID})
			if epicPos != nil {
				positions[task.ID] = int(*epicPos)
			}
		default:
			return tracker.Snapshot{}, fmt.Errorf("entity %d: unknown kind %q", task.ID, kind)
		}
	}
	if err := rows.Err(); err != nil {
		return tracker.Snapshot{}, err
	}
	snap.LinkSubtasks(positions)

	historyRows, err := s.pool.Query(ctx, `SELECT entity_id FROM snapshot_history WHERE snapshot_id = $1 ORDER BY position`, id)
	if err != nil {
		return tracker.Snapshot{}, fmt.Errorf("load snapshot %s history: %w", id, err)
	}
	snap.History, err = pgx.CollectRows(historyRows, pgx.RowTo[int64])
	if err != nil {
		return tracker.Snapshot{}, fmt.Errorf("scan history: %w", err)
	}

	return snap, nil
}

// Versions lists the stored snapshots, newest first.
func (s *Store) Versions(ctx context.Context) ([]Version, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id::text, s.created_at, COUNT(e.position)
		FROM snapshots s LEFT JOIN snapshot_entities e ON e.snapshot_id = s.id
		GROUP BY s.id, s.created_at
		ORDER BY s.created_at DESC, s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.CreatedAt, &v.Entities); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
