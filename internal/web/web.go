package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytracker/internal/model"
	"github.com/Joseda-hg/lazytracker/internal/storage"
	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

type Server struct {
	manager *tracker.Manager
	journal storage.Journal
	logger  *slog.Logger
}

// EntityPayload is the JSON shape of every entity kind, shared with the CLI.
type EntityPayload struct {
	ID              int64        `json:"id"`
	Kind            model.Kind   `json:"kind"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Status          model.Status `json:"status"`
	DurationMinutes int64        `json:"duration_minutes"`
	StartTime       *time.Time   `json:"start_time"`
	EndTime         *time.Time   `json:"end_time"`
	EpicID          int64        `json:"epic_id,omitempty"`
	SubtaskIDs      []int64      `json:"subtask_ids,omitempty"`
}

type entityInput struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	DurationMinutes int64      `json:"duration_minutes"`
	StartTime       *time.Time `json:"start_time"`
	EpicID          int64      `json:"epic_id"`
}

type changePayload struct {
	ID        int64      `json:"id"`
	BatchID   string     `json:"batch_id"`
	Kind      model.Kind `json:"kind"`
	EventType string     `json:"event_type"`
	Details   string     `json:"details"`
	CreatedAt time.Time  `json:"created_at"`
}

// resource binds the generic handlers to one entity kind.
type resource struct {
	kind   model.Kind
	prefix string
	list   func() []model.Entity
	get    func(id int64) (model.Entity, bool)
	create func(task model.Task, epicID int64) (int64, error)
	update func(task model.Task, epicID int64) (bool, error)
	remove func(id int64) bool
	clear  func()
}

// NewServer serves manager over HTTP. journal may be nil when the storage
// backend keeps no change journal.
func NewServer(manager *tracker.Manager, journal storage.Journal, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{manager: manager, journal: journal, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, res := range s.resources() {
		mux.HandleFunc(res.prefix, s.collectionHandler(res))
		mux.HandleFunc(res.prefix+"/", s.itemHandler(res))
	}
	mux.HandleFunc("/api/history", s.historyHandler)
	mux.HandleFunc("/api/entities/", s.changesHandler)
	return s.logRequests(mux)
}

func (s *Server) resources() []resource {
	m := s.manager
	return []resource{
		{
			kind:   model.KindTask,
			prefix: "/api/tasks",
			list: func() []model.Entity {
				return entities(m.Tasks())
			},
			get: func(id int64) (model.Entity, bool) {
				return m.Task(id)
			},
			create: func(task model.Task, _ int64) (int64, error) {
				return m.AddTask(task), nil
			},
			update: func(task model.Task, _ int64) (bool, error) {
				return m.UpdateTask(task), nil
			},
			remove: m.DeleteTask,
			clear:  m.DeleteAllTasks,
		},
		{
			kind:   model.KindEpic,
			prefix: "/api/epics",
			list: func() []model.Entity {
				return entities(m.Epics())
			},
			get: func(id int64) (model.Entity, bool) {
				return m.Epic(id)
			},
			create: func(task model.Task, _ int64) (int64, error) {
				return m.AddEpic(model.Epic{Task: task}), nil
			},
			update: func(task model.Task, _ int64) (bool, error) {
				return m.UpdateEpic(model.Epic{Task: task}), nil
			},
			remove: m.DeleteEpic,
			clear:  m.DeleteAllEpics,
		},
		{
			kind:   model.KindSubtask,
			prefix: "/api/subtasks",
			list: func() []model.Entity {
				return entities(m.Subtasks())
			},
			get: func(id int64) (model.Entity, bool) {
				return m.Subtask(id)
			},
			create: func(task model.Task, epicID int64) (int64, error) {
				return m.AddSubtask(model.Subtask{Task: task, EpicID: epicID})
			},
			update: func(task model.Task, epicID int64) (bool, error) {
				return m.UpdateSubtask(model.Subtask{Task: task, EpicID: epicID})
			},
			remove: m.DeleteSubtask,
			clear:  m.DeleteAllSubtasks,
		},
	}
}

func (s *Server) collectionHandler(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, payloads(res.list()))
		case http.MethodPost:
			task, epicID, err := decodeInput(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			id, err := res.create(task, epicID)
			if err != nil {
				s.writeManagerError(w, err)
				return
			}
			s.writeStored(w, http.StatusCreated, id)
		case http.MethodDelete:
			res.clear()
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
		}
	}
}

func (s *Server) itemHandler(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, rest, err := parseID(r.URL.Path, res.prefix+"/")
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}

		if rest == "subtasks" && res.kind == model.KindEpic {
			s.epicSubtasksHandler(w, r, id)
			return
		}
		if rest != "" {
			writeError(w, http.StatusNotFound, fmt.Errorf("unknown path %s", r.URL.Path))
			return
		}

		switch r.Method {
		case http.MethodGet:
			entity, ok := res.get(id)
			if !ok {
				writeError(w, http.StatusNotFound, notFound(res.kind, id))
				return
			}
			writeJSON(w, http.StatusOK, NewPayload(entity))
		case http.MethodPut:
			task, epicID, err := decodeInput(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			task.ID = id
			ok, err := res.update(task, epicID)
			if err != nil {
				s.writeManagerError(w, err)
				return
			}
			if !ok {
				writeError(w, http.StatusNotFound, notFound(res.kind, id))
				return
			}
			s.writeStored(w, http.StatusOK, id)
		case http.MethodDelete:
			if !res.remove(id) {
				writeError(w, http.StatusNotFound, notFound(res.kind, id))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	}
}

func (s *Server) epicSubtasksHandler(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	subtasks, ok := s.manager.EpicSubtasks(id)
	if !ok {
		writeError(w, http.StatusNotFound, notFound(model.KindEpic, id))
		return
	}
	writeJSON(w, http.StatusOK, payloads(entities(subtasks)))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, payloads(s.manager.History()))
}

func (s *Server) changesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	id, rest, err := parseID(r.URL.Path, "/api/entities/")
	if err != nil || rest != "changes" {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown path %s", r.URL.Path))
		return
	}
	if s.journal == nil {
		writeError(w, http.StatusNotImplemented, errors.New("storage backend keeps no change journal"))
		return
	}

	changes, err := s.journal.ListChanges(r.Context(), id)
	if err != nil {
		s.logger.Error("list changes", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	result := make([]changePayload, 0, len(changes))
	for _, change := range changes {
		result = append(result, changePayload{
			ID:        change.ID,
			BatchID:   change.BatchID,
			Kind:      change.Kind,
			EventType: change.EventType,
			Details:   change.Details,
			CreatedAt: change.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

// writeStored answers with the stored entity without recording a view.
func (s *Server) writeStored(w http.ResponseWriter, status int, id int64) {
	entity, ok := s.manager.Peek(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("entity %d not found", id))
		return
	}
	writeJSON(w, status, NewPayload(entity))
}

func (s *Server) writeManagerError(w http.ResponseWriter, err error) {
	if errors.Is(err, tracker.ErrEpicNotFound) {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.logger.Error("request failed", "err", err)
	writeError(w, http.StatusInternalServerError, err)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(started))
	})
}

func decodeInput(r *http.Request) (model.Task, int64, error) {
	var input entityInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		return model.Task{}, 0, fmt.Errorf("decode body: %w", err)
	}
	status, err := model.ParseStatus(input.Status)
	if err != nil {
		return model.Task{}, 0, err
	}
	if input.DurationMinutes < 0 {
		return model.Task{}, 0, fmt.Errorf("duration_minutes must not be negative")
	}
	return model.Task{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Status:      status,
		Duration:    time.Duration(input.DurationMinutes) * time.Minute,
		StartTime:   input.StartTime,
	}, input.EpicID, nil
}

func NewPayload(entity model.Entity) EntityPayload {
	task := entity.Common()
	payload := EntityPayload{
		ID:              task.ID,
		Kind:            entity.Kind(),
		Name:            task.Name,
		Description:     task.Description,
		Status:          task.Status,
		DurationMinutes: int64(task.Duration / time.Minute),
		StartTime:       task.StartTime,
		EndTime:         task.EndTime(),
	}
	switch value := entity.(type) {
	case model.Subtask:
		payload.EpicID = value.EpicID
	case model.Epic:
		payload.EndTime = value.EndTime()
		payload.SubtaskIDs = value.SubtaskIDs
	}
	return payload
}

func entities[T model.Entity](values []T) []model.Entity {
	result := make([]model.Entity, 0, len(values))
	for _, value := range values {
		result = append(result, value)
	}
	return result
}

func payloads(values []model.Entity) []EntityPayload {
	result := make([]EntityPayload, 0, len(values))
	for _, value := range values {
		result = append(result, NewPayload(value))
	}
	return result
}

func notFound(kind model.Kind, id int64) error {
	return fmt.Errorf("%s %d not found", strings.ToLower(string(kind)), id)
}

// parseID splits "<prefix><id>[/<rest>]".
func parseID(path, prefix string) (int64, string, error) {
	if !strings.HasPrefix(path, prefix) {
		return 0, "", fmt.Errorf("invalid path")
	}
	value := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if value == "" {
		return 0, "", fmt.Errorf("missing id")
	}
	value, rest, _ := strings.Cut(value, "/")
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return id, rest, nil
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
