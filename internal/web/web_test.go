package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/lazytracker/internal/db"
	"github.com/Joseda-hg/lazytracker/internal/model"
	"github.com/Joseda-hg/lazytracker/internal/storage"
	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

func newTestServer(t *testing.T) (*tracker.Manager, http.Handler) {
	t.Helper()
	manager := tracker.New()
	return manager, NewServer(manager, nil, nil).Handler()
}

func do(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &value), rec.Body.String())
	return value
}

func TestCreateAndGetTask(t *testing.T) {
	manager, handler := newTestServer(t)

	rec := do(t, handler, http.MethodPost, "/api/tasks",
		`{"name":"Task 1","description":"Description 1","duration_minutes":15,"start_time":"2023-02-01T15:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[EntityPayload](t, rec)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, model.KindTask, created.Kind)
	assert.Equal(t, model.StatusNew, created.Status)
	require.NotNil(t, created.EndTime)
	assert.Equal(t, "2023-02-01T15:15:00Z", created.EndTime.Format("2006-01-02T15:04:05Z07:00"))
	assert.Empty(t, manager.History(), "create must not record a view")

	rec = do(t, handler, http.MethodGet, "/api/tasks/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Task 1", decode[EntityPayload](t, rec).Name)
	assert.Len(t, manager.History(), 1)

	rec = do(t, handler, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]EntityPayload](t, rec), 1)
}

func TestUnknownIDsAreNotFound(t *testing.T) {
	_, handler := newTestServer(t)

	for _, req := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/tasks/7", ""},
		{http.MethodPut, "/api/epics/7", `{"name":"x"}`},
		{http.MethodDelete, "/api/subtasks/7", ""},
		{http.MethodGet, "/api/epics/7/subtasks", ""},
		{http.MethodGet, "/api/tasks/abc", ""},
		{http.MethodGet, "/api/tasks/1/extra", ""},
	} {
		rec := do(t, handler, req.method, req.path, req.body)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", req.method, req.path)
	}
}

func TestSubtaskLifecycleUpdatesEpic(t *testing.T) {
	manager, handler := newTestServer(t)

	rec := do(t, handler, http.MethodPost, "/api/epics", `{"name":"Release","status":"DONE"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	epic := decode[EntityPayload](t, rec)
	assert.Equal(t, model.StatusNew, epic.Status, "epic status is derived")

	rec = do(t, handler, http.MethodPost, "/api/subtasks", `{"name":"Tag","status":"done","epic_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, handler, http.MethodPost, "/api/subtasks", `{"name":"Announce","epic_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, handler, http.MethodGet, "/api/epics/1", "")
	epic = decode[EntityPayload](t, rec)
	assert.Equal(t, model.StatusInProgress, epic.Status)
	assert.Equal(t, []int64{2, 3}, epic.SubtaskIDs)

	rec = do(t, handler, http.MethodPut, "/api/subtasks/3", `{"name":"Announce","status":"DONE"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), decode[EntityPayload](t, rec).EpicID)

	rec = do(t, handler, http.MethodGet, "/api/epics/1/subtasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]EntityPayload](t, rec), 2)

	got, _ := manager.Peek(1)
	assert.Equal(t, model.StatusDone, got.Common().Status)

	rec = do(t, handler, http.MethodDelete, "/api/epics/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, manager.Subtasks())
}

func TestDanglingEpicIsUnprocessable(t *testing.T) {
	manager, handler := newTestServer(t)

	rec := do(t, handler, http.MethodPost, "/api/subtasks", `{"name":"orphan","epic_id":42}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, manager.Subtasks())

	epicID := manager.AddEpic(model.Epic{Task: model.Task{Name: "E"}})
	id, err := manager.AddSubtask(model.Subtask{Task: model.Task{Name: "S"}, EpicID: epicID})
	require.NoError(t, err)

	rec = do(t, handler, http.MethodPut, "/api/subtasks/"+strconv.FormatInt(id, 10), `{"name":"S","epic_id":42}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBadInputIsRejected(t *testing.T) {
	_, handler := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, do(t, handler, http.MethodPost, "/api/tasks", `{"name":`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, handler, http.MethodPost, "/api/tasks", `{"name":"a","status":"SOON"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, handler, http.MethodPost, "/api/tasks", `{"name":"a","duration_minutes":-5}`).Code)

	rec := do(t, handler, http.MethodPatch, "/api/tasks", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST, DELETE", rec.Header().Get("Allow"))
}

func TestDeleteAllAndHistory(t *testing.T) {
	manager, handler := newTestServer(t)
	first := manager.AddTask(model.Task{Name: "A"})
	second := manager.AddTask(model.Task{Name: "B"})
	manager.Task(first)
	manager.Task(second)
	manager.Task(first)

	rec := do(t, handler, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]EntityPayload](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, second, history[0].ID)
	assert.Equal(t, first, history[1].ID)

	rec = do(t, handler, http.MethodDelete, "/api/tasks", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, manager.Tasks())
	assert.Empty(t, manager.History())
}

func TestChangesNeedJournal(t *testing.T) {
	_, handler := newTestServer(t)
	rec := do(t, handler, http.MethodGet, "/api/entities/1/changes", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestChangesFromSQLiteJournal(t *testing.T) {
	sqlDB, err := db.Open(":memory:")
	require.NoError(t, err)
	store := db.NewStore(sqlDB)
	t.Cleanup(func() { _ = store.Close() })

	manager := tracker.New()
	storage.NewAutosave(manager, store, nil)
	handler := NewServer(manager, store, nil).Handler()

	id := manager.AddTask(model.Task{Name: "Write tests"})
	manager.UpdateTask(model.Task{ID: id, Name: "Write more tests"})

	rec := do(t, handler, http.MethodGet, "/api/entities/"+strconv.FormatInt(id, 10)+"/changes", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	changes := decode[[]changePayload](t, rec)
	require.Len(t, changes, 2)
	assert.Equal(t, "created", changes[0].EventType)
	assert.Equal(t, "updated: name: 'Write tests' -> 'Write more tests'", changes[1].Details)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded.Tasks, 1)
}
