package sessions_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcpolan/pump/internal/sessions"
)

type handlerFixture struct {
	repo       *sessions.TestRepo
	controller *sessions.Controller
	reconciler *sessions.Reconciler
	handler    *sessions.Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	repo := sessions.NewTestRepo()
	controller := sessions.NewController(repo, nil)
	t.Cleanup(controller.Close)
	reconciler := sessions.NewReconciler(repo, nil, 10*time.Millisecond)
	t.Cleanup(reconciler.DiscardAll)
	return &handlerFixture{
		repo:       repo,
		controller: controller,
		reconciler: reconciler,
		handler:    sessions.NewHandler(controller, reconciler, repo, 50),
	}
}

func (f *handlerFixture) startSession(t *testing.T, programID string) *sessions.Session {
	t.Helper()
	reqBody, err := json.Marshal(sessions.StartSessionRequest{ProgramID: programID})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/sessions", bytes.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	f.handler.HandleStart(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var session sessions.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return &session
}

func TestHandler_StartAndGetActive(t *testing.T) {
	f := newHandlerFixture(t)
	programID := f.repo.AddProgram("Push A", "Bench Press")

	session := f.startSession(t, programID)
	assert.True(t, session.IsActive)
	assert.Equal(t, "Push A", session.ProgramName)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/sessions/active", nil)
	require.NoError(t, err)

	f.handler.HandleGetActive(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessions.ActiveSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Session)
	assert.Equal(t, session.ID, resp.Session.ID)
}

func TestHandler_StartConflict(t *testing.T) {
	f := newHandlerFixture(t)
	pushID := f.repo.AddProgram("Push A", "Bench Press")
	legsID := f.repo.AddProgram("Legs", "Squat")

	f.startSession(t, pushID)

	reqBody, err := json.Marshal(sessions.StartSessionRequest{ProgramID: legsID})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/sessions", bytes.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	f.handler.HandleStart(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_GetActive_Idle(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/sessions/active", nil)
	require.NoError(t, err)

	f.handler.HandleGetActive(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessions.ActiveSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Session)
	assert.Equal(t, 0, resp.ElapsedSeconds)
}

func TestHandler_UpdateLogAndFinish(t *testing.T) {
	f := newHandlerFixture(t)
	programID := f.repo.AddProgram("Push A", "Bench Press")
	session := f.startSession(t, programID)

	logs, err := f.repo.SessionLogs(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	logID := logs[0].ID

	editBody, err := json.Marshal(sessions.LogEdit{Weight: "60", Reps: "8"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("PUT", "/sessions/logs/"+logID, bytes.NewReader(editBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req = mux.SetURLVars(req, map[string]string{"id": logID})

	f.handler.HandleUpdateLog(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// finish flushes the buffered edit before stamping end time
	rec = httptest.NewRecorder()
	req, err = http.NewRequest("POST", "/sessions/finish", nil)
	require.NoError(t, err)

	f.handler.HandleFinish(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	logs, err = f.repo.SessionLogs(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, logs[0].Weight)
	assert.Equal(t, 60, *logs[0].Weight)
	require.NotNil(t, logs[0].CompletedAt)
}

func TestHandler_UpdateLog_InvalidInput(t *testing.T) {
	f := newHandlerFixture(t)
	programID := f.repo.AddProgram("Push A", "Bench Press")
	session := f.startSession(t, programID)

	logs, err := f.repo.SessionLogs(context.Background(), session.ID)
	require.NoError(t, err)
	logID := logs[0].ID

	editBody, err := json.Marshal(sessions.LogEdit{Weight: "a lot"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("PUT", "/sessions/logs/"+logID, bytes.NewReader(editBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req = mux.SetURLVars(req, map[string]string{"id": logID})

	f.handler.HandleUpdateLog(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_CancelDiscardsEdits(t *testing.T) {
	f := newHandlerFixture(t)
	programID := f.repo.AddProgram("Push A", "Bench Press")
	session := f.startSession(t, programID)

	logs, err := f.repo.SessionLogs(context.Background(), session.ID)
	require.NoError(t, err)
	require.NoError(t, f.reconciler.Update(logs[0].ID, sessions.LogEdit{Weight: "60", Reps: "8"}))

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/sessions/cancel", nil)
	require.NoError(t, err)

	f.handler.HandleCancel(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, f.repo.Sessions)
	assert.Empty(t, f.repo.Logs)
}

func TestHandler_ActiveExercises(t *testing.T) {
	f := newHandlerFixture(t)
	programID := f.repo.AddProgram("Push A", "Bench Press", "Overhead Press")
	session := f.startSession(t, programID)

	logs, err := f.repo.SessionLogs(context.Background(), session.ID)
	require.NoError(t, err)
	require.NoError(t, f.reconciler.Update(logs[0].ID, sessions.LogEdit{Weight: "60", Reps: "8"}))

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/sessions/active/exercises", nil)
	require.NoError(t, err)

	f.handler.HandleActiveExercises(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessions.ActiveExercisesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Exercises, 2)
	// the buffered, not yet flushed edit counts as a completed set
	assert.Equal(t, 1, resp.CompletedCount)
}

func TestHandler_ActiveExercises_NoSession(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/sessions/active/exercises", nil)
	require.NoError(t, err)

	f.handler.HandleActiveExercises(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_HistoryAndStats(t *testing.T) {
	f := newHandlerFixture(t)
	programID := f.repo.AddProgram("Push A", "Bench Press")

	f.startSession(t, programID)
	finishRec := httptest.NewRecorder()
	finishReq, err := http.NewRequest("POST", "/sessions/finish", nil)
	require.NoError(t, err)
	f.handler.HandleFinish(finishRec, finishReq)
	require.Equal(t, http.StatusOK, finishRec.Code)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/sessions/history", nil)
	require.NoError(t, err)

	f.handler.HandleHistory(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var histResp sessions.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &histResp))
	require.Len(t, histResp.Sessions, 1)
	assert.False(t, histResp.Sessions[0].IsActive)

	rec = httptest.NewRecorder()
	req, err = http.NewRequest("GET", "/sessions/stats", nil)
	require.NoError(t, err)

	f.handler.HandleStats(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats sessions.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalWorkouts)
	require.NotNil(t, stats.LastWorkout)
	assert.Equal(t, "Push A", stats.LastWorkout.ProgramName)
}

func TestHandler_History_InvalidLimit(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/sessions/history?limit=nope", nil)
	require.NoError(t, err)

	f.handler.HandleHistory(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
