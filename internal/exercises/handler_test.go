package exercises_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcpolan/pump/internal/exercises"
)

func TestHandler_HandleAdd(t *testing.T) {
	repo := exercises.NewTestRepo()
	h := exercises.NewHandler(repo)

	notes := "Barbell, flat bench"
	reqBody, err := json.Marshal(exercises.AddExerciseRequest{
		Name:  "Bench Press",
		Notes: &notes,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/exercises", bytes.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	h.HandleAdd(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var added exercises.Exercise
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "Bench Press", added.Name)
	require.NotNil(t, added.Notes)
	assert.Equal(t, notes, *added.Notes)

	assert.Len(t, repo.Exercises, 1)
}

func TestHandler_HandleAdd_EmptyName(t *testing.T) {
	repo := exercises.NewTestRepo()
	h := exercises.NewHandler(repo)

	reqBody, err := json.Marshal(exercises.AddExerciseRequest{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/exercises", bytes.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	h.HandleAdd(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.Exercises)
}

func TestHandler_HandleList(t *testing.T) {
	repo := exercises.NewTestRepo()
	h := exercises.NewHandler(repo)

	_, err := repo.Add(context.Background(), "Squat", nil)
	require.NoError(t, err)
	_, err = repo.Add(context.Background(), "Deadlift", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/exercises", nil)
	require.NoError(t, err)

	h.HandleList(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp exercises.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Exercises, 2)
	assert.Equal(t, "Deadlift", listResp.Exercises[0].Name)
	assert.Equal(t, "Squat", listResp.Exercises[1].Name)
}

func TestHandler_HandleDelete(t *testing.T) {
	repo := exercises.NewTestRepo()
	h := exercises.NewHandler(repo)

	added, err := repo.Add(context.Background(), "Squat", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("DELETE", "/exercises/"+added.ID, nil)
	require.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"id": added.ID})

	h.HandleDelete(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var deleteResp exercises.DeleteExerciseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleteResp))
	assert.Equal(t, added.ID, deleteResp.DeletedID)
	assert.Empty(t, repo.Exercises)
}

func TestHandler_HandleDelete_InUse(t *testing.T) {
	repo := exercises.NewTestRepo()
	h := exercises.NewHandler(repo)

	added, err := repo.Add(context.Background(), "Squat", nil)
	require.NoError(t, err)
	repo.InUse[added.ID] = true

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("DELETE", "/exercises/"+added.ID, nil)
	require.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"id": added.ID})

	h.HandleDelete(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, repo.Exercises, 1)
}

func TestHandler_HandleDelete_NotFound(t *testing.T) {
	repo := exercises.NewTestRepo()
	h := exercises.NewHandler(repo)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("DELETE", "/exercises/unknown", nil)
	require.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"id": "unknown"})

	h.HandleDelete(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_HandleUpdate(t *testing.T) {
	repo := exercises.NewTestRepo()
	h := exercises.NewHandler(repo)

	added, err := repo.Add(context.Background(), "Squat", nil)
	require.NoError(t, err)

	added.Name = "Front Squat"
	reqBody, err := json.Marshal(added)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("PUT", "/exercises", bytes.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	h.HandleUpdate(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := repo.Get(context.Background(), added.ID)
	require.NoError(t, err)
	assert.Equal(t, "Front Squat", updated.Name)
}
