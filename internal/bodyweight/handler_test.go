package bodyweight_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcpolan/pump/internal/bodyweight"
)

func addEntry(t *testing.T, h *bodyweight.Handler, date string, weight float64) *httptest.ResponseRecorder {
	t.Helper()
	reqBody, err := json.Marshal(bodyweight.AddWeightEntryRequest{
		Date:   date,
		Weight: weight,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/bodyweight", bytes.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	h.HandleAdd(rec, req)
	return rec
}

func TestHandler_HandleAdd(t *testing.T) {
	repo := bodyweight.NewTestRepo()
	h := bodyweight.NewHandler(repo, nil)

	rec := addEntry(t, h, "2025-03-10", 82.4)
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry bodyweight.WeightEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "2025-03-10", entry.Date)
	assert.Equal(t, 82.4, entry.Weight)
}

func TestHandler_HandleAdd_SameDayReplaces(t *testing.T) {
	repo := bodyweight.NewTestRepo()
	h := bodyweight.NewHandler(repo, nil)

	require.Equal(t, http.StatusCreated, addEntry(t, h, "2025-03-10", 82.4).Code)
	require.Equal(t, http.StatusCreated, addEntry(t, h, "2025-03-10", 81.9).Code)

	require.Len(t, repo.Entries, 1)
	assert.Equal(t, 81.9, repo.Entries["2025-03-10"].Weight)
}

func TestHandler_HandleAdd_Invalid(t *testing.T) {
	repo := bodyweight.NewTestRepo()
	h := bodyweight.NewHandler(repo, nil)

	assert.Equal(t, http.StatusBadRequest, addEntry(t, h, "2025-03-10", 0).Code)
	assert.Equal(t, http.StatusBadRequest, addEntry(t, h, "2025-03-10", -3).Code)
	assert.Equal(t, http.StatusBadRequest, addEntry(t, h, "10.03.2025", 82).Code)
	assert.Empty(t, repo.Entries)
}

func TestHandler_HandleList(t *testing.T) {
	repo := bodyweight.NewTestRepo()
	h := bodyweight.NewHandler(repo, nil)

	require.Equal(t, http.StatusCreated, addEntry(t, h, "2025-03-08", 83.0).Code)
	require.Equal(t, http.StatusCreated, addEntry(t, h, "2025-03-10", 82.4).Code)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/bodyweight", nil)
	require.NoError(t, err)

	h.HandleList(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp bodyweight.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	// newest first
	assert.Equal(t, "2025-03-10", resp.Entries[0].Date)
	assert.Equal(t, "2025-03-08", resp.Entries[1].Date)
}

func TestHandler_HandleDeleteAll(t *testing.T) {
	repo := bodyweight.NewTestRepo()
	h := bodyweight.NewHandler(repo, nil)

	require.Equal(t, http.StatusCreated, addEntry(t, h, "2025-03-10", 82.4).Code)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("DELETE", "/bodyweight", nil)
	require.NoError(t, err)

	h.HandleDeleteAll(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, repo.Entries)
}
