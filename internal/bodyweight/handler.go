package bodyweight

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tcpolan/pump/internal/telemetry/metrics"
	"github.com/tcpolan/pump/internal/telemetry/tracing"
	"github.com/tcpolan/pump/pkg"
)

type weightRepo interface {
	Upsert(ctx context.Context, date string, weight float64) (*WeightEntry, error)
	List(ctx context.Context) ([]WeightEntry, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type AddWeightEntryRequest struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

type ListResponse struct {
	Entries []WeightEntry `json:"entries"`
}

type DeleteAllResponse struct {
	Deleted int64 `json:"deleted"`
}

type Handler struct {
	repo           weightRepo
	metricsManager *metrics.Manager
}

func NewHandler(repo weightRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodyweight.list")
	defer span.End()

	entries, err := handler.repo.List(ctx)
	if err != nil {
		log.Errorf("list weight entries error: %s", err)
		http.Error(w, "failed to get weight entries", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(ListResponse{Entries: entries})
	if err != nil {
		log.Errorf("marshal weight entries error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodyweight.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req AddWeightEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new weight entry, unmarshal json params: %s", err)
		http.Error(w, "add weight entry failed", http.StatusBadRequest)
		return
	}

	if req.Weight <= 0 {
		http.Error(w, "error, weight must be positive", http.StatusBadRequest)
		return
	}

	date := req.Date
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, date); err != nil {
		http.Error(w, "error, date must be in YYYY-MM-DD form", http.StatusBadRequest)
		return
	}

	entry, err := handler.repo.Upsert(ctx, date, req.Weight)
	if err != nil {
		log.Errorf("failed to add weight entry for %s: %s", date, err)
		http.Error(w, "error, failed to add weight entry", http.StatusInternalServerError)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterWeightEntries.Inc()
	}

	entryJson, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("failed to marshal weight entry: %s", err)
		http.Error(w, "error, failed to add weight entry", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, entryJson, http.StatusCreated)
}

func (handler *Handler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodyweight.deleteAll")
	defer span.End()

	deleted, err := handler.repo.DeleteAll(ctx)
	if err != nil {
		log.Errorf("failed to delete weight entries: %s", err)
		http.Error(w, "error, failed to delete weight entries", http.StatusInternalServerError)
		return
	}

	log.Debugf("deleted %d weight entries", deleted)

	respJson, err := json.Marshal(DeleteAllResponse{Deleted: deleted})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(respJson))
}
