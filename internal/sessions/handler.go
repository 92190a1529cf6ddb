package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tcpolan/pump/internal/telemetry/tracing"
	"github.com/tcpolan/pump/pkg"
)

type sessionViews interface {
	ExercisesWithLastLog(ctx context.Context, sessionID string) ([]ExerciseWithLastLog, error)
	History(ctx context.Context, limit int) ([]Session, error)
	SessionLogs(ctx context.Context, sessionID string) ([]SessionLog, error)
	GetStats(ctx context.Context) (*Stats, error)
}

type StartSessionRequest struct {
	ProgramID string `json:"programId"`
}

type ActiveSessionResponse struct {
	Session        *Session `json:"session"`
	ElapsedSeconds int      `json:"elapsedSeconds"`
}

type ActiveExercisesResponse struct {
	Exercises      []ExerciseWithLastLog `json:"exercises"`
	CompletedCount int                   `json:"completedCount"`
}

type HistoryResponse struct {
	Sessions []Session `json:"sessions"`
}

type SessionLogsResponse struct {
	Logs []SessionLog `json:"logs"`
}

type Handler struct {
	controller         *Controller
	reconciler         *Reconciler
	views              sessionViews
	historyDefaultSize int
}

func NewHandler(controller *Controller, reconciler *Reconciler, views sessionViews, historyDefaultSize int) *Handler {
	return &Handler{
		controller:         controller,
		reconciler:         reconciler,
		views:              views,
		historyDefaultSize: historyDefaultSize,
	}
}

// HandleGetActive returns the running session together with its display
// clock, or a null session when idle.
func (handler *Handler) HandleGetActive(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.active")
	defer span.End()

	resp := ActiveSessionResponse{
		Session:        handler.controller.Active(),
		ElapsedSeconds: handler.controller.ElapsedSeconds(),
	}

	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("marshal active session error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.start")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("start session, unmarshal json params: %s", err)
		http.Error(w, "start session failed", http.StatusBadRequest)
		return
	}

	if req.ProgramID == "" {
		http.Error(w, "error, program id empty", http.StatusBadRequest)
		return
	}

	session, err := handler.controller.StartWorkout(ctx, req.ProgramID)
	if err != nil {
		if errors.Is(err, ErrActiveSessionExists) {
			http.Error(w, "a workout is already in progress", http.StatusConflict)
			return
		}
		log.Errorf("failed to start session for program %s: %s", req.ProgramID, err)
		http.Error(w, "error, failed to start session", http.StatusInternalServerError)
		return
	}

	sessionJson, err := json.Marshal(session)
	if err != nil {
		log.Errorf("failed to marshal started session: %s", err)
		http.Error(w, "error, failed to start session", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, sessionJson, http.StatusCreated)
}

// HandleFinish flushes all buffered edits first, so the final per-set
// values are on the rows before end time and duration are stamped.
func (handler *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.finish")
	defer span.End()

	if err := handler.reconciler.FlushAll(ctx); err != nil {
		log.Errorf("failed to flush pending edits before finish: %s", err)
		http.Error(w, "error, failed to finish session", http.StatusInternalServerError)
		return
	}

	if err := handler.controller.FinishWorkout(ctx); err != nil {
		log.Errorf("failed to finish session: %s", err)
		http.Error(w, "error, failed to finish session", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"finished":true}`)
}

func (handler *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.cancel")
	defer span.End()

	handler.reconciler.DiscardAll()

	if err := handler.controller.CancelWorkout(ctx); err != nil {
		log.Errorf("failed to cancel session: %s", err)
		http.Error(w, "error, failed to cancel session", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"cancelled":true}`)
}

// HandleActiveExercises returns the active workout's exercise list with
// current and last-performed values, plus the live completed-set count.
func (handler *Handler) HandleActiveExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.activeExercises")
	defer span.End()

	active := handler.controller.Active()
	if active == nil {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}

	exercisesList, err := handler.views.ExercisesWithLastLog(ctx, active.ID)
	if err != nil {
		log.Errorf("failed to get exercises for session %s: %s", active.ID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	logs := make([]ExerciseLog, 0, len(exercisesList))
	for i := range exercisesList {
		if exercisesList[i].CurrentLog != nil {
			logs = append(logs, *exercisesList[i].CurrentLog)
		}
	}

	respJson, err := json.Marshal(ActiveExercisesResponse{
		Exercises:      exercisesList,
		CompletedCount: handler.reconciler.CompletedCount(logs),
	})
	if err != nil {
		log.Errorf("marshal active exercises error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

// HandleUpdateLog buffers a set edit; the write lands after the
// debounce window, or immediately with ?flush=true.
func (handler *Handler) HandleUpdateLog(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.updateLog")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	logID := vars["id"]
	if logID == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	var edit LogEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		log.Tracef("update log, unmarshal json params: %s", err)
		http.Error(w, "update log failed", http.StatusBadRequest)
		return
	}

	if err := handler.reconciler.Update(logID, edit); err != nil {
		if errors.Is(err, ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("failed to buffer log update %s: %s", logID, err)
		http.Error(w, "error, failed to update log", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("flush") == "true" {
		if err := handler.reconciler.Flush(ctx, logID); err != nil {
			log.Errorf("failed to flush log update %s: %s", logID, err)
			http.Error(w, "error, failed to update log", http.StatusInternalServerError)
			return
		}
	}

	pkg.WriteJSONResponseOK(w, `{"accepted":true}`)
}

func (handler *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.history")
	defer span.End()

	limit := handler.historyDefaultSize
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			http.Error(w, "error, invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	sessionsList, err := handler.views.History(ctx, limit)
	if err != nil {
		log.Errorf("failed to get session history: %s", err)
		http.Error(w, "failed to get history", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(HistoryResponse{Sessions: sessionsList})
	if err != nil {
		log.Errorf("marshal history error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleSessionLogs(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.logs")
	defer span.End()

	vars := mux.Vars(r)
	sessionID := vars["id"]
	if sessionID == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	logs, err := handler.views.SessionLogs(ctx, sessionID)
	if err != nil {
		log.Errorf("failed to get logs for session %s: %s", sessionID, err)
		http.Error(w, "failed to get session logs", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(SessionLogsResponse{Logs: logs})
	if err != nil {
		log.Errorf("marshal session logs error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.stats")
	defer span.End()

	stats, err := handler.views.GetStats(ctx)
	if err != nil {
		log.Errorf("failed to get workout stats: %s", err)
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(stats)
	if err != nil {
		log.Errorf("marshal stats error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}
