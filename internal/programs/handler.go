package programs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tcpolan/pump/internal/exercises"
	"github.com/tcpolan/pump/internal/telemetry/tracing"
	"github.com/tcpolan/pump/pkg"
)

type programsRepo interface {
	Add(ctx context.Context, name string, description *string) (*Program, error)
	Get(ctx context.Context, id string) (*Program, error)
	List(ctx context.Context) ([]Program, error)
	Update(ctx context.Context, program *Program) error
	Delete(ctx context.Context, id string) error
	GetExercises(ctx context.Context, programID string) ([]exercises.Exercise, error)
	SetExercises(ctx context.Context, programID string, exerciseIDs []string) error
}

type AddProgramRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type SetExercisesRequest struct {
	ExerciseIDs []string `json:"exerciseIds"`
}

type DeleteProgramResponse struct {
	DeletedID string `json:"deletedId"`
}

type UpdateProgramResponse struct {
	UpdatedID string `json:"updatedId"`
}

type ListResponse struct {
	Programs []Program `json:"programs"`
}

type Handler struct {
	repo programsRepo
}

func NewHandler(repo programsRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.programs.list")
	defer span.End()

	programsList, err := handler.repo.List(ctx)
	if err != nil {
		log.Errorf("list programs error: %s", err)
		http.Error(w, "failed to get programs", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(ListResponse{Programs: programsList})
	if err != nil {
		log.Errorf("marshal programs error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.programs.get")
	defer span.End()

	vars := mux.Vars(r)
	id := vars["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	program, err := handler.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrProgramNotFound) {
		log.Errorf("failed to get program %s: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	} else if errors.Is(err, ErrProgramNotFound) {
		http.Error(w, "program not found", http.StatusNotFound)
		return
	}

	programExercises, err := handler.repo.GetExercises(ctx, id)
	if err != nil {
		log.Errorf("failed to get program exercises %s: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(ProgramWithExercises{
		Program:   *program,
		Exercises: programExercises,
	})
	if err != nil {
		log.Errorf("failed to marshal program: %s", err)
		http.Error(w, "failed to marshal program", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.programs.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req AddProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new program, unmarshal json params: %s", err)
		http.Error(w, "add program failed", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "error, program name empty", http.StatusBadRequest)
		return
	}

	addedProgram, err := handler.repo.Add(ctx, req.Name, req.Description)
	if err != nil {
		log.Errorf("failed to add new program [%s]: %s", req.Name, err)
		http.Error(w, "error, failed to add new program", http.StatusInternalServerError)
		return
	}

	addedJson, err := json.Marshal(addedProgram)
	if err != nil {
		log.Errorf("failed to marshal new program: %s", err)
		http.Error(w, "error, failed to add new program", http.StatusInternalServerError)
		return
	}

	log.Debugf("new program added: %s", addedJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.programs.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var program Program
	if err := json.NewDecoder(r.Body).Decode(&program); err != nil {
		log.Errorf("update program, unmarshal json params: %s", err)
		http.Error(w, "update program failed", http.StatusBadRequest)
		return
	}

	if program.ID == "" || program.Name == "" {
		http.Error(w, "error, program id or name empty", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Update(ctx, &program); err != nil {
		if errors.Is(err, ErrProgramNotFound) {
			http.Error(w, "program not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update program [%s]: %s", program.ID, err)
		http.Error(w, "error, failed to update program", http.StatusInternalServerError)
		return
	}

	updateRespJson, err := json.Marshal(UpdateProgramResponse{
		UpdatedID: program.ID,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(updateRespJson))
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.programs.delete")
	defer span.End()

	vars := mux.Vars(r)
	id := vars["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrProgramNotFound) {
			log.Debugf("program %s not found", id)
			http.Error(w, "program not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete program %s: %s", id, err)
		http.Error(w, "program not deleted", http.StatusInternalServerError)
		return
	}

	deleteRespJson, err := json.Marshal(DeleteProgramResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func (handler *Handler) HandleGetExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.programs.getexercises")
	defer span.End()

	vars := mux.Vars(r)
	id := vars["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	programExercises, err := handler.repo.GetExercises(ctx, id)
	if err != nil {
		log.Errorf("failed to get program exercises %s: %s", id, err)
		http.Error(w, "failed to get program exercises", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(programExercises)
	if err != nil {
		log.Errorf("failed to marshal program exercises: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleSetExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.programs.setexercises")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	var req SetExercisesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("set program exercises, unmarshal json params: %s", err)
		http.Error(w, "set program exercises failed", http.StatusBadRequest)
		return
	}

	if err := handler.repo.SetExercises(ctx, id, req.ExerciseIDs); err != nil {
		log.Errorf("failed to set program exercises [%s]: %s", id, err)
		http.Error(w, "error, failed to set program exercises", http.StatusInternalServerError)
		return
	}

	updateRespJson, err := json.Marshal(UpdateProgramResponse{
		UpdatedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(updateRespJson))
}
