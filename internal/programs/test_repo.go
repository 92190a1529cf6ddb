package programs

import (
	"context"
	"sort"

	"github.com/tcpolan/pump/internal/exercises"

	"github.com/google/uuid"
)

var _ programsRepo = (*TestRepo)(nil)

// TestRepo is an in-memory programsRepo used in tests.
type TestRepo struct {
	Programs   map[string]*Program
	Library    map[string]*exercises.Exercise
	Membership map[string][]string // program id -> ordered exercise ids
}

func NewTestRepo() *TestRepo {
	return &TestRepo{
		Programs:   make(map[string]*Program),
		Library:    make(map[string]*exercises.Exercise),
		Membership: make(map[string][]string),
	}
}

func (r *TestRepo) AddLibraryExercise(name string) *exercises.Exercise {
	e := &exercises.Exercise{
		ID:   uuid.NewString(),
		Name: name,
	}
	r.Library[e.ID] = e
	return e
}

func (r *TestRepo) Add(_ context.Context, name string, description *string) (*Program, error) {
	p := &Program{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
	}
	r.Programs[p.ID] = p
	return p, nil
}

func (r *TestRepo) Get(_ context.Context, id string) (*Program, error) {
	p, ok := r.Programs[id]
	if !ok {
		return nil, ErrProgramNotFound
	}
	return p, nil
}

func (r *TestRepo) List(context.Context) ([]Program, error) {
	programsList := make([]Program, 0, len(r.Programs))
	for _, p := range r.Programs {
		programsList = append(programsList, *p)
	}
	sort.Slice(programsList, func(i, j int) bool {
		return programsList[i].Name < programsList[j].Name
	})
	return programsList, nil
}

func (r *TestRepo) Update(ctx context.Context, program *Program) error {
	if _, err := r.Get(ctx, program.ID); err != nil {
		return err
	}
	r.Programs[program.ID] = program
	return nil
}

func (r *TestRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.Programs[id]; !ok {
		return ErrProgramNotFound
	}
	delete(r.Programs, id)
	delete(r.Membership, id)
	return nil
}

func (r *TestRepo) GetExercises(_ context.Context, programID string) ([]exercises.Exercise, error) {
	ids := r.Membership[programID]
	result := make([]exercises.Exercise, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.Library[id]; ok {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (r *TestRepo) SetExercises(_ context.Context, programID string, exerciseIDs []string) error {
	r.Membership[programID] = append([]string(nil), exerciseIDs...)
	return nil
}
