package exercises

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

var _ exercisesRepo = (*TestRepo)(nil)

// TestRepo is an in-memory exercisesRepo used in tests.
type TestRepo struct {
	Exercises map[string]*Exercise
	// ids of exercises with recorded logs, deleting them fails
	InUse map[string]bool
}

func NewTestRepo() *TestRepo {
	return &TestRepo{
		Exercises: make(map[string]*Exercise),
		InUse:     make(map[string]bool),
	}
}

func (r *TestRepo) Add(_ context.Context, name string, notes *string) (*Exercise, error) {
	e := &Exercise{
		ID:    uuid.NewString(),
		Name:  name,
		Notes: notes,
	}
	r.Exercises[e.ID] = e
	return e, nil
}

func (r *TestRepo) Get(_ context.Context, id string) (*Exercise, error) {
	e, ok := r.Exercises[id]
	if !ok {
		return nil, ErrExerciseNotFound
	}
	return e, nil
}

func (r *TestRepo) List(context.Context) ([]Exercise, error) {
	exercisesList := make([]Exercise, 0, len(r.Exercises))
	for _, e := range r.Exercises {
		exercisesList = append(exercisesList, *e)
	}
	sort.Slice(exercisesList, func(i, j int) bool {
		return exercisesList[i].Name < exercisesList[j].Name
	})
	return exercisesList, nil
}

func (r *TestRepo) Update(ctx context.Context, exercise *Exercise) error {
	if _, err := r.Get(ctx, exercise.ID); err != nil {
		return err
	}
	r.Exercises[exercise.ID] = exercise
	return nil
}

func (r *TestRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.Exercises[id]; !ok {
		return ErrExerciseNotFound
	}
	if r.InUse[id] {
		return ErrExerciseInUse
	}
	delete(r.Exercises, id)
	return nil
}
