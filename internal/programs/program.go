package programs

import "github.com/tcpolan/pump/internal/exercises"

type Program struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// ProgramExercise is a membership row: exercise references are owned by
// the library, the order index is a dense zero-based rank within the program.
type ProgramExercise struct {
	ProgramID  string `json:"programId"`
	ExerciseID string `json:"exerciseId"`
	OrderIndex int    `json:"orderIndex"`
}

type ProgramWithExercises struct {
	Program
	Exercises []exercises.Exercise `json:"exercises"`
}
