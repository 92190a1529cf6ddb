package exercises

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type seedExercise struct {
	name  string
	notes string
}

var defaultExercises = []seedExercise{
	// chest
	{name: "Bench Press", notes: "Barbell, flat bench"},
	{name: "Incline Bench Press", notes: "Barbell, incline bench"},
	{name: "Dumbbell Bench Press", notes: "Flat bench"},
	{name: "Chest Fly Machine"},
	{name: "Cable Crossover"},
	{name: "Push-Ups"},
	// back
	{name: "Lat Pulldown", notes: "Wide grip"},
	{name: "Seated Cable Row"},
	{name: "Bent Over Row", notes: "Barbell"},
	{name: "Dumbbell Row", notes: "Single arm"},
	{name: "Pull-Ups"},
	{name: "T-Bar Row"},
	{name: "Face Pulls", notes: "Cable, rope attachment"},
	// shoulders
	{name: "Overhead Press", notes: "Barbell or dumbbell"},
	{name: "Lateral Raise", notes: "Dumbbells"},
	{name: "Front Raise", notes: "Dumbbells"},
	{name: "Rear Delt Fly", notes: "Machine or dumbbells"},
	{name: "Shoulder Press Machine"},
	// arms
	{name: "Bicep Curl", notes: "Barbell or dumbbells"},
	{name: "Hammer Curl", notes: "Dumbbells"},
	{name: "Preacher Curl"},
	{name: "Cable Curl"},
	{name: "Tricep Pushdown", notes: "Cable, rope or bar"},
	{name: "Tricep Dip"},
	{name: "Overhead Tricep Extension", notes: "Cable or dumbbell"},
	{name: "Skull Crushers", notes: "EZ bar or dumbbells"},
	// legs
	{name: "Squat", notes: "Barbell, back squat"},
	{name: "Leg Press"},
	{name: "Leg Extension", notes: "Machine"},
	{name: "Leg Curl", notes: "Lying or seated"},
	{name: "Romanian Deadlift", notes: "Barbell or dumbbells"},
	{name: "Lunges", notes: "Walking or stationary"},
	{name: "Calf Raise", notes: "Standing or seated"},
	{name: "Hip Abductor", notes: "Machine"},
	{name: "Hip Adductor", notes: "Machine"},
	// compound
	{name: "Deadlift", notes: "Conventional or sumo"},
	{name: "Barbell Row"},
	// core
	{name: "Plank"},
	{name: "Cable Crunch"},
	{name: "Hanging Leg Raise"},
	{name: "Ab Machine"},
}

// EnsureSeeded fills an empty exercise library with the default set.
// A non-empty library is left untouched.
func EnsureSeeded(ctx context.Context, repo *Repo) error {
	hasAny, err := repo.HasAny(ctx)
	if err != nil {
		return fmt.Errorf("check exercises present: %w", err)
	}
	if hasAny {
		return nil
	}

	for _, e := range defaultExercises {
		var notes *string
		if e.notes != "" {
			n := e.notes
			notes = &n
		}
		if _, err := repo.Add(ctx, e.name, notes); err != nil {
			return fmt.Errorf("seed exercise [%s]: %w", e.name, err)
		}
	}

	log.Infof("seeded exercise library with %d default exercises", len(defaultExercises))
	return nil
}
