package sessions

import (
	"errors"
	"math"
	"time"

	"github.com/tcpolan/pump/internal/exercises"
)

var (
	// ErrNoActiveSession - no workout is currently running.
	ErrNoActiveSession = errors.New("no active session")
	// ErrActiveSessionExists - a workout is already running, at most one may run at a time.
	ErrActiveSessionExists = errors.New("active session already exists")
	// ErrMultipleActiveSessions signals a broken store invariant. It is
	// surfaced as a consistency error, never silently repaired.
	ErrMultipleActiveSessions = errors.New("multiple active sessions found")

	ErrSessionNotFound = errors.New("session not found")
	ErrLogNotFound     = errors.New("exercise log not found")
	ErrInvalidInput    = errors.New("invalid input")
)

type Session struct {
	ID              string     `json:"id"`
	ProgramID       string     `json:"programId"`
	ProgramName     string     `json:"programName"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	DurationMinutes *int       `json:"durationMinutes"`
	IsActive        bool       `json:"isActive"`
}

// ExerciseLog is one exercise's row within a session. It is complete
// iff both weight and reps are set.
type ExerciseLog struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"sessionId"`
	ExerciseID  string     `json:"exerciseId"`
	Weight      *int       `json:"weight"`
	Reps        *int       `json:"reps"`
	Notes       *string    `json:"notes"`
	CompletedAt *time.Time `json:"completedAt"`
}

func (l *ExerciseLog) IsComplete() bool {
	return l.Weight != nil && l.Reps != nil
}

// LastLog holds the most recent completed values for an exercise,
// taken from finished sessions only.
type LastLog struct {
	Weight      int       `json:"weight"`
	Reps        int       `json:"reps"`
	Notes       *string   `json:"notes"`
	CompletedAt time.Time `json:"completedAt"`
}

// ExerciseWithLastLog is the active-workout view model: the library
// exercise, its current-session log row and its last performed values.
type ExerciseWithLastLog struct {
	exercises.Exercise
	Last       *LastLog     `json:"last"`
	CurrentLog *ExerciseLog `json:"currentLog"`
}

// SessionLog is a log row joined with the exercise name, for history views.
type SessionLog struct {
	ExerciseLog
	ExerciseName string `json:"exerciseName"`
}

type LastWorkout struct {
	ProgramName string    `json:"programName"`
	Date        time.Time `json:"date"`
}

type Stats struct {
	TotalWorkouts      int          `json:"totalWorkouts"`
	AvgDurationMinutes int          `json:"avgDurationMinutes"`
	LastWorkout        *LastWorkout `json:"lastWorkout"`
}

// durationMinutes rounds the session length to whole minutes.
func durationMinutes(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}

// elapsedSeconds is the display clock derivation; it is recomputed from
// the stored start time and never persisted.
func elapsedSeconds(start, now time.Time) int {
	return int(math.Floor(now.Sub(start).Seconds()))
}
