package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcpolan/pump/internal/exercises"
)

var (
	_ lifecycleRepo = (*TestRepo)(nil)
	_ logUpdater    = (*TestRepo)(nil)
	_ sessionViews  = (*TestRepo)(nil)
)

type testProgram struct {
	Name        string
	ExerciseIDs []string
}

// TestRepo is an in-memory stand-in for Repo used in controller,
// reconciler and handler tests.
type TestRepo struct {
	mu sync.Mutex

	Now func() time.Time

	Programs      map[string]*testProgram
	ExerciseNames map[string]string
	Sessions      map[string]*Session
	Logs          map[string]*ExerciseLog

	UpdateLogErr error
	StartErr     error
}

func NewTestRepo() *TestRepo {
	return &TestRepo{
		Now:           time.Now,
		Programs:      make(map[string]*testProgram),
		ExerciseNames: make(map[string]string),
		Sessions:      make(map[string]*Session),
		Logs:          make(map[string]*ExerciseLog),
	}
}

// AddProgram registers a program with the given exercises and returns
// its id.
func (r *TestRepo) AddProgram(name string, exerciseNames ...string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(exerciseNames))
	for _, exName := range exerciseNames {
		id := uuid.NewString()
		r.ExerciseNames[id] = exName
		ids = append(ids, id)
	}
	programID := uuid.NewString()
	r.Programs[programID] = &testProgram{Name: name, ExerciseIDs: ids}
	return programID
}

func (r *TestRepo) GetActive(context.Context) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []*Session
	for _, s := range r.Sessions {
		if s.IsActive {
			active = append(active, s)
		}
	}
	switch len(active) {
	case 0:
		return nil, ErrNoActiveSession
	case 1:
		sessionCopy := *active[0]
		return &sessionCopy, nil
	default:
		return nil, ErrMultipleActiveSessions
	}
}

func (r *TestRepo) Start(_ context.Context, programID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.StartErr != nil {
		return nil, r.StartErr
	}

	for _, s := range r.Sessions {
		if s.IsActive {
			return nil, ErrActiveSessionExists
		}
	}

	program, ok := r.Programs[programID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	session := &Session{
		ID:          uuid.NewString(),
		ProgramID:   programID,
		ProgramName: program.Name,
		StartTime:   r.Now(),
		IsActive:    true,
	}
	r.Sessions[session.ID] = session

	for _, exerciseID := range program.ExerciseIDs {
		l := &ExerciseLog{
			ID:         uuid.NewString(),
			SessionID:  session.ID,
			ExerciseID: exerciseID,
		}
		r.Logs[l.ID] = l
	}

	sessionCopy := *session
	return &sessionCopy, nil
}

func (r *TestRepo) Finish(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.Sessions[sessionID]
	if !ok {
		return nil
	}

	end := r.Now()
	duration := durationMinutes(session.StartTime, end)
	session.EndTime = &end
	session.DurationMinutes = &duration
	session.IsActive = false
	return nil
}

func (r *TestRepo) Cancel(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for logID, l := range r.Logs {
		if l.SessionID == sessionID {
			delete(r.Logs, logID)
		}
	}
	delete(r.Sessions, sessionID)
	return nil
}

func (r *TestRepo) UpdateLog(_ context.Context, logID string, weight, reps *int, notes *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.UpdateLogErr != nil {
		return r.UpdateLogErr
	}

	l, ok := r.Logs[logID]
	if !ok {
		return ErrLogNotFound
	}

	l.Weight = weight
	l.Reps = reps
	l.Notes = notes
	if weight != nil && reps != nil {
		now := r.Now()
		l.CompletedAt = &now
	} else {
		l.CompletedAt = nil
	}
	return nil
}

func (r *TestRepo) ExercisesWithLastLog(_ context.Context, sessionID string) ([]ExerciseWithLastLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.Sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	program := r.Programs[session.ProgramID]

	result := make([]ExerciseWithLastLog, 0, len(program.ExerciseIDs))
	for _, exerciseID := range program.ExerciseIDs {
		item := ExerciseWithLastLog{
			Exercise: exercises.Exercise{
				ID:   exerciseID,
				Name: r.ExerciseNames[exerciseID],
			},
		}

		for _, l := range r.Logs {
			if l.SessionID == sessionID && l.ExerciseID == exerciseID {
				logCopy := *l
				item.CurrentLog = &logCopy
				break
			}
		}

		var last *LastLog
		for _, l := range r.Logs {
			if l.ExerciseID != exerciseID || l.SessionID == sessionID {
				continue
			}
			owner, ok := r.Sessions[l.SessionID]
			if !ok || owner.IsActive || !l.IsComplete() || l.CompletedAt == nil {
				continue
			}
			if last == nil || l.CompletedAt.After(last.CompletedAt) {
				last = &LastLog{
					Weight:      *l.Weight,
					Reps:        *l.Reps,
					Notes:       l.Notes,
					CompletedAt: *l.CompletedAt,
				}
			}
		}
		item.Last = last

		result = append(result, item)
	}
	return result, nil
}

func (r *TestRepo) History(_ context.Context, limit int) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	finished := make([]Session, 0, len(r.Sessions))
	for _, s := range r.Sessions {
		if !s.IsActive && s.EndTime != nil {
			finished = append(finished, *s)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].EndTime.After(*finished[j].EndTime)
	})
	if len(finished) > limit {
		finished = finished[:limit]
	}
	return finished, nil
}

func (r *TestRepo) SessionLogs(_ context.Context, sessionID string) ([]SessionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logs := make([]SessionLog, 0)
	for _, l := range r.Logs {
		if l.SessionID != sessionID {
			continue
		}
		logs = append(logs, SessionLog{
			ExerciseLog:  *l,
			ExerciseName: r.ExerciseNames[l.ExerciseID],
		})
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].ExerciseName < logs[j].ExerciseName
	})
	return logs, nil
}

func (r *TestRepo) GetStats(context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &Stats{}
	var durationSum int
	for _, s := range r.Sessions {
		if s.IsActive || s.EndTime == nil {
			continue
		}
		stats.TotalWorkouts++
		if s.DurationMinutes != nil {
			durationSum += *s.DurationMinutes
		}
		if stats.LastWorkout == nil || s.EndTime.After(stats.LastWorkout.Date) {
			stats.LastWorkout = &LastWorkout{
				ProgramName: s.ProgramName,
				Date:        *s.EndTime,
			}
		}
	}
	if stats.TotalWorkouts > 0 {
		stats.AvgDurationMinutes = durationSum / stats.TotalWorkouts
	}
	return stats, nil
}
