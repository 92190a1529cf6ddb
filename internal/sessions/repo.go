package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tcpolan/pump/internal/exercises"
	"github.com/tcpolan/pump/internal/telemetry/tracing"
	"github.com/tcpolan/pump/pkg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type Repo struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db:  db,
		now: time.Now,
	}
}

// GetActive returns the single active session, joined with the program
// name. More than one active row means the store invariant is broken
// and is reported as ErrMultipleActiveSessions.
func (r *Repo) GetActive(ctx context.Context) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.getactive")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`
			SELECT ws.id, ws.program_id, p.name, ws.start_time, ws.end_time, ws.duration_minutes, ws.is_active
			FROM workout_session ws
			JOIN program p ON ws.program_id = p.id
			WHERE ws.is_active;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessionsList, err := r.rows2sessions(rows)
	if err != nil {
		return nil, err
	}

	switch len(sessionsList) {
	case 0:
		return nil, ErrNoActiveSession
	case 1:
		return &sessionsList[0], nil
	default:
		return nil, ErrMultipleActiveSessions
	}
}

// Start creates the session row and materializes one empty log row per
// exercise currently in the program, all in one transaction. The
// membership is snapshotted at start time, later program edits do not
// touch an already started session. A partial unique index on is_active
// rules out a second active session even under concurrent starts.
func (r *Repo) Start(ctx context.Context, programID string) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("program.id", programID))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	session := Session{
		ID:        uuid.NewString(),
		ProgramID: programID,
		StartTime: r.now(),
		IsActive:  true,
	}

	if _, err = tx.Exec(
		ctx,
		`INSERT INTO workout_session (id, program_id, start_time, is_active) VALUES ($1, $2, $3, TRUE);`,
		session.ID, session.ProgramID, session.StartTime,
	); err != nil {
		if pkg.IsUniqueViolationError(err) {
			err = ErrActiveSessionExists
			return nil, err
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err = tx.QueryRow(
		ctx,
		`SELECT name FROM program WHERE id = $1;`,
		programID,
	).Scan(&session.ProgramName); err != nil {
		return nil, fmt.Errorf("get program name: %w", err)
	}

	exerciseRows, err := tx.Query(
		ctx,
		`SELECT exercise_id FROM program_exercise WHERE program_id = $1 ORDER BY order_index;`,
		programID,
	)
	if err != nil {
		return nil, fmt.Errorf("get program exercises: %w", err)
	}

	var exerciseIDs []string
	for exerciseRows.Next() {
		var exerciseID string
		if err = exerciseRows.Scan(&exerciseID); err != nil {
			exerciseRows.Close()
			return nil, fmt.Errorf("scan program exercise: %w", err)
		}
		exerciseIDs = append(exerciseIDs, exerciseID)
	}
	exerciseRows.Close()
	if err = exerciseRows.Err(); err != nil {
		return nil, fmt.Errorf("program exercise rows: %w", err)
	}

	for _, exerciseID := range exerciseIDs {
		if _, err = tx.Exec(
			ctx,
			`INSERT INTO exercise_log (id, session_id, exercise_id) VALUES ($1, $2, $3);`,
			uuid.NewString(), session.ID, exerciseID,
		); err != nil {
			return nil, fmt.Errorf("insert exercise log: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	span.SetAttributes(attribute.String("session.id", session.ID))
	span.SetAttributes(attribute.Int("session.exercises", len(exerciseIDs)))
	return &session, nil
}

// Finish closes the session: sets the end time, the rounded duration in
// minutes and clears the active flag. A session that no longer exists is
// a silent no-op, the desired end state already holds.
func (r *Repo) Finish(ctx context.Context, sessionID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.finish")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID))

	var startTime time.Time
	err = r.db.QueryRow(
		ctx,
		`SELECT start_time FROM workout_session WHERE id = $1;`,
		sessionID,
	).Scan(&startTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get session start time: %w", err)
	}

	endTime := r.now()
	if _, err = r.db.Exec(
		ctx,
		`UPDATE workout_session SET end_time = $1, duration_minutes = $2, is_active = FALSE WHERE id = $3;`,
		endTime, durationMinutes(startTime, endTime), sessionID,
	); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}

	return nil
}

// Cancel deletes the session's logs and the session row. Irreversible.
func (r *Repo) Cancel(ctx context.Context, sessionID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.cancel")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(
		ctx,
		`DELETE FROM exercise_log WHERE session_id = $1;`,
		sessionID,
	); err != nil {
		return fmt.Errorf("delete session logs: %w", err)
	}

	if _, err = tx.Exec(
		ctx,
		`DELETE FROM workout_session WHERE id = $1;`,
		sessionID,
	); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdateLog writes weight, reps and notes in a single update, together
// with the derived completion timestamp: set iff weight and reps are
// both present, cleared otherwise. The timestamp always reflects the
// most recent complete write, not the first one.
func (r *Repo) UpdateLog(ctx context.Context, logID string, weight, reps *int, notes *string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.updatelog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log.id", logID))

	var completedAt *time.Time
	if weight != nil && reps != nil {
		now := r.now()
		completedAt = &now
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE exercise_log SET weight = $1, reps = $2, notes = $3, completed_at = $4 WHERE id = $5;`,
		weight, reps, notes, completedAt, logID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLogNotFound
	}
	return nil
}

// ExercisesWithLastLog returns, for each exercise of the session's
// program, the current-session log row plus the most recent completed
// values from any other finished session. The session's own rows and
// rows of any still-active session never serve as "last performed".
func (r *Repo) ExercisesWithLastLog(ctx context.Context, sessionID string) (_ []ExerciseWithLastLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.exerciseswithlastlog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID))

	var programID string
	err = r.db.QueryRow(
		ctx,
		`SELECT program_id FROM workout_session WHERE id = $1;`,
		sessionID,
	).Scan(&programID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session program: %w", err)
	}

	exerciseRows, err := r.db.Query(
		ctx,
		`
			SELECT e.id, e.name, e.notes
			FROM exercise e
			JOIN program_exercise pe ON e.id = pe.exercise_id
			WHERE pe.program_id = $1
			ORDER BY pe.order_index;`,
		programID,
	)
	if err != nil {
		return nil, fmt.Errorf("get program exercises: %w", err)
	}

	var programExercises []exercises.Exercise
	for exerciseRows.Next() {
		var e exercises.Exercise
		if err = exerciseRows.Scan(&e.ID, &e.Name, &e.Notes); err != nil {
			exerciseRows.Close()
			return nil, fmt.Errorf("scan program exercise: %w", err)
		}
		programExercises = append(programExercises, e)
	}
	exerciseRows.Close()
	if err = exerciseRows.Err(); err != nil {
		return nil, fmt.Errorf("program exercise rows: %w", err)
	}

	result := make([]ExerciseWithLastLog, 0, len(programExercises))
	for _, exercise := range programExercises {
		view := ExerciseWithLastLog{Exercise: exercise}

		currentLog, err := r.currentLog(ctx, sessionID, exercise.ID)
		if err != nil {
			return nil, fmt.Errorf("get current log for exercise %s: %w", exercise.ID, err)
		}
		view.CurrentLog = currentLog

		lastLog, err := r.lastLog(ctx, sessionID, exercise.ID)
		if err != nil {
			return nil, fmt.Errorf("get last log for exercise %s: %w", exercise.ID, err)
		}
		view.Last = lastLog

		result = append(result, view)
	}

	return result, nil
}

func (r *Repo) currentLog(ctx context.Context, sessionID, exerciseID string) (*ExerciseLog, error) {
	var l ExerciseLog
	err := r.db.QueryRow(
		ctx,
		`
			SELECT id, session_id, exercise_id, weight, reps, notes, completed_at
			FROM exercise_log
			WHERE session_id = $1 AND exercise_id = $2;`,
		sessionID, exerciseID,
	).Scan(&l.ID, &l.SessionID, &l.ExerciseID, &l.Weight, &l.Reps, &l.Notes, &l.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repo) lastLog(ctx context.Context, sessionID, exerciseID string) (*LastLog, error) {
	var l LastLog
	err := r.db.QueryRow(
		ctx,
		`
			SELECT el.weight, el.reps, el.notes, el.completed_at
			FROM exercise_log el
			JOIN workout_session ws ON el.session_id = ws.id
			WHERE el.exercise_id = $1
				AND ws.id != $2
				AND NOT ws.is_active
				AND el.weight IS NOT NULL
				AND el.reps IS NOT NULL
			ORDER BY el.completed_at DESC
			LIMIT 1;`,
		exerciseID, sessionID,
	).Scan(&l.Weight, &l.Reps, &l.Notes, &l.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// History returns finished sessions, newest first.
func (r *Repo) History(ctx context.Context, limit int) (_ []Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("limit", limit))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT ws.id, ws.program_id, p.name, ws.start_time, ws.end_time, ws.duration_minutes, ws.is_active
			FROM workout_session ws
			JOIN program p ON ws.program_id = p.id
			WHERE NOT ws.is_active
			ORDER BY ws.start_time DESC
			LIMIT $1;`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return r.rows2sessions(rows)
}

// SessionLogs returns the session's log rows joined with exercise names.
func (r *Repo) SessionLogs(ctx context.Context, sessionID string) (_ []SessionLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.sessionlogs")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT el.id, el.session_id, el.exercise_id, e.name, el.weight, el.reps, el.notes, el.completed_at
			FROM exercise_log el
			JOIN exercise e ON el.exercise_id = e.id
			WHERE el.session_id = $1
			ORDER BY el.completed_at;`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	var logs []SessionLog
	for rows.Next() {
		var l SessionLog
		if err := rows.Scan(
			&l.ID, &l.SessionID, &l.ExerciseID, &l.ExerciseName,
			&l.Weight, &l.Reps, &l.Notes, &l.CompletedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}

	if logs == nil {
		logs = make([]SessionLog, 0)
	}

	return logs, nil
}

// GetStats returns simple aggregates over finished sessions.
func (r *Repo) GetStats(ctx context.Context) (_ *Stats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.stats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	stats := &Stats{}

	var avgDuration *float64
	if err = r.db.QueryRow(
		ctx,
		`
			SELECT COUNT(*), AVG(duration_minutes)
			FROM workout_session
			WHERE NOT is_active;`,
	).Scan(&stats.TotalWorkouts, &avgDuration); err != nil {
		return nil, fmt.Errorf("get totals: %w", err)
	}
	if avgDuration != nil {
		stats.AvgDurationMinutes = int(*avgDuration + 0.5)
	}

	var lastWorkout LastWorkout
	err = r.db.QueryRow(
		ctx,
		`
			SELECT p.name, ws.end_time
			FROM workout_session ws
			JOIN program p ON ws.program_id = p.id
			WHERE NOT ws.is_active AND ws.end_time IS NOT NULL
			ORDER BY ws.end_time DESC
			LIMIT 1;`,
	).Scan(&lastWorkout.ProgramName, &lastWorkout.Date)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get last workout: %w", err)
	}
	if err == nil {
		stats.LastWorkout = &lastWorkout
	}

	return stats, nil
}

func (r *Repo) rows2sessions(rows pgx.Rows) ([]Session, error) {
	var sessionsList []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.ID, &s.ProgramID, &s.ProgramName,
			&s.StartTime, &s.EndTime, &s.DurationMinutes, &s.IsActive,
		); err != nil {
			return nil, err
		}
		sessionsList = append(sessionsList, s)
	}

	if sessionsList == nil {
		sessionsList = make([]Session, 0)
	}

	return sessionsList, nil
}
