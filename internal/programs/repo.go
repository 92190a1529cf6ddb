package programs

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcpolan/pump/internal/exercises"
	"github.com/tcpolan/pump/internal/telemetry/tracing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrProgramNotFound = errors.New("program not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, name string, description *string) (_ *Program, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.programs.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	program := Program{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
	}

	if _, err := r.db.Exec(
		ctx,
		`INSERT INTO program (id, name, description) VALUES ($1, $2, $3);`,
		program.ID, program.Name, program.Description,
	); err != nil {
		return nil, fmt.Errorf("insert program: %w", err)
	}

	span.SetAttributes(attribute.String("program.id", program.ID))
	return &program, nil
}

func (r *Repo) Get(ctx context.Context, id string) (_ *Program, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.programs.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, description FROM program WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	programsList, err := r.rows2programs(rows)
	if err != nil {
		return nil, err
	}

	if len(programsList) != 1 {
		return nil, ErrProgramNotFound
	}

	return &programsList[0], nil
}

// List returns all programs, ordered by name.
func (r *Repo) List(ctx context.Context) (_ []Program, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.programs.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, description FROM program ORDER BY name;`,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return r.rows2programs(rows)
}

func (r *Repo) Update(ctx context.Context, program *Program) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.programs.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("id", program.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE program SET name = $1, description = $2 WHERE id = $3;`,
		program.Name, program.Description, program.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrProgramNotFound
	}

	return nil
}

// Delete removes the program and everything hanging off it, in a strict
// order inside one transaction: exercise logs of the program's sessions,
// the sessions, the memberships, then the program row.
func (r *Repo) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.programs.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("id", id))

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
		`DELETE FROM exercise_log WHERE session_id IN (SELECT id FROM workout_session WHERE program_id = $1);`,
		id,
	); err != nil {
		return fmt.Errorf("delete session logs: %w", err)
	}

	if _, err = tx.Exec(
		ctx,
		`DELETE FROM workout_session WHERE program_id = $1;`,
		id,
	); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}

	if _, err = tx.Exec(
		ctx,
		`DELETE FROM program_exercise WHERE program_id = $1;`,
		id,
	); err != nil {
		return fmt.Errorf("delete program exercises: %w", err)
	}

	tag, err := tx.Exec(
		ctx,
		`DELETE FROM program WHERE id = $1;`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrProgramNotFound
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetExercises returns the program's exercises in membership order.
func (r *Repo) GetExercises(ctx context.Context, programID string) (_ []exercises.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.programs.getexercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("program.id", programID))

	rows, err := r.db.Query(
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
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	var result []exercises.Exercise
	for rows.Next() {
		var id string
		var name string
		var notes *string
		if err := rows.Scan(&id, &name, &notes); err != nil {
			return nil, err
		}
		result = append(result, exercises.Exercise{
			ID:    id,
			Name:  name,
			Notes: notes,
		})
	}

	if result == nil {
		result = make([]exercises.Exercise, 0)
	}

	return result, nil
}

// SetExercises replaces the whole membership of the program. The delete and
// the reinsert with positional order indexes run in one transaction, so no
// partial state is ever visible to readers.
func (r *Repo) SetExercises(ctx context.Context, programID string, exerciseIDs []string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.programs.setexercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("program.id", programID))
	span.SetAttributes(attribute.Int("exercises.count", len(exerciseIDs)))

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
		`DELETE FROM program_exercise WHERE program_id = $1;`,
		programID,
	); err != nil {
		return fmt.Errorf("clear program exercises: %w", err)
	}

	for i, exerciseID := range exerciseIDs {
		if _, err = tx.Exec(
			ctx,
			`INSERT INTO program_exercise (program_id, exercise_id, order_index) VALUES ($1, $2, $3);`,
			programID, exerciseID, i,
		); err != nil {
			return fmt.Errorf("insert program exercise [%s]: %w", exerciseID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repo) rows2programs(rows pgx.Rows) ([]Program, error) {
	var programsList []Program
	for rows.Next() {
		var id string
		var name string
		var description *string
		if err := rows.Scan(&id, &name, &description); err != nil {
			return nil, err
		}

		programsList = append(programsList, Program{
			ID:          id,
			Name:        name,
			Description: description,
		})
	}

	if programsList == nil {
		programsList = make([]Program, 0)
	}

	return programsList, nil
}
