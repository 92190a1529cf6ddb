package bodyweight

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tcpolan/pump/internal/telemetry/tracing"
)

const listLimit = 100

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// Upsert records a measurement for the entry's day, replacing a
// previous one for the same day.
func (r *Repo) Upsert(ctx context.Context, date string, weight float64) (_ *WeightEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodyweight.upsert")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	entry := &WeightEntry{
		ID:     uuid.NewString(),
		Date:   date,
		Weight: weight,
	}

	if err := r.db.QueryRow(ctx,
		`INSERT INTO weight_entry (id, date, weight)
			VALUES ($1, $2, $3)
			ON CONFLICT (date) DO UPDATE SET weight = EXCLUDED.weight
			RETURNING id`,
		entry.ID, entry.Date, entry.Weight,
	).Scan(&entry.ID); err != nil {
		return nil, fmt.Errorf("upsert weight entry: %w", err)
	}

	return entry, nil
}

// List returns the most recent measurements, newest first.
func (r *Repo) List(ctx context.Context) (_ []WeightEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodyweight.list")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	rows, err := r.db.Query(ctx,
		`SELECT id, date, weight FROM weight_entry ORDER BY date DESC LIMIT $1`,
		listLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]WeightEntry, 0)
	for rows.Next() {
		var entry WeightEntry
		if err := rows.Scan(&entry.ID, &entry.Date, &entry.Weight); err != nil {
			return nil, fmt.Errorf("scan weight entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// DeleteAll clears the whole measurement history.
func (r *Repo) DeleteAll(ctx context.Context) (deleted int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodyweight.deleteAll")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	tag, err := r.db.Exec(ctx, `DELETE FROM weight_entry`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
