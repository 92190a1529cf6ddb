package bodyweight

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

var _ weightRepo = (*TestRepo)(nil)

// TestRepo is an in-memory weightRepo used in tests.
type TestRepo struct {
	Entries map[string]*WeightEntry // date -> entry
}

func NewTestRepo() *TestRepo {
	return &TestRepo{
		Entries: make(map[string]*WeightEntry),
	}
}

func (r *TestRepo) Upsert(_ context.Context, date string, weight float64) (*WeightEntry, error) {
	if existing, ok := r.Entries[date]; ok {
		existing.Weight = weight
		entryCopy := *existing
		return &entryCopy, nil
	}
	entry := &WeightEntry{
		ID:     uuid.NewString(),
		Date:   date,
		Weight: weight,
	}
	r.Entries[date] = entry
	entryCopy := *entry
	return &entryCopy, nil
}

func (r *TestRepo) List(context.Context) ([]WeightEntry, error) {
	entries := make([]WeightEntry, 0, len(r.Entries))
	for _, entry := range r.Entries {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date > entries[j].Date
	})
	if len(entries) > listLimit {
		entries = entries[:listLimit]
	}
	return entries, nil
}

func (r *TestRepo) DeleteAll(context.Context) (int64, error) {
	deleted := int64(len(r.Entries))
	r.Entries = make(map[string]*WeightEntry)
	return deleted, nil
}
