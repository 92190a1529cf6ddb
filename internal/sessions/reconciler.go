package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tcpolan/pump/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

type logUpdater interface {
	UpdateLog(ctx context.Context, logID string, weight, reps *int, notes *string) error
}

// LogEdit carries raw field values as typed by the user. Empty strings
// mean "clear the field".
type LogEdit struct {
	Weight string `json:"weight"`
	Reps   string `json:"reps"`
	Notes  string `json:"notes"`
}

type pendingEdit struct {
	logID  string
	weight *int
	reps   *int
	notes  *string
	timer  *time.Timer
}

// Reconciler buffers rapid per-set edits and writes them to the store
// once typing pauses. Each exercise log has its own buffer and its own
// debounce timer, so editing one set never delays another set's write.
type Reconciler struct {
	repo           logUpdater
	metricsManager *metrics.Manager
	debounce       time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEdit
}

func NewReconciler(repo logUpdater, metricsManager *metrics.Manager, debounce time.Duration) *Reconciler {
	return &Reconciler{
		repo:           repo,
		metricsManager: metricsManager,
		debounce:       debounce,
		pending:        make(map[string]*pendingEdit),
	}
}

// Update buffers an edit for the given log and (re)arms its debounce
// timer. Numeric fields are validated up front so a bad keystroke is
// rejected immediately instead of failing later inside a flush.
func (r *Reconciler) Update(logID string, edit LogEdit) error {
	weight, err := parseField("weight", edit.Weight)
	if err != nil {
		return err
	}
	reps, err := parseField("reps", edit.Reps)
	if err != nil {
		return err
	}

	var notes *string
	if trimmed := strings.TrimSpace(edit.Notes); trimmed != "" {
		notes = &trimmed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pending[logID]; ok {
		p.weight = weight
		p.reps = reps
		p.notes = notes
		p.timer.Reset(r.debounce)
		return nil
	}

	p := &pendingEdit{
		logID:  logID,
		weight: weight,
		reps:   reps,
		notes:  notes,
	}
	p.timer = time.AfterFunc(r.debounce, func() {
		r.flushOne(logID)
	})
	r.pending[logID] = p
	return nil
}

// Pending reports the buffered edit for a log, if any. Used by views
// that must show the freshest values even before the flush lands.
func (r *Reconciler) Pending(logID string) (weight, reps *int, notes *string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[logID]
	if !ok {
		return nil, nil, nil, false
	}
	return p.weight, p.reps, p.notes, true
}

// CompletedCount counts logs that have both weight and reps, preferring
// a buffered edit over the persisted row so the count tracks what the
// user sees, not what has flushed.
func (r *Reconciler) CompletedCount(logs []ExerciseLog) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int
	for i := range logs {
		if p, ok := r.pending[logs[i].ID]; ok {
			if p.weight != nil && p.reps != nil {
				count++
			}
			continue
		}
		if logs[i].IsComplete() {
			count++
		}
	}
	return count
}

// Flush writes the buffered edit for one log immediately, cancelling
// its timer. No-op when nothing is buffered.
func (r *Reconciler) Flush(ctx context.Context, logID string) error {
	r.mu.Lock()
	p, ok := r.pending[logID]
	if ok {
		p.timer.Stop()
		delete(r.pending, logID)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := r.write(ctx, p); err != nil && !errors.Is(err, ErrLogNotFound) {
		return err
	}
	return nil
}

// FlushAll drains every buffered edit, e.g. right before a session is
// finished so no typed value is lost.
func (r *Reconciler) FlushAll(ctx context.Context) error {
	r.mu.Lock()
	drained := make([]*pendingEdit, 0, len(r.pending))
	for logID, p := range r.pending {
		p.timer.Stop()
		drained = append(drained, p)
		delete(r.pending, logID)
	}
	r.mu.Unlock()

	for _, p := range drained {
		if err := r.write(ctx, p); err != nil && !errors.Is(err, ErrLogNotFound) {
			return err
		}
	}
	return nil
}

// DiscardAll drops every buffered edit without writing, used when the
// session is cancelled and its logs are about to be deleted anyway.
func (r *Reconciler) DiscardAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for logID, p := range r.pending {
		p.timer.Stop()
		delete(r.pending, logID)
	}
}

// flushOne runs on timer expiry. The session may have been cancelled in
// the meantime, in which case the log row is gone and the write is a
// benign no-op.
func (r *Reconciler) flushOne(logID string) {
	r.mu.Lock()
	p, ok := r.pending[logID]
	if ok {
		delete(r.pending, logID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	// timers outlive any request context
	err := r.write(context.Background(), p)
	switch {
	case errors.Is(err, ErrLogNotFound):
		// session cancelled between the edit and the flush
		log.Debugf("flush exercise log %s: row gone, dropping edit", logID)
	case err != nil:
		log.Errorf("flush exercise log %s: %s", logID, err)
	}
}

func (r *Reconciler) write(ctx context.Context, p *pendingEdit) error {
	err := r.repo.UpdateLog(ctx, p.logID, p.weight, p.reps, p.notes)
	if err != nil {
		return err
	}
	if r.metricsManager != nil {
		r.metricsManager.CounterLogFlushes.Inc()
	}
	return nil
}

func parseField(name, raw string) (*int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil || value < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidInput, name)
	}
	return &value, nil
}
